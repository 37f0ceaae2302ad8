package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParser_ThreeParagraphScenario(t *testing.T) {
	p := NewTextParser(50, 2000)

	payload := strings.Join([]string{
		"This is a long opening paragraph that easily exceeds the fifty character minimum threshold on its own merits.",
		"Short.",
		"Also short.",
		"This closing paragraph is also long enough on its own to stand as a fragment without any merging at all.",
	}, "\n\n")

	require.True(t, p.CanParse([]byte(payload)))
	result, err := p.Parse([]byte(payload), "res-1", nil)
	require.NoError(t, err)

	require.Len(t, result.Fragments, 3)
	assert.Equal(t, "paragraph", result.Fragments[0].Type)
	assert.Equal(t, 0, result.Fragments[0].Order)
	assert.Contains(t, result.Fragments[1].Content, "Short.")
	assert.Contains(t, result.Fragments[1].Content, "Also short.")
}

func TestTextParser_SplitsLongParagraphOnSentenceBoundaries(t *testing.T) {
	p := NewTextParser(10, 40)
	sentence := "This is one sentence that is fairly short. "
	payload := strings.Repeat(sentence, 6)

	result, err := p.Parse([]byte(payload), "res-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Fragments)
	for _, f := range result.Fragments {
		assert.LessOrEqual(t, len(f.Content), 40+len(sentence))
	}
}

func TestTextParser_CanParseRejectsShortPayload(t *testing.T) {
	p := NewTextParser(50, 2000)
	assert.False(t, p.CanParse([]byte("too short")))
	assert.False(t, p.CanParse(nil))
}

func TestTextParser_ExactMinimumLengthParagraphStandsAlone(t *testing.T) {
	p := NewTextParser(50, 2000)
	para := strings.Repeat("x", 50)

	result, err := p.Parse([]byte(para), "res-1", nil)
	require.NoError(t, err)
	require.Len(t, result.Fragments, 1)
	assert.Equal(t, para, result.Fragments[0].Content)
}

func TestTextParser_ShortRunsMergeWithParagraphJoin(t *testing.T) {
	p := NewTextParser(50, 2000)
	payload := "First short line here.\n\nSecond short line follows it."

	result, err := p.Parse([]byte(payload), "res-1", nil)
	require.NoError(t, err)
	require.Len(t, result.Fragments, 1)
	assert.Equal(t, "First short line here.\n\nSecond short line follows it.", result.Fragments[0].Content)
}
