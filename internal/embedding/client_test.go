package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_DeterministicAndNormalized(t *testing.T) {
	p := NewMockProvider(16)

	first, err := p.Embed(context.Background(), "text", []string{"hello world"})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Len(t, first[0], 16)

	second, err := p.Embed(context.Background(), "text", []string{"hello world"})
	require.NoError(t, err)
	assert.Equal(t, first[0], second[0], "same text must embed to the same vector")

	var sumSq float32
	for _, x := range first[0] {
		sumSq += x * x
	}
	assert.InDelta(t, 1.0, sumSq, 1e-4, "embedding must be unit-normalized")
}

func TestMockProvider_EmptyInput(t *testing.T) {
	p := NewMockProvider(8)
	out, err := p.Embed(context.Background(), "text", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewHTTPProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewHTTPProvider(Config{})
	assert.Error(t, err)
}
