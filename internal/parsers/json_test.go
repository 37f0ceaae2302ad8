package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONParser_WalksNestedObjectDepthFirst(t *testing.T) {
	p := NewJSONParser(10, true)
	payload := []byte(`{
		"service": {
			"name": "hybridstore",
			"description": "Unifies key-value, vector, and relational storage behind one graph of points and segments."
		},
		"tags": ["points", "segments", "cache"]
	}`)

	require.True(t, p.CanParse(payload))
	result, err := p.Parse(payload, "res-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Fragments)

	var sawObject, sawArray, sawLongString bool
	for i, f := range result.Fragments {
		assert.Equal(t, i, f.Order)
		switch f.Type {
		case "json_object":
			sawObject = true
		case "json_array":
			sawArray = true
		case "json_value":
			sawLongString = true
		}
	}
	assert.True(t, sawObject)
	assert.True(t, sawArray)
	assert.True(t, sawLongString)
}

func TestJSONParser_ExcludesArraysWhenDisabled(t *testing.T) {
	p := NewJSONParser(10, false)
	payload := []byte(`{"tags": ["a", "b", "c"]}`)

	result, err := p.Parse(payload, "res-1", nil)
	require.NoError(t, err)
	for _, f := range result.Fragments {
		assert.NotEqual(t, "json_array", f.Type)
	}
}

func TestJSONParser_RejectsMalformedPayload(t *testing.T) {
	p := NewJSONParser(0, true)
	assert.False(t, p.CanParse([]byte(`{"unterminated": `)))

	_, err := p.Parse([]byte(`{"unterminated": `), "res-1", nil)
	require.Error(t, err)
}

func TestJSONParser_StopsRecursionPastMaxDepth(t *testing.T) {
	p := NewJSONParser(1, true)
	payload := []byte(`{"a": {"b": {"c": "this string is long enough to be its own fragment"}}}`)

	result, err := p.Parse(payload, "res-1", nil)
	require.NoError(t, err)

	for _, f := range result.Fragments {
		if depth, ok := f.Metadata["depth"].(int); ok {
			assert.LessOrEqual(t, depth, 1)
		}
	}
}
