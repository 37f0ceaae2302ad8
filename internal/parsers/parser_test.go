package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDefaultRegistry mirrors the production registration order:
// structured parsers first, text as the trailing catch-all.
func newDefaultRegistry() *Registry {
	return NewRegistry(
		NewJSONParser(0, true),
		NewOWLParser(),
		NewTextParser(0, 0),
	)
}

func TestRegistry_AutoPrefersStructuredParsersOverText(t *testing.T) {
	r := newDefaultRegistry()

	// Long enough that the text parser's CanParse would also accept it.
	jsonPayload := []byte(`{"user":{"name":"Alice","bio":"Software engineer with passion for AI"}}`)
	p, err := r.Select("auto", jsonPayload)
	require.NoError(t, err)
	assert.Equal(t, "json", p.ContentType())

	owlPayload := []byte(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"><owl:Class rdf:about="http://example.org#A"/></rdf:RDF>`)
	p, err = r.Select("auto", owlPayload)
	require.NoError(t, err)
	assert.Equal(t, "owl", p.ContentType())

	textPayload := []byte("Plain prose that is comfortably past the fifty character threshold.")
	p, err = r.Select("auto", textPayload)
	require.NoError(t, err)
	assert.Equal(t, "text", p.ContentType())
}

func TestRegistry_SelectByNameRevalidates(t *testing.T) {
	r := newDefaultRegistry()

	p, err := r.Select("json", []byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, "json", p.ContentType())

	_, err = r.Select("json", []byte("not json at all, just prose"))
	assert.Error(t, err)
}

func TestRegistry_UnknownContentType(t *testing.T) {
	r := newDefaultRegistry()
	_, err := r.Select("yaml", []byte("a: 1"))
	assert.Error(t, err)
}
