package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owlFixture = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:owl="http://www.w3.org/2002/07/owl#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#">
  <owl:Ontology rdf:about="http://example.org/onto">
    <rdfs:comment>Example knowledge graph ontology</rdfs:comment>
  </owl:Ontology>
  <owl:Class rdf:about="http://example.org/onto#Vehicle">
    <rdfs:label>Vehicle</rdfs:label>
    <rdfs:comment>A thing that transports people</rdfs:comment>
  </owl:Class>
  <owl:Class rdf:about="http://example.org/onto#Car">
    <rdfs:label>Car</rdfs:label>
    <rdfs:subClassOf rdf:resource="http://example.org/onto#Vehicle"/>
  </owl:Class>
  <owl:ObjectProperty rdf:about="http://example.org/onto#hasEngine">
    <rdfs:label>hasEngine</rdfs:label>
    <rdfs:domain rdf:resource="http://example.org/onto#Car"/>
    <rdfs:range rdf:resource="http://example.org/onto#Engine"/>
  </owl:ObjectProperty>
  <owl:NamedIndividual rdf:about="http://example.org/onto#Camry">
    <rdf:type rdf:resource="http://example.org/onto#Car"/>
  </owl:NamedIndividual>
</rdf:RDF>`

func TestOWLParser_CanParseProbesForRDFRoot(t *testing.T) {
	p := NewOWLParser()
	assert.True(t, p.CanParse([]byte(owlFixture)))
	assert.False(t, p.CanParse([]byte(`{"not": "owl"}`)))
}

func TestOWLParser_ExtractsOntologyClassPropertyIndividual(t *testing.T) {
	p := NewOWLParser()
	result, err := p.Parse([]byte(owlFixture), "res-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Fragments)

	types := make(map[string]int)
	for i, f := range result.Fragments {
		assert.Equal(t, i, f.Order)
		types[f.Type]++
	}

	assert.Equal(t, 1, types["owl_ontology"])
	assert.Equal(t, 2, types["owl_class"])
	assert.Equal(t, 1, types["owl_property"])
	assert.Equal(t, 1, types["owl_individual"])
}

func TestOWLParser_ClassFragmentCarriesSubClassOf(t *testing.T) {
	p := NewOWLParser()
	result, err := p.Parse([]byte(owlFixture), "res-1", nil)
	require.NoError(t, err)

	var car Fragment
	for _, f := range result.Fragments {
		if f.Type == "owl_class" && f.Metadata["label"] == "Car" {
			car = f
		}
	}
	require.NotEmpty(t, car.Type)
	subClassOf, ok := car.Metadata["subClassOf"].([]string)
	require.True(t, ok)
	assert.Contains(t, subClassOf, "Vehicle")
}

func TestOWLParser_RejectsNonRDFRoot(t *testing.T) {
	p := NewOWLParser()
	_, err := p.Parse([]byte(`<notRDF/>`), "res-1", nil)
	require.Error(t, err)
}
