package parsers

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/spherical-ai/hybridstore/internal/errs"
)

// OWLParser extracts ontology/class/property/individual fragments from
// an RDF/XML OWL document. It decodes with encoding/xml into a generic
// node tree rather than fixed OWL structs, since real OWL exports
// (OpenCyc-style and otherwise) vary in which namespace prefixes they
// declare for rdf/rdfs/owl/skos.
type OWLParser struct{}

// NewOWLParser builds an OWLParser. It has no tunable parameters.
func NewOWLParser() *OWLParser { return &OWLParser{} }

// ContentType identifies this parser for explicit selection.
func (p *OWLParser) ContentType() string { return "owl" }

// CanParse probes for an rdf:RDF root without a full decode.
func (p *OWLParser) CanParse(payload []byte) bool {
	return bytes.Contains(payload, []byte("rdf:RDF")) || bytes.Contains(payload, []byte(":RDF"))
}

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

// Parse walks the rdf:RDF root and emits ontology, class, property, and
// individual fragments, in that order.
func (p *OWLParser) Parse(payload []byte, resourceID string, _ map[string]any) (*ParsedResource, error) {
	var root xmlNode
	if err := xml.Unmarshal(payload, &root); err != nil {
		return nil, fmt.Errorf("parsers: %w: %v", errs.ErrInvalidPayload, err)
	}
	if root.XMLName.Local != "RDF" {
		return nil, fmt.Errorf("parsers: %w: root element is %q, want rdf:RDF", errs.ErrInvalidPayload, root.XMLName.Local)
	}

	var fragments []Fragment
	order := 0
	emit := func(f Fragment) {
		f.Order = order
		order++
		fragments = append(fragments, f)
	}

	for _, n := range root.Nodes {
		if n.XMLName.Local == "Ontology" {
			emit(owlOntologyFragment(n))
		}
	}
	for _, n := range root.Nodes {
		if n.XMLName.Local == "Class" {
			emit(owlClassFragment(n))
		}
	}
	for _, n := range root.Nodes {
		if isOWLPropertyKind(n.XMLName.Local) {
			emit(owlPropertyFragment(n))
		}
	}
	for _, n := range root.Nodes {
		if n.XMLName.Local == "NamedIndividual" {
			emit(owlIndividualFragment(n))
		}
	}

	return &ParsedResource{ResourceID: resourceID, Fragments: fragments}, nil
}

func isOWLPropertyKind(local string) bool {
	switch local {
	case "ObjectProperty", "DatatypeProperty", "AnnotationProperty",
		"FunctionalProperty", "InverseFunctionalProperty", "TransitiveProperty", "SymmetricProperty":
		return true
	default:
		return false
	}
}

func owlOntologyFragment(n xmlNode) Fragment {
	label := childText(n, "label")
	comment := childText(n, "comment")
	version := childText(n, "versionInfo")
	about := attrLocal(n, "about")
	name := firstNonEmpty(label, localName(about))

	content := fmt.Sprintf("Ontology %s", name)
	if comment != "" {
		content += ": " + comment
	}

	return Fragment{
		Type:    "owl_ontology",
		Content: content,
		Metadata: map[string]any{
			"label":       name,
			"comment":     comment,
			"versionInfo": version,
			"about":       about,
		},
	}
}

func owlClassFragment(n xmlNode) Fragment {
	about := attrLocal(n, "about")
	label := firstNonEmpty(childText(n, "label"), localName(about))
	definition := firstNonEmpty(childText(n, "definition"), childText(n, "comment"))

	var subClassOf []string
	for _, c := range n.Nodes {
		if c.XMLName.Local == "subClassOf" {
			if target := localName(attrLocal(c, "resource")); target != "" {
				subClassOf = append(subClassOf, target)
			}
		}
	}

	var sameAs []string
	for _, c := range n.Nodes {
		if c.XMLName.Local == "sameAs" {
			if target := localName(attrLocal(c, "resource")); target != "" {
				sameAs = append(sameAs, target)
			}
		}
	}

	guid := childText(n, "guid")

	content := fmt.Sprintf("Class %s", label)
	if definition != "" {
		content += ": " + definition
	}

	metadata := map[string]any{
		"label":      label,
		"definition": definition,
		"subClassOf": subClassOf,
		"sameAs":     sameAs,
		"about":      about,
	}
	if guid != "" {
		metadata["guid"] = guid
	}

	return Fragment{Type: "owl_class", Content: content, Metadata: metadata}
}

func owlPropertyFragment(n xmlNode) Fragment {
	about := attrLocal(n, "about")
	label := firstNonEmpty(childText(n, "label"), localName(about))
	domain := localName(firstChildAttr(n, "domain", "resource"))
	rng := localName(firstChildAttr(n, "range", "resource"))

	content := fmt.Sprintf("%s %s", n.XMLName.Local, label)
	if domain != "" || rng != "" {
		content += fmt.Sprintf(" (domain=%s, range=%s)", domain, rng)
	}

	return Fragment{
		Type:    "owl_property",
		Content: content,
		Metadata: map[string]any{
			"label":        label,
			"propertyKind": n.XMLName.Local,
			"domain":       domain,
			"range":        rng,
			"about":        about,
		},
	}
}

func owlIndividualFragment(n xmlNode) Fragment {
	about := attrLocal(n, "about")
	label := firstNonEmpty(childText(n, "label"), localName(about))

	var types []string
	for _, c := range n.Nodes {
		if c.XMLName.Local == "type" {
			if target := localName(attrLocal(c, "resource")); target != "" {
				types = append(types, target)
			}
		}
	}

	content := fmt.Sprintf("Individual %s", label)
	if len(types) > 0 {
		content += ": " + strings.Join(types, ", ")
	}

	return Fragment{
		Type:    "owl_individual",
		Content: content,
		Metadata: map[string]any{
			"label": label,
			"types": types,
			"about": about,
		},
	}
}

func childText(n xmlNode, local string) string {
	for _, c := range n.Nodes {
		if c.XMLName.Local == local {
			return strings.TrimSpace(c.Content)
		}
	}
	return ""
}

func firstChildAttr(n xmlNode, childLocal, attr string) string {
	for _, c := range n.Nodes {
		if c.XMLName.Local == childLocal {
			return attrLocal(c, attr)
		}
	}
	return ""
}

func attrLocal(n xmlNode, local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// localName extracts the substring following the last '/' or '#' in a
// URI.
func localName(uri string) string {
	if uri == "" {
		return ""
	}
	idx := strings.LastIndexAny(uri, "/#")
	if idx == -1 {
		return uri
	}
	return uri[idx+1:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ Parser = (*OWLParser)(nil)
