// Package parsers implements the payload parser capability: a pluggable
// (payload, resourceId, metadata) -> ParsedResource contract with one
// implementation per content type (text.go, json.go, owl.go), selected
// by probing in registration order.
package parsers

import (
	"fmt"

	"github.com/spherical-ai/hybridstore/internal/errs"
)

// Fragment is one parsed unit of content, ordered within its resource.
type Fragment struct {
	Type      string
	Order     int
	Content   string
	ParentKey string
	Metadata  map[string]any
}

// ParsedResource is a parser's output: the ordered fragments extracted
// from one payload.
type ParsedResource struct {
	ResourceID string
	Fragments  []Fragment
}

// Parser turns a raw payload into an ordered fragment list. Parse must
// be pure: no side effects, so a failed parse leaves nothing behind.
type Parser interface {
	ContentType() string
	CanParse(payload []byte) bool
	Parse(payload []byte, resourceID string, metadata map[string]any) (*ParsedResource, error)
}

// Registry holds parsers in registration order, used both for "auto"
// content-type probing and for lookup by name.
type Registry struct {
	parsers []Parser
}

// NewRegistry builds a Registry over parsers, preserving call order as
// probe order for "auto" detection. Order matters: parsers with broad
// CanParse probes (the text parser accepts nearly any payload) belong
// after the structured ones, or they shadow them.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Register appends a parser, making it the last probed for "auto".
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Select resolves a parser for contentType: "auto" (or empty) probes
// registered parsers in order and picks the first that accepts the
// payload; any other value looks the parser up by name and re-validates
// CanParse.
func (r *Registry) Select(contentType string, payload []byte) (Parser, error) {
	if contentType == "" || contentType == "auto" {
		for _, p := range r.parsers {
			if p.CanParse(payload) {
				return p, nil
			}
		}
		return nil, fmt.Errorf("parsers: %w: no registered parser accepted the payload", errs.ErrParserNotApplicable)
	}

	for _, p := range r.parsers {
		if p.ContentType() == contentType {
			if !p.CanParse(payload) {
				return nil, fmt.Errorf("parsers: %w: %q parser rejected the payload", errs.ErrParserNotApplicable, contentType)
			}
			return p, nil
		}
	}
	return nil, fmt.Errorf("parsers: %w: content type %q", errs.ErrParserNotFound, contentType)
}
