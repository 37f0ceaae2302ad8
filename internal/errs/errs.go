// Package errs defines the sentinel error taxonomy shared by the hybrid
// store, the ingestion pipeline, the parsers, and the adapters beneath
// them. Components wrap these with fmt.Errorf("...: %w", ...) at each
// boundary; callers
// dispatch with errors.Is/errors.As.
package errs

import "errors"

var (
	// ErrInvalidInput covers missing required fields, empty payloads,
	// malformed JSON/XML, and unsupported content types.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound covers a missing point, segment, collection, or parser.
	ErrNotFound = errors.New("not found")

	// ErrParserNotApplicable is returned when no registered parser can
	// handle a payload, or the caller names a parser that rejects it.
	ErrParserNotApplicable = errors.New("parser not applicable")

	// ErrUpstreamFailure covers a key-value, vector-index, or embedding
	// transport error.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrInconsistency marks an observed violation of a store invariant,
	// such as a half-written segment. Expected to be rare.
	ErrInconsistency = errors.New("store inconsistency")

	// ErrEmbeddingMismatch is returned when the embedding provider returns
	// a vector list whose length disagrees with the request.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")

	// ErrEmptyParse is returned when a parser produces zero fragments.
	ErrEmptyParse = errors.New("parse produced no fragments")

	// ErrInvalidPayload marks a payload that a parser recognized by content
	// type but could not actually decode (e.g. malformed JSON).
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrParserNotFound is returned when a caller names a specific parser
	// content type that no registered parser declares.
	ErrParserNotFound = errors.New("parser not found")
)
