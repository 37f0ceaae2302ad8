// Package ingestion implements the content ingestion pipeline: parse a
// raw payload into ordered fragments, batch-embed them, and materialize
// a resource Point plus one fragment Point per fragment, joined by
// Segments, inside the hybrid store.
package ingestion

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spherical-ai/hybridstore/internal/errs"
	"github.com/spherical-ai/hybridstore/internal/hybridstore"
	"github.com/spherical-ai/hybridstore/internal/observability"
	"github.com/spherical-ai/hybridstore/internal/parsers"
)

// Request describes one ingestion call.
type Request struct {
	Payload       []byte
	ResourceID    string
	ContentType   string // "text" | "json" | "owl" | "auto" (default)
	SingularityID *int64
	UserID        *int64
	Metadata      map[string]any
}

// Result reports what an ingestion materialized. FragmentPointIDs and
// SegmentIDs list only successfully stored fragments, so their length
// can fall short of TotalFragments on partial failure.
type Result struct {
	ResourcePointID  int64
	FragmentPointIDs []int64
	SegmentIDs       []int64
	ParserType       string
	TotalFragments   int
}

// Pipeline orchestrates parser selection, batch embedding, and
// Point/Segment materialization via the hybrid store.
type Pipeline struct {
	registry *parsers.Registry
	store    *hybridstore.Store
	logger   *observability.Logger

	embeddingType string
}

// Config configures a Pipeline.
type Config struct {
	EmbeddingType string
}

// New builds a Pipeline over registry and store.
func New(registry *parsers.Registry, store *hybridstore.Store, logger *observability.Logger, cfg Config) *Pipeline {
	embeddingType := cfg.EmbeddingType
	if embeddingType == "" {
		embeddingType = "text"
	}
	return &Pipeline{registry: registry, store: store, logger: logger, embeddingType: embeddingType}
}

// Ingest runs parse -> embed -> materialize. Parsing and embedding are
// pure and fail fast with no writes; a resource-point failure aborts
// the request; fragment failures are tolerated per-fragment and logged,
// so the result may list fewer fragment ids than TotalFragments.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if len(req.Payload) == 0 {
		return nil, fmt.Errorf("ingestion: %w: payload is required", errs.ErrInvalidInput)
	}
	// A whitespace-only payload parses to zero fragments whichever parser
	// would be picked, so it fails as an empty parse before any write.
	if len(bytes.TrimSpace(req.Payload)) == 0 {
		return nil, fmt.Errorf("ingestion: %w", errs.ErrEmptyParse)
	}
	resourceID := req.ResourceID
	if resourceID == "" {
		resourceID = uuid.NewString()
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "auto"
	}

	logger := p.logger
	if req.SingularityID != nil {
		logger = observability.WithSingularity(logger, *req.SingularityID)
	}

	// Parser selection.
	parser, err := p.registry.Select(contentType, req.Payload)
	if err != nil {
		return nil, err
	}

	// Parsing.
	parsed, err := parser.Parse(req.Payload, resourceID, req.Metadata)
	if err != nil {
		return nil, err
	}
	if len(parsed.Fragments) == 0 {
		return nil, fmt.Errorf("ingestion: %w", errs.ErrEmptyParse)
	}

	logger.Info().
		Str("resource_id", resourceID).
		Str("parser", parser.ContentType()).
		Int("fragment_count", len(parsed.Fragments)).
		Msg("starting ingestion")

	// Batch embedding, in parse order.
	texts := make([]string, len(parsed.Fragments))
	for i, f := range parsed.Fragments {
		texts[i] = f.Content
	}
	embeddings, err := p.store.Embedder().Embed(ctx, p.embeddingType, texts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w: embed fragments: %v", errs.ErrUpstreamFailure, err)
	}
	if len(embeddings) != len(parsed.Fragments) {
		return nil, fmt.Errorf("ingestion: %w: got %d embeddings for %d fragments", errs.ErrEmbeddingMismatch, len(embeddings), len(parsed.Fragments))
	}

	// Resource materialization. Failure here aborts the request;
	// nothing has been written yet.
	summary := fmt.Sprintf("Resource: %s (%s) with %d fragments", resourceID, parser.ContentType(), len(parsed.Fragments))
	resourcePoint := hybridstore.Point{
		Layer:         0,
		Dimension:     hybridstore.DimensionResource,
		Weight:        1.0,
		SingularityID: req.SingularityID,
		UserID:        req.UserID,
		Payload:       summary,
	}
	resourcePointID, err := p.store.AddPoint(ctx, nil, resourcePoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ingestion: create resource point: %w", err)
	}

	result := &Result{
		ResourcePointID: resourcePointID,
		ParserType:      parser.ContentType(),
		TotalFragments:  len(parsed.Fragments),
	}

	// Fragment materialization, tolerant of per-fragment failure.
	for i, fragment := range parsed.Fragments {
		weight := 1.0 / float64(fragment.Order+1)
		fragmentPoint := hybridstore.Point{
			Layer:         0,
			Dimension:     hybridstore.DimensionFragment,
			Weight:        weight,
			SingularityID: req.SingularityID,
			UserID:        req.UserID,
			Payload:       fragment.Content,
		}
		from := resourcePointID
		fragmentPointID, err := p.store.AddPoint(ctx, &from, fragmentPoint, embeddings[i])
		if err != nil {
			logger.Warn().
				Err(err).
				Str("resource_id", resourceID).
				Int("fragment_order", fragment.Order).
				Msg("fragment materialization failed, skipping")
			continue
		}
		result.FragmentPointIDs = append(result.FragmentPointIDs, fragmentPointID)

		if segID, ok, err := p.store.GetSegmentID(ctx, resourcePointID, fragmentPointID); err == nil && ok {
			result.SegmentIDs = append(result.SegmentIDs, segID)
		}
	}

	logger.Info().
		Str("resource_id", resourceID).
		Int64("resource_point_id", resourcePointID).
		Int("fragments_stored", len(result.FragmentPointIDs)).
		Msg("ingestion complete")

	return result, nil
}
