// Package hybridstore implements the hybrid Point/Segment store: a
// knowledge-graph layer that unifies the key-value metadata store, the
// vector index, the embedding provider, and the id allocator into one
// logical entity set of Points and Segments, with coordinated writes
// across the backends.
package hybridstore

import (
	"context"
	"fmt"

	"github.com/spherical-ai/hybridstore/internal/audit"
	"github.com/spherical-ai/hybridstore/internal/embedding"
	"github.com/spherical-ai/hybridstore/internal/errs"
	"github.com/spherical-ai/hybridstore/internal/idalloc"
	"github.com/spherical-ai/hybridstore/internal/kv"
	"github.com/spherical-ai/hybridstore/internal/observability"
	"github.com/spherical-ai/hybridstore/internal/vectorindex"
)

// Dimension values reserved by this system: 0 is a resource Point
// (never carries a vector), 1 is a fragment Point (carries a vector).
const (
	DimensionResource = 0
	DimensionFragment = 1
)

// Collection is the single named vectorindex collection this store's
// Points live in. A production deployment could shard by embedding
// dimension or singularity; one fixed collection is sufficient for this
// core's contract.
const Collection = "points"

// Point is a knowledge node. Payload text is never persisted in the
// key-value record; it lives only alongside the vector in the index.
type Point struct {
	ID            int64   `json:"id"`
	Layer         int     `json:"layer"`
	Dimension     int     `json:"dimension"`
	Weight        float64 `json:"weight"`
	SingularityID *int64  `json:"singularityId,omitempty"`
	UserID        *int64  `json:"userId,omitempty"`
	Payload       string  `json:"-"`
}

// Segment is a directed edge between two Points, stored under both its
// inbound and outbound keys.
type Segment struct {
	ID            int64   `json:"id"`
	FromID        int64   `json:"fromId"`
	ToID          int64   `json:"toId"`
	Weight        float64 `json:"weight"`
	Layer         int     `json:"layer"`
	Dimension     int     `json:"dimension"`
	SingularityID *int64  `json:"singularityId,omitempty"`
}

// SearchRequest describes a filtered similarity search. Exactly one of
// Query or QueryVector must be set; nil filter fields are omitted from
// the metadata filter.
type SearchRequest struct {
	Query          string
	QueryVector    []float32
	EmbeddingType  string
	SingularityID  *int64
	Dimension      *int
	Layer          *int
	Limit          int
	ScoreThreshold float32
}

// SearchHit is one search() result.
type SearchHit struct {
	ID      int64
	Score   float32
	Payload map[string]any
}

// Store coordinates the kv store, vector index, embedding provider, and
// id allocator behind the Point/Segment operations.
type Store struct {
	kv        kv.Store
	index     vectorindex.Index
	embedder  embedding.Provider
	allocator *idalloc.Allocator
	audit     audit.Sink
	logger    *observability.Logger

	embeddingType string
	vectorSize    int
	distance      vectorindex.Distance
}

// Config configures a new Store.
type Config struct {
	EmbeddingType string
	VectorSize    int
	Distance      vectorindex.Distance
}

// New builds a Store and ensures its backing vector collection exists,
// with payload indexes on every filterable field.
func New(store kv.Store, index vectorindex.Index, embedder embedding.Provider, allocator *idalloc.Allocator, sink audit.Sink, logger *observability.Logger, cfg Config) (*Store, error) {
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = 1536
	}
	if cfg.Distance == "" {
		cfg.Distance = vectorindex.DistanceCosine
	}
	if cfg.EmbeddingType == "" {
		cfg.EmbeddingType = "text"
	}

	if err := index.CreateCollection(Collection, cfg.VectorSize, cfg.Distance); err != nil {
		return nil, fmt.Errorf("hybridstore: create collection: %w", err)
	}
	for _, field := range []string{"layer", "dimension", "weight", "singularityId", "userId", "fromId"} {
		if err := index.CreatePayloadIndex(Collection, field); err != nil {
			return nil, fmt.Errorf("hybridstore: create payload index %q: %w", field, err)
		}
	}

	return &Store{
		kv:            store,
		index:         index,
		embedder:      embedder,
		allocator:     allocator,
		audit:         sink,
		logger:        logger,
		embeddingType: cfg.EmbeddingType,
		vectorSize:    cfg.VectorSize,
		distance:      cfg.Distance,
	}, nil
}

func pointKey(id int64) string        { return fmt.Sprintf("point:%d", id) }
func segInKey(from, to int64) string  { return fmt.Sprintf("seg:in:%d:%d", from, to) }
func segOutKey(to, from int64) string { return fmt.Sprintf("seg:out:%d:%d", to, from) }

// AddPoint creates a point, allocating an id when p.ID is zero. The
// metadata write is fatal on failure: no point is created and no vector
// is written. A vector-index failure after a successful metadata write
// is logged and swallowed — the id is still returned — giving
// at-least-once semantics for metadata and best-effort semantics for
// the vector. When fromID is non-nil, a fromID -> id segment is
// appended after the point lands.
func (s *Store) AddPoint(ctx context.Context, fromID *int64, p Point, vector []float32) (int64, error) {
	if p.ID == 0 {
		p.ID = s.allocator.Next(idalloc.KindPoint)
	}
	if p.Weight == 0 {
		p.Weight = 1.0
	}

	if err := s.kv.PutJSON(pointKey(p.ID), p); err != nil {
		return 0, fmt.Errorf("hybridstore: %w: write point metadata: %v", errs.ErrUpstreamFailure, err)
	}

	// Resource points carry no vector, whatever their payload says.
	vec := vector
	if p.Dimension == DimensionResource {
		vec = nil
	} else if vec == nil && p.Payload != "" {
		embedded, err := s.embedder.Embed(ctx, s.embeddingType, []string{p.Payload})
		if err != nil {
			s.logger.Warn().Err(err).Int64("point_id", p.ID).Msg("embedding failed for point, storing metadata only")
		} else if len(embedded) > 0 {
			vec = embedded[0]
		}
	}

	if vec != nil {
		payload := pointPayload(p, fromID)
		if err := s.index.UpsertPoints(ctx, Collection, []vectorindex.Point{{ID: p.ID, Vector: vec, Payload: payload}}); err != nil {
			s.logger.Warn().Err(err).Int64("point_id", p.ID).Msg("vector upsert failed, metadata write stands")
		}
	}

	if fromID != nil {
		if _, err := s.AddSegment(ctx, *fromID, p.ID); err != nil {
			s.logger.Warn().Err(err).Int64("point_id", p.ID).Int64("from_id", *fromID).Msg("segment creation failed after point write")
			return p.ID, err
		}
	}

	return p.ID, nil
}

func pointPayload(p Point, fromID *int64) map[string]any {
	payload := map[string]any{
		"layer":     p.Layer,
		"dimension": p.Dimension,
		"weight":    p.Weight,
	}
	if p.SingularityID != nil {
		payload["singularityId"] = *p.SingularityID
	}
	if p.UserID != nil {
		payload["userId"] = *p.UserID
	}
	if fromID != nil {
		payload["fromId"] = *fromID
	}
	return payload
}

// UpdatePoint rewrites a point's metadata. If payload is present the
// vector is refreshed (using a supplied embedding or computing one); if
// payload is empty the vector is deleted instead. The point keeps its
// id either way.
func (s *Store) UpdatePoint(ctx context.Context, p Point, vector []float32) error {
	if err := s.kv.PutJSON(pointKey(p.ID), p); err != nil {
		return fmt.Errorf("hybridstore: %w: write point metadata: %v", errs.ErrUpstreamFailure, err)
	}

	if p.Payload == "" || p.Dimension == DimensionResource {
		if err := s.index.DeletePoints(ctx, Collection, []int64{p.ID}); err != nil {
			return fmt.Errorf("hybridstore: %w: delete vector: %v", errs.ErrUpstreamFailure, err)
		}
		return nil
	}

	vec := vector
	if vec == nil {
		embedded, err := s.embedder.Embed(ctx, s.embeddingType, []string{p.Payload})
		if err != nil {
			return fmt.Errorf("hybridstore: %w: embed updated payload: %v", errs.ErrUpstreamFailure, err)
		}
		if len(embedded) > 0 {
			vec = embedded[0]
		}
	}
	if vec == nil {
		return nil
	}

	payload := pointPayload(p, nil)
	if err := s.index.UpsertPoints(ctx, Collection, []vectorindex.Point{{ID: p.ID, Vector: vec, Payload: payload}}); err != nil {
		return fmt.Errorf("hybridstore: %w: upsert vector: %v", errs.ErrUpstreamFailure, err)
	}
	return nil
}

// DeletePoint removes a point's metadata record and its vector.
// Segments referencing id are left dangling and callers must tolerate
// them; no audit event is recorded for the deletion.
func (s *Store) DeletePoint(ctx context.Context, id int64) error {
	if err := s.kv.Delete(pointKey(id)); err != nil {
		return fmt.Errorf("hybridstore: %w: delete point metadata: %v", errs.ErrUpstreamFailure, err)
	}
	if err := s.index.DeletePoints(ctx, Collection, []int64{id}); err != nil {
		return fmt.Errorf("hybridstore: %w: delete point vector: %v", errs.ErrUpstreamFailure, err)
	}
	return nil
}

// AddSegment creates the edge fromID -> toID under both its inbound and
// outbound keys. Both ids must be non-zero. If only one of the two
// paired writes succeeds, it attempts to undo the other and reports an
// inconsistency to the audit sink rather than leave a half-edge behind.
func (s *Store) AddSegment(ctx context.Context, fromID, toID int64) (int64, error) {
	if fromID == 0 || toID == 0 {
		return 0, fmt.Errorf("hybridstore: %w: fromId and toId are required", errs.ErrInvalidInput)
	}

	seg := Segment{ID: s.allocator.Next(idalloc.KindSegment), FromID: fromID, ToID: toID, Weight: 1.0}

	inKey := segInKey(fromID, toID)
	outKey := segOutKey(toID, fromID)

	if err := s.kv.PutJSON(inKey, seg); err != nil {
		return 0, fmt.Errorf("hybridstore: %w: write inbound segment: %v", errs.ErrUpstreamFailure, err)
	}
	if err := s.kv.PutJSON(outKey, seg); err != nil {
		// Undo the half-written edge before reporting.
		if undoErr := s.kv.Delete(inKey); undoErr != nil {
			s.logger.Error().Err(undoErr).Str("key", inKey).Msg("failed to roll back half-written segment")
		}
		s.reportInconsistency(ctx, inKey, "segment outbound write failed after inbound write succeeded")
		return 0, fmt.Errorf("hybridstore: %w: write outbound segment: %v", errs.ErrUpstreamFailure, err)
	}

	return seg.ID, nil
}

// DeleteSegment deletes both halves of the edge fromID -> toID,
// succeeding only if both were present.
func (s *Store) DeleteSegment(ctx context.Context, fromID, toID int64) error {
	inKey := segInKey(fromID, toID)
	outKey := segOutKey(toID, fromID)

	inExists, err := s.kv.Exists(inKey)
	if err != nil {
		return fmt.Errorf("hybridstore: %w: %v", errs.ErrUpstreamFailure, err)
	}
	outExists, err := s.kv.Exists(outKey)
	if err != nil {
		return fmt.Errorf("hybridstore: %w: %v", errs.ErrUpstreamFailure, err)
	}
	if !inExists || !outExists {
		return fmt.Errorf("hybridstore: %w: segment %d->%d", errs.ErrNotFound, fromID, toID)
	}

	if err := s.kv.Delete(inKey); err != nil {
		return fmt.Errorf("hybridstore: %w: delete inbound segment: %v", errs.ErrUpstreamFailure, err)
	}
	if err := s.kv.Delete(outKey); err != nil {
		s.reportInconsistency(ctx, outKey, "segment outbound delete failed after inbound delete succeeded")
		return fmt.Errorf("hybridstore: %w: delete outbound segment: %v", errs.ErrUpstreamFailure, err)
	}
	return nil
}

func (s *Store) reportInconsistency(ctx context.Context, key, detail string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Event{Kind: audit.KindInconsistency, Key: key, Detail: detail}); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to record inconsistency event")
	}
}

// Search runs a filtered similarity search. If Query is text, a vector
// is obtained from the embedding provider using the configured
// embedding type. Results come back in the index's score order,
// descending; nothing is re-sorted here.
func (s *Store) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	vector := req.QueryVector
	if vector == nil {
		if req.Query == "" {
			return nil, fmt.Errorf("hybridstore: %w: query or queryVector is required", errs.ErrInvalidInput)
		}
		embeddingType := req.EmbeddingType
		if embeddingType == "" {
			embeddingType = s.embeddingType
		}
		embedded, err := s.embedder.Embed(ctx, embeddingType, []string{req.Query})
		if err != nil {
			return nil, fmt.Errorf("hybridstore: %w: embed query: %v", errs.ErrUpstreamFailure, err)
		}
		if len(embedded) != 1 {
			return nil, fmt.Errorf("hybridstore: %w", errs.ErrEmbeddingMismatch)
		}
		vector = embedded[0]
	}

	filter := vectorindex.Filter{}
	if req.SingularityID != nil {
		filter["singularityId"] = *req.SingularityID
	}
	if req.Dimension != nil {
		filter["dimension"] = *req.Dimension
	}
	if req.Layer != nil {
		filter["layer"] = *req.Layer
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	results, err := s.index.Search(ctx, Collection, vector, filter, limit, req.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("hybridstore: %w: %v", errs.ErrUpstreamFailure, err)
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{ID: r.ID, Score: r.Score, Payload: r.Payload}
	}
	return hits, nil
}

// GetPoint reads a Point's metadata straight from the kv store, without
// consulting the vector index. Used by the ingestion pipeline and admin
// tooling to confirm a write landed.
func (s *Store) GetPoint(id int64) (Point, bool, error) {
	var p Point
	ok, err := s.kv.GetJSON(pointKey(id), &p)
	if err != nil {
		return Point{}, false, fmt.Errorf("hybridstore: %w: %v", errs.ErrUpstreamFailure, err)
	}
	return p, ok, nil
}

// GetSegmentID looks up the id of the segment from->to, reading its
// inbound record. Used by callers (the ingestion pipeline) that need the
// id AddPoint's auto-created segment was assigned, which AddPoint itself
// does not surface.
func (s *Store) GetSegmentID(ctx context.Context, fromID, toID int64) (int64, bool, error) {
	var seg Segment
	ok, err := s.kv.GetJSON(segInKey(fromID, toID), &seg)
	if err != nil {
		return 0, false, fmt.Errorf("hybridstore: %w: %v", errs.ErrUpstreamFailure, err)
	}
	return seg.ID, ok, nil
}

// Embedder exposes the configured embedding provider so collaborators
// (the ingestion pipeline) that must batch-embed fragment content
// themselves can reuse the same upstream the store uses for single-text
// embeds.
func (s *Store) Embedder() embedding.Provider { return s.embedder }
