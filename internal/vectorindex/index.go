// Package vectorindex implements the vector index adapter: named
// collections of (id, vector, payload) tuples supporting cosine/dot kNN
// with metadata equality filters. Each collection has its own dimension
// and distance function, plus a payload-index side structure that
// narrows candidates before the linear scan instead of scanning every
// vector on every search.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/spherical-ai/hybridstore/internal/errs"
)

// Distance selects the similarity function a collection scores with.
type Distance string

const (
	DistanceCosine Distance = "cosine"
	DistanceDot    Distance = "dot"
)

// Point is one upserted (id, vector, payload) tuple. Payload values are
// scalars (string, number, bool).
type Point struct {
	ID      int64
	Vector  []float32
	Payload map[string]any
}

// Result is one search hit.
type Result struct {
	ID      int64
	Score   float32
	Payload map[string]any
}

// Filter is an AND of field-equality predicates evaluated against a
// point's payload.
type Filter map[string]any

// Index is the contract the hybrid store consumes.
type Index interface {
	CreateCollection(name string, vectorSize int, distance Distance) error
	CollectionExists(name string) bool
	DeleteCollection(name string) error
	ListCollections() []string

	UpsertPoints(ctx context.Context, collection string, points []Point) error
	DeletePoints(ctx context.Context, collection string, ids []int64) error
	Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float32) ([]Result, error)

	CreatePayloadIndex(collection, field string) error
}

// MemoryIndex is the default in-process Index implementation.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	vectorSize int
	distance   Distance
	points     map[int64]Point
	// payloadIndex[field][value] -> set of point ids, built lazily by
	// CreatePayloadIndex and kept in sync on every Upsert/Delete.
	payloadIndex map[string]map[any]map[int64]struct{}
}

// NewMemoryIndex creates an empty vector index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*collection)}
}

// CreateCollection registers a new named collection with a fixed vector
// size and distance function. Re-creating an existing collection is a
// no-op, matching createPayloadIndex's idempotent contract in spirit.
func (idx *MemoryIndex) CreateCollection(name string, vectorSize int, distance Distance) error {
	if name == "" {
		return fmt.Errorf("vectorindex: %w: collection name is required", errs.ErrInvalidInput)
	}
	if vectorSize <= 0 {
		return fmt.Errorf("vectorindex: %w: vectorSize must be positive", errs.ErrInvalidInput)
	}
	if distance != DistanceCosine && distance != DistanceDot {
		return fmt.Errorf("vectorindex: %w: unknown distance %q", errs.ErrInvalidInput, distance)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.collections[name]; ok {
		return nil
	}
	idx.collections[name] = &collection{
		vectorSize:   vectorSize,
		distance:     distance,
		points:       make(map[int64]Point),
		payloadIndex: make(map[string]map[any]map[int64]struct{}),
	}
	return nil
}

// CollectionExists reports whether name has been created.
func (idx *MemoryIndex) CollectionExists(name string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.collections[name]
	return ok
}

// DeleteCollection removes a collection and everything in it.
func (idx *MemoryIndex) DeleteCollection(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.collections, name)
	return nil
}

// ListCollections returns the names of all created collections.
func (idx *MemoryIndex) ListCollections() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	names := make([]string, 0, len(idx.collections))
	for name := range idx.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpsertPoints inserts or overwrites points in collection. Vectors are
// unit-normalized at insert time when the collection uses cosine
// distance, so search can score with a plain dot product.
func (idx *MemoryIndex) UpsertPoints(_ context.Context, name string, points []Point) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	c, ok := idx.collections[name]
	if !ok {
		return fmt.Errorf("vectorindex: %w: collection %q", errs.ErrNotFound, name)
	}

	for _, p := range points {
		if len(p.Vector) != c.vectorSize {
			return fmt.Errorf("vectorindex: %w: collection %q wants dimension %d, got %d for id %d",
				errs.ErrInvalidInput, name, c.vectorSize, len(p.Vector), p.ID)
		}
		vec := p.Vector
		if c.distance == DistanceCosine {
			vec = normalize(vec)
		}
		stored := Point{ID: p.ID, Vector: vec, Payload: p.Payload}

		if old, existed := c.points[p.ID]; existed {
			c.removeFromPayloadIndex(p.ID, old.Payload)
		}
		c.points[p.ID] = stored
		c.addToPayloadIndex(p.ID, p.Payload)
	}
	return nil
}

// DeletePoints removes points by id; absent ids are ignored.
func (idx *MemoryIndex) DeletePoints(_ context.Context, name string, ids []int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	c, ok := idx.collections[name]
	if !ok {
		return fmt.Errorf("vectorindex: %w: collection %q", errs.ErrNotFound, name)
	}
	for _, id := range ids {
		if p, existed := c.points[id]; existed {
			c.removeFromPayloadIndex(id, p.Payload)
			delete(c.points, id)
		}
	}
	return nil
}

// Search returns the top `limit` points scoring at or above
// scoreThreshold, ordered by score descending. filter narrows candidates
// via the payload index of each filtered field that has one before the
// linear scan; fields without an index fall back to an inline predicate
// over the narrowed set.
func (idx *MemoryIndex) Search(_ context.Context, name string, vector []float32, filter Filter, limit int, scoreThreshold float32) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	c, ok := idx.collections[name]
	if !ok {
		return nil, fmt.Errorf("vectorindex: %w: collection %q", errs.ErrNotFound, name)
	}
	if len(vector) != c.vectorSize {
		return nil, fmt.Errorf("vectorindex: %w: query dimension %d, collection %q wants %d",
			errs.ErrInvalidInput, len(vector), name, c.vectorSize)
	}

	query := vector
	if c.distance == DistanceCosine {
		query = normalize(vector)
	}

	candidateIDs := c.candidateIDs(filter)

	type scored struct {
		id      int64
		score   float32
		payload map[string]any
	}
	results := make([]scored, 0, len(candidateIDs))
	for id := range candidateIDs {
		p := c.points[id]
		score := c.score(query, p.Vector)
		if score < scoreThreshold {
			continue
		}
		results = append(results, scored{id: id, score: score, payload: p.Payload})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}

	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{ID: r.id, Score: r.score, Payload: r.payload}
	}
	return out, nil
}

// CreatePayloadIndex builds (or rebuilds) an equality index over field.
// Idempotent: calling it again for a field that already has an index is
// not an error.
func (idx *MemoryIndex) CreatePayloadIndex(name, field string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	c, ok := idx.collections[name]
	if !ok {
		return fmt.Errorf("vectorindex: %w: collection %q", errs.ErrNotFound, name)
	}

	index := make(map[any]map[int64]struct{})
	for id, p := range c.points {
		v, ok := p.Payload[field]
		if !ok {
			continue
		}
		key := normalizeScalar(v)
		if index[key] == nil {
			index[key] = make(map[int64]struct{})
		}
		index[key][id] = struct{}{}
	}
	c.payloadIndex[field] = index
	return nil
}

// candidateIDs narrows the search space using any indexed fields present
// in filter, intersecting across fields; fields with no index fall back
// to a full scan pass layered on top of the narrowed set.
func (c *collection) candidateIDs(filter Filter) map[int64]struct{} {
	if len(filter) == 0 {
		all := make(map[int64]struct{}, len(c.points))
		for id := range c.points {
			all[id] = struct{}{}
		}
		return all
	}

	var narrowed map[int64]struct{}
	unindexedFields := make(Filter)

	for field, want := range filter {
		index, hasIndex := c.payloadIndex[field]
		if !hasIndex {
			unindexedFields[field] = want
			continue
		}
		matchSet := index[normalizeScalar(want)]
		if narrowed == nil {
			narrowed = make(map[int64]struct{}, len(matchSet))
			for id := range matchSet {
				narrowed[id] = struct{}{}
			}
		} else {
			for id := range narrowed {
				if _, ok := matchSet[id]; !ok {
					delete(narrowed, id)
				}
			}
		}
	}

	if narrowed == nil {
		narrowed = make(map[int64]struct{}, len(c.points))
		for id := range c.points {
			narrowed[id] = struct{}{}
		}
	}

	if len(unindexedFields) == 0 {
		return narrowed
	}

	out := make(map[int64]struct{}, len(narrowed))
	for id := range narrowed {
		if matchesFilter(c.points[id].Payload, unindexedFields) {
			out[id] = struct{}{}
		}
	}
	return out
}

func matchesFilter(payload map[string]any, filter Filter) bool {
	for field, want := range filter {
		got, ok := payload[field]
		if !ok || normalizeScalar(got) != normalizeScalar(want) {
			return false
		}
	}
	return true
}

// normalizeScalar coerces comparable JSON-ish scalars (notably numeric
// types that may arrive as int, int64, or float64) to a single comparable
// form so payload-index keys and filter values line up.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return v
	}
}

func (c *collection) addToPayloadIndex(id int64, payload map[string]any) {
	for field, index := range c.payloadIndex {
		v, ok := payload[field]
		if !ok {
			continue
		}
		key := normalizeScalar(v)
		if index[key] == nil {
			index[key] = make(map[int64]struct{})
		}
		index[key][id] = struct{}{}
	}
}

func (c *collection) removeFromPayloadIndex(id int64, payload map[string]any) {
	for field, index := range c.payloadIndex {
		v, ok := payload[field]
		if !ok {
			continue
		}
		key := normalizeScalar(v)
		if set, ok := index[key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(index, key)
			}
		}
	}
}

func (c *collection) score(query, candidate []float32) float32 {
	switch c.distance {
	case DistanceDot:
		return dot(query, candidate)
	default:
		// Both vectors are already unit-normalized at insert/search time,
		// so dot product doubles as cosine similarity.
		return dot(query, candidate)
	}
}

func dot(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

var _ Index = (*MemoryIndex)(nil)
