package hybridstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/hybridstore/internal/embedding"
	"github.com/spherical-ai/hybridstore/internal/errs"
	"github.com/spherical-ai/hybridstore/internal/idalloc"
	"github.com/spherical-ai/hybridstore/internal/kv"
	"github.com/spherical-ai/hybridstore/internal/observability"
	"github.com/spherical-ai/hybridstore/internal/vectorindex"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kvStore := kv.NewMemoryStore()
	index := vectorindex.NewMemoryIndex()
	provider := embedding.NewMockProvider(16)
	alloc, err := idalloc.NewAllocator(kvStore)
	require.NoError(t, err)
	logger := observability.DefaultLogger()

	store, err := New(kvStore, index, provider, alloc, nil, logger, Config{VectorSize: 16})
	require.NoError(t, err)
	return store
}

func TestStore_AddPointThenSearchFindsIt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	singularity := int64(7)
	id, err := store.AddPoint(ctx, nil, Point{
		Layer:         0,
		Dimension:     DimensionFragment,
		SingularityID: &singularity,
		Payload:       "hybrid graph store fragment about caching",
	}, nil)
	require.NoError(t, err)
	assert.NotZero(t, id)

	hits, err := store.Search(ctx, SearchRequest{Query: "hybrid graph store fragment about caching", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, id, hits[0].ID)
}

func TestStore_SearchFilterBySingularityAndDimension(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s1, s2 := int64(1), int64(2)
	id1, err := store.AddPoint(ctx, nil, Point{Dimension: DimensionFragment, SingularityID: &s1, Payload: "alpha content"}, nil)
	require.NoError(t, err)
	_, err = store.AddPoint(ctx, nil, Point{Dimension: DimensionFragment, SingularityID: &s2, Payload: "beta content"}, nil)
	require.NoError(t, err)
	_, err = store.AddPoint(ctx, nil, Point{Dimension: DimensionResource, SingularityID: &s1, Payload: "alpha resource"}, nil)
	require.NoError(t, err)

	dim := DimensionFragment
	hits, err := store.Search(ctx, SearchRequest{Query: "alpha content", SingularityID: &s1, Dimension: &dim, Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id1, hits[0].ID)
}

func TestStore_AddSegmentThenDeleteRoundtrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	from, err := store.AddPoint(ctx, nil, Point{Dimension: DimensionResource, Payload: "resource"}, nil)
	require.NoError(t, err)
	to, err := store.AddPoint(ctx, nil, Point{Dimension: DimensionFragment, Payload: "fragment"}, nil)
	require.NoError(t, err)

	segID, err := store.AddSegment(ctx, from, to)
	require.NoError(t, err)
	assert.NotZero(t, segID)

	var seg Segment
	ok, err := store.kv.GetJSON(segInKey(from, to), &seg)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.kv.GetJSON(segOutKey(to, from), &seg)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.DeleteSegment(ctx, from, to))

	exists, err := store.kv.Exists(segInKey(from, to))
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = store.kv.Exists(segOutKey(to, from))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_AddSegmentRejectsZeroIDs(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddSegment(context.Background(), 0, 5)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestStore_DeleteSegmentNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.DeleteSegment(context.Background(), 111, 222)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_DeletePointRemovesMetadataAndVector(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.AddPoint(ctx, nil, Point{Dimension: DimensionFragment, Payload: "to be deleted"}, nil)
	require.NoError(t, err)

	require.NoError(t, store.DeletePoint(ctx, id))

	_, ok, err := store.GetPoint(id)
	require.NoError(t, err)
	assert.False(t, ok)
}
