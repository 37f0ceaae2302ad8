package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndex_SearchOrdersByScoreDescending(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.CreateCollection("fragments", 3, DistanceCosine))

	ctx := context.Background()
	require.NoError(t, idx.UpsertPoints(ctx, "fragments", []Point{
		{ID: 1, Vector: []float32{1, 0, 0}, Payload: map[string]any{"dimension": 1}},
		{ID: 2, Vector: []float32{0, 1, 0}, Payload: map[string]any{"dimension": 1}},
		{ID: 3, Vector: []float32{0.9, 0.1, 0}, Payload: map[string]any{"dimension": 1}},
	}))

	results, err := idx.Search(ctx, "fragments", []float32{1, 0, 0}, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(3), results[1].ID)
	assert.Equal(t, int64(2), results[2].ID)
}

func TestMemoryIndex_SearchFilterBySingularityAndDimension(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.CreateCollection("fragments", 2, DistanceCosine))
	require.NoError(t, idx.CreatePayloadIndex("fragments", "singularityId"))
	require.NoError(t, idx.CreatePayloadIndex("fragments", "dimension"))

	ctx := context.Background()
	require.NoError(t, idx.UpsertPoints(ctx, "fragments", []Point{
		{ID: 1001, Vector: []float32{1, 0}, Payload: map[string]any{"dimension": 0}},
		{ID: 1002, Vector: []float32{1, 0}, Payload: map[string]any{"dimension": 1, "singularityId": int64(7)}},
		{ID: 1003, Vector: []float32{1, 0}, Payload: map[string]any{"dimension": 1, "singularityId": int64(8)}},
	}))

	results, err := idx.Search(ctx, "fragments", []float32{1, 0}, Filter{"singularityId": int64(7), "dimension": 1}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1002), results[0].ID)
}

func TestMemoryIndex_ScoreThresholdExcludesLowScores(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.CreateCollection("c", 2, DistanceCosine))

	ctx := context.Background()
	require.NoError(t, idx.UpsertPoints(ctx, "c", []Point{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0, 1}},
	}))

	results, err := idx.Search(ctx, "c", []float32{1, 0}, nil, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestMemoryIndex_DeletePoints(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.CreateCollection("c", 2, DistanceDot))

	ctx := context.Background()
	require.NoError(t, idx.UpsertPoints(ctx, "c", []Point{{ID: 1, Vector: []float32{1, 1}}}))
	require.NoError(t, idx.DeletePoints(ctx, "c", []int64{1}))

	results, err := idx.Search(ctx, "c", []float32{1, 1}, nil, 10, -1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndex_CreatePayloadIndexIsIdempotent(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.CreateCollection("c", 2, DistanceCosine))
	require.NoError(t, idx.CreatePayloadIndex("c", "dimension"))
	require.NoError(t, idx.CreatePayloadIndex("c", "dimension"))
}

func TestMemoryIndex_DimensionMismatchRejected(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.CreateCollection("c", 4, DistanceCosine))
	err := idx.UpsertPoints(context.Background(), "c", []Point{{ID: 1, Vector: []float32{1, 0}}})
	assert.Error(t, err)
}
