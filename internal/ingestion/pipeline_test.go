package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/hybridstore/internal/embedding"
	"github.com/spherical-ai/hybridstore/internal/errs"
	"github.com/spherical-ai/hybridstore/internal/hybridstore"
	"github.com/spherical-ai/hybridstore/internal/idalloc"
	"github.com/spherical-ai/hybridstore/internal/kv"
	"github.com/spherical-ai/hybridstore/internal/observability"
	"github.com/spherical-ai/hybridstore/internal/parsers"
	"github.com/spherical-ai/hybridstore/internal/vectorindex"
)

func newTestPipeline(t *testing.T) (*Pipeline, *hybridstore.Store) {
	t.Helper()
	kvStore := kv.NewMemoryStore()
	index := vectorindex.NewMemoryIndex()
	provider := embedding.NewMockProvider(16)
	alloc, err := idalloc.NewAllocator(kvStore)
	require.NoError(t, err)
	logger := observability.DefaultLogger()

	store, err := hybridstore.New(kvStore, index, provider, alloc, nil, logger, hybridstore.Config{VectorSize: 16})
	require.NoError(t, err)

	registry := parsers.NewRegistry(
		parsers.NewJSONParser(0, true),
		parsers.NewOWLParser(),
		parsers.NewTextParser(0, 0),
	)

	return New(registry, store, logger, Config{}), store
}

func TestPipeline_TextIngestionCreatesResourceAndFragments(t *testing.T) {
	pipeline, store := newTestPipeline(t)
	ctx := context.Background()

	payload := "Alpha alpha alpha alpha alpha.\n\nBeta beta beta beta beta beta.\n\nShort."

	result, err := pipeline.Ingest(ctx, Request{
		Payload:     []byte(payload),
		ResourceID:  "doc-1",
		ContentType: "text",
	})
	require.NoError(t, err)

	assert.Equal(t, "text", result.ParserType)
	assert.NotZero(t, result.ResourcePointID)
	assert.Equal(t, len(result.FragmentPointIDs), result.TotalFragments)
	assert.Equal(t, len(result.FragmentPointIDs), len(result.SegmentIDs))

	resourcePoint, ok, err := store.GetPoint(result.ResourcePointID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, hybridstore.DimensionResource, resourcePoint.Dimension)

	for _, fid := range result.FragmentPointIDs {
		fp, ok, err := store.GetPoint(fid)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, hybridstore.DimensionFragment, fp.Dimension)
	}
}

func TestPipeline_EmptyPayloadFailsBeforeWrites(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	_, err := pipeline.Ingest(context.Background(), Request{Payload: nil, ResourceID: "r"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestPipeline_WhitespaceOnlyPayloadIsEmptyParse(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	_, err := pipeline.Ingest(context.Background(), Request{
		Payload:     []byte("   \n\n   "),
		ResourceID:  "r",
		ContentType: "text",
	})
	assert.ErrorIs(t, err, errs.ErrEmptyParse)
}

func TestPipeline_AutoSelectsJSONParser(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	result, err := pipeline.Ingest(context.Background(), Request{
		Payload:     []byte(`{"user":{"name":"Alice","bio":"Software engineer with passion for AI"}}`),
		ResourceID:  "doc-json",
		ContentType: "auto",
	})
	require.NoError(t, err)
	assert.Equal(t, "json", result.ParserType)
	assert.True(t, result.TotalFragments >= 2)
}

func TestPipeline_FragmentOrderMatchesParseOrder(t *testing.T) {
	pipeline, store := newTestPipeline(t)
	payload := "Alpha alpha alpha alpha alpha alpha alpha alpha alpha alpha.\n\n" +
		"Beta beta beta beta beta beta beta beta beta beta beta beta.\n\n" +
		"Gamma gamma gamma gamma gamma gamma gamma gamma gamma gamma."

	result, err := pipeline.Ingest(context.Background(), Request{
		Payload:     []byte(payload),
		ResourceID:  "doc-order",
		ContentType: "text",
	})
	require.NoError(t, err)
	require.Len(t, result.FragmentPointIDs, 3)

	for i, fid := range result.FragmentPointIDs {
		fp, ok, err := store.GetPoint(fid)
		require.NoError(t, err)
		require.True(t, ok)
		expectedWeight := 1.0 / float64(i+1)
		assert.InDelta(t, expectedWeight, fp.Weight, 1e-9)
	}
}
