package idalloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/hybridstore/internal/kv"
)

func TestAllocator_MonotonicFreshStore(t *testing.T) {
	store := kv.NewMemoryStore()
	a, err := NewAllocator(store)
	require.NoError(t, err)

	var last int64
	for i := 0; i < 100; i++ {
		id := a.Next(KindPoint)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestAllocator_RecoversHighWaterMarkOnBoot(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Put("point:5", []byte(`{"id":5}`)))
	require.NoError(t, store.Put("point:42", []byte(`{"id":42}`)))
	require.NoError(t, store.PutJSON("seg:out:2:1", map[string]any{"id": 9}))

	a, err := NewAllocator(store)
	require.NoError(t, err)

	assert.Greater(t, a.Next(KindPoint), int64(42))
	assert.Greater(t, a.Next(KindSegment), int64(9))
}

func TestAllocator_ConcurrentIssueIsStrictlyIncreasing(t *testing.T) {
	store := kv.NewMemoryStore()
	a, err := NewAllocator(store)
	require.NoError(t, err)

	const n = 500
	ids := make([]int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i] = a.Next(KindPoint)
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
}
