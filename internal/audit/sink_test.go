package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/hybridstore/internal/observability"
)

type fakeStore struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeStore) SaveEvent(_ context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) SaveEvents(_ context.Context, events []Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestSQLSink_SyncRecordWritesImmediately(t *testing.T) {
	store := &fakeStore{}
	sink := NewSQLSink(observability.DefaultLogger(), store, Config{Async: false})

	require.NoError(t, sink.Record(context.Background(), Event{Kind: KindInconsistency, Key: "seg:out:1:2"}))
	assert.Equal(t, 1, store.count())
}

func TestSQLSink_AsyncRecordFlushesOnTicker(t *testing.T) {
	store := &fakeStore{}
	sink := NewSQLSink(observability.DefaultLogger(), store, Config{Async: true, FlushInterval: 20 * time.Millisecond, BufferSize: 10})
	defer sink.Stop()

	require.NoError(t, sink.Record(context.Background(), Event{Kind: KindPointCreated, Key: "point:1"}))

	require.Eventually(t, func() bool {
		return store.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSQLSink_EventGetsAnIDWhenUnset(t *testing.T) {
	store := &fakeStore{}
	sink := NewSQLSink(observability.DefaultLogger(), store, Config{Async: false})

	require.NoError(t, sink.Record(context.Background(), Event{Kind: KindInconsistency, Key: "k"}))
	require.Len(t, store.events, 1)
	assert.NotEmpty(t, store.events[0].ID.String())
}
