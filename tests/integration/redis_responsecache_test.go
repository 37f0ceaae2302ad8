// Response-cache integration test against a live Redis container,
// skipped automatically when Docker is unavailable.

package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical-ai/hybridstore/internal/cache"
	"github.com/spherical-ai/hybridstore/internal/observability"
)

func startRedis(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cleanup := func() { _ = container.Terminate(ctx) }
	return host + ":" + port.Port(), cleanup
}

// TestResponseCache_RoundTripsThroughRedis confirms a search() response
// memoized through ResponseCache.Set is served back byte-for-byte by
// Get, and that a request outside the memoized key misses cleanly.
func TestResponseCache_RoundTripsThroughRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !isDockerAvailable() {
		t.Skip("docker not available")
	}

	addr, cleanup := startRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := cache.NewRedisClient(cache.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	rc := cache.NewResponseCache(client, observability.DefaultLogger(), cache.ResponseCacheConfig{
		DefaultTTL: time.Minute,
		Enabled:    true,
	})

	singularity := int64(7)
	req := cache.SearchCacheRequest{
		SingularityID: &singularity,
		Query:         "segments connect points",
		Limit:         10,
	}

	payload, err := json.Marshal([]map[string]any{{"id": 1, "score": 0.92}})
	require.NoError(t, err)

	_, ok := rc.Get(ctx, req)
	require.False(t, ok)

	require.NoError(t, rc.Set(ctx, req, cache.SearchCacheResult{Payload: payload}))

	cached, ok := rc.Get(ctx, req)
	require.True(t, ok)
	require.JSONEq(t, string(payload), string(cached.Payload))

	missReq := req
	missReq.Query = "an entirely different query"
	_, ok = rc.Get(ctx, missReq)
	require.False(t, ok)
}
