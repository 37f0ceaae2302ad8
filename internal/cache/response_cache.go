package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spherical-ai/hybridstore/internal/observability"
)

// SearchCacheRequest is the subset of a hybrid-store search call that
// determines its cache key.
type SearchCacheRequest struct {
	SingularityID  *int64
	Dimension      *int
	Layer          *int
	Query          string
	Limit          int
	ScoreThreshold float32
}

// SearchCacheResult is whatever the caller wants memoized for a request;
// it is opaque to ResponseCache, which only marshals/unmarshals it.
type SearchCacheResult struct {
	Payload json.RawMessage `json:"payload"`
}

// ResponseCache memoizes whole search responses through a Client. It is a
// coarser, optional layer in front of the hybrid store's search
// endpoint, distinct from the in-process per-key Core.
type ResponseCache struct {
	client Client
	logger *observability.Logger
	config ResponseCacheConfig
}

// ResponseCacheConfig configures the response cache.
type ResponseCacheConfig struct {
	DefaultTTL time.Duration
	KeyPrefix  string
	Enabled    bool
}

// DefaultResponseCacheConfig returns default cache configuration.
func DefaultResponseCacheConfig() ResponseCacheConfig {
	return ResponseCacheConfig{
		DefaultTTL: 5 * time.Minute,
		KeyPrefix:  "search:response:",
		Enabled:    true,
	}
}

// NewResponseCache creates a response cache over any Client backend —
// Redis in production, MemoryClient in tests and single-process
// deployments.
func NewResponseCache(client Client, logger *observability.Logger, config ResponseCacheConfig) *ResponseCache {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "search:response:"
	}
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	return &ResponseCache{client: client, logger: logger, config: config}
}

// CacheKey builds a deterministic key from a search request's fields.
func (c *ResponseCache) CacheKey(req SearchCacheRequest) string {
	parts := req.Query + "|"
	if req.SingularityID != nil {
		parts += fmt.Sprintf("s:%d|", *req.SingularityID)
	}
	if req.Dimension != nil {
		parts += fmt.Sprintf("d:%d|", *req.Dimension)
	}
	if req.Layer != nil {
		parts += fmt.Sprintf("l:%d|", *req.Layer)
	}
	parts += fmt.Sprintf("limit:%d|thresh:%f", req.Limit, req.ScoreThreshold)

	hash := sha256.Sum256([]byte(parts))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:16])
}

type cachedResponse struct {
	Result    SearchCacheResult `json:"result"`
	CachedAt  time.Time         `json:"cached_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Get retrieves a cached response if available and unexpired.
func (c *ResponseCache) Get(ctx context.Context, req SearchCacheRequest) (SearchCacheResult, bool) {
	if !c.config.Enabled || c.client == nil {
		return SearchCacheResult{}, false
	}

	key := c.CacheKey(req)
	data, ok, err := c.client.Get(ctx, key)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("response cache get error")
		return SearchCacheResult{}, false
	}
	if !ok {
		return SearchCacheResult{}, false
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to unmarshal cached response")
		return SearchCacheResult{}, false
	}
	if time.Now().After(cached.ExpiresAt) {
		return SearchCacheResult{}, false
	}

	c.logger.Debug().Str("key", key).Msg("response cache hit")
	return cached.Result, true
}

// Set caches a search response under req's derived key.
func (c *ResponseCache) Set(ctx context.Context, req SearchCacheRequest, result SearchCacheResult) error {
	if !c.config.Enabled || c.client == nil {
		return nil
	}

	key := c.CacheKey(req)
	ttl := c.config.DefaultTTL

	cached := cachedResponse{
		Result:    result,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("response cache: marshal: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to cache response")
		return err
	}
	c.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("cached search response")
	return nil
}

// InvalidateAll drops every cached response. The key hash does not
// expose a singularity-scoped prefix, so a point or segment write that
// may have changed search results invalidates the whole namespace.
func (c *ResponseCache) InvalidateAll(ctx context.Context) error {
	if !c.config.Enabled || c.client == nil {
		return nil
	}
	c.logger.Info().Msg("invalidating all cached search responses")
	return c.client.DeleteByPrefix(ctx, c.config.KeyPrefix)
}
