// Package engine wires the hybrid store, the ingestion pipeline, the
// cache core, and the audit sink together behind one facade built from
// a single Config. It is the seam HTTP/RPC controllers sit behind, and
// what cmd/hybridstore-cli and cmd/hybridstore-demo both construct at
// startup.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spherical-ai/hybridstore/internal/audit"
	"github.com/spherical-ai/hybridstore/internal/cache"
	"github.com/spherical-ai/hybridstore/internal/config"
	"github.com/spherical-ai/hybridstore/internal/embedding"
	"github.com/spherical-ai/hybridstore/internal/hybridstore"
	"github.com/spherical-ai/hybridstore/internal/idalloc"
	"github.com/spherical-ai/hybridstore/internal/ingestion"
	"github.com/spherical-ai/hybridstore/internal/kv"
	"github.com/spherical-ai/hybridstore/internal/observability"
	"github.com/spherical-ai/hybridstore/internal/parsers"
	"github.com/spherical-ai/hybridstore/internal/vectorindex"
)

// Engine bundles the fully wired core: the hybrid store, the ingestion
// pipeline, the cache core, and the audit sink, built from one Config.
type Engine struct {
	Store         *hybridstore.Store
	Pipeline      *ingestion.Pipeline
	Cache         *cache.Core
	ResponseCache *cache.ResponseCache
	Audit         audit.Sink
	Logger        *observability.Logger

	auditDB     *sql.DB
	auditSink   *audit.SQLSink
	redisClient *cache.RedisClient
}

// New builds an Engine from cfg. When cfg.Embedding.Provider is "mock" (the
// default, and what the demo binary and tests use), no network calls are
// made; "http" wires embedding.HTTPProvider against cfg.Embedding's
// OpenRouter-style settings.
func New(cfg *config.Config) (*Engine, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "hybridstore",
	})

	store := kv.NewMemoryStore()
	index := vectorindex.NewMemoryIndex()

	var provider embedding.Provider
	if cfg.Embedding.Provider == "http" {
		p, err := embedding.NewHTTPProvider(embedding.Config{
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: build embedding provider: %w", err)
		}
		provider = p
	} else {
		provider = embedding.NewMockProvider(cfg.Embedding.Dimension)
	}

	allocator, err := idalloc.NewAllocator(store)
	if err != nil {
		return nil, fmt.Errorf("engine: build id allocator: %w", err)
	}
	if cfg.KV.CompactOnBoot {
		if err := store.Compact(); err != nil {
			return nil, fmt.Errorf("engine: compact kv store: %w", err)
		}
	}

	auditDB, auditStore, err := openAuditStore(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("engine: open audit store: %w", err)
	}
	auditSink := audit.NewSQLSink(observability.WithComponent(logger, "audit"), auditStore, audit.Config{
		BufferSize:    cfg.Audit.BufferSize,
		FlushInterval: 0,
		Async:         true,
	})

	distance := vectorindex.DistanceCosine
	if cfg.VectorIndex.Distance == "dot" {
		distance = vectorindex.DistanceDot
	}

	hybridStore, err := hybridstore.New(store, index, provider, allocator, auditSink, observability.WithComponent(logger, "hybridstore"), hybridstore.Config{
		EmbeddingType: cfg.Embedding.EmbeddingType,
		VectorSize:    cfg.VectorIndex.VectorSize,
		Distance:      distance,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: build hybrid store: %w", err)
	}

	// Structured parsers probe first; text accepts nearly anything, so
	// it has to be the catch-all at the end of the auto-detect order.
	registry := parsers.NewRegistry(
		parsers.NewJSONParser(cfg.Ingestion.JSONMaxDepth, cfg.Ingestion.JSONIncludeArrays),
		parsers.NewOWLParser(),
		parsers.NewTextParser(cfg.Ingestion.MinParagraphLength, cfg.Ingestion.MaxParagraphLength),
	)

	pipeline := ingestion.New(registry, hybridStore, observability.WithComponent(logger, "ingestion"), ingestion.Config{
		EmbeddingType: cfg.Embedding.EmbeddingType,
	})

	var redisClient *cache.RedisClient
	var responseCache *cache.ResponseCache
	if cfg.Cache.ResponseCacheEnabled {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: build redis client: %w", err)
		}
		responseCache = cache.NewResponseCache(redisClient, observability.WithComponent(logger, "response-cache"), cache.ResponseCacheConfig{
			DefaultTTL: cfg.Cache.ResponseCacheTTL,
			Enabled:    true,
		})
	}

	return &Engine{
		Store:         hybridStore,
		Pipeline:      pipeline,
		Cache:         cache.NewCore(),
		ResponseCache: responseCache,
		Audit:         auditSink,
		Logger:        logger,
		auditDB:       auditDB,
		auditSink:     auditSink,
		redisClient:   redisClient,
	}, nil
}

// Close stops the background audit flush loop and releases its database
// handle, if any.
func (e *Engine) Close() error {
	if e.auditSink != nil {
		e.auditSink.Stop()
	}
	if e.redisClient != nil {
		_ = e.redisClient.Close()
	}
	if e.auditDB != nil {
		return e.auditDB.Close()
	}
	return nil
}

// openAuditStore opens the configured audit backend, creating the
// audit_events schema if it is missing. "postgres" selects Postgres;
// any other driver value opens SQLite. The *sql.DB and audit.Store are
// nil only when an error is returned.
func openAuditStore(cfg config.AuditConfig) (*sql.DB, audit.Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if _, err := db.Exec(audit.PostgresSchema); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("create audit schema: %w", err)
		}
		return db, audit.NewPostgresStore(db), nil
	default:
		db, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if _, err := db.Exec(audit.SQLiteSchema); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("create audit schema: %w", err)
		}
		return db, audit.NewSQLiteStore(db), nil
	}
}

// Search is a convenience wrapper so callers that only need full-text
// search don't have to reach into Store directly. When a ResponseCache is
// configured it fronts the call, memoizing whole result sets keyed by
// req's filterable fields.
func (e *Engine) Search(ctx context.Context, req hybridstore.SearchRequest) ([]hybridstore.SearchHit, error) {
	if e.ResponseCache == nil {
		return e.Store.Search(ctx, req)
	}

	cacheReq := cache.SearchCacheRequest{
		SingularityID:  req.SingularityID,
		Dimension:      req.Dimension,
		Layer:          req.Layer,
		Query:          req.Query,
		Limit:          req.Limit,
		ScoreThreshold: req.ScoreThreshold,
	}
	if cached, ok := e.ResponseCache.Get(ctx, cacheReq); ok {
		var hits []hybridstore.SearchHit
		if err := json.Unmarshal(cached.Payload, &hits); err == nil {
			return hits, nil
		}
	}

	hits, err := e.Store.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(hits); err == nil {
		_ = e.ResponseCache.Set(ctx, cacheReq, cache.SearchCacheResult{Payload: payload})
	}
	return hits, nil
}
