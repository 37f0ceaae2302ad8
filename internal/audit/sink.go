// Package audit implements the reconciliation/audit sink the hybrid
// store reports inconsistency events (such as a half-written segment)
// to. Events ride a buffered channel drained by a background flush
// loop, with a synchronous fallback when the buffer is full.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spherical-ai/hybridstore/internal/observability"
)

// Kind distinguishes the events this sink records.
type Kind string

const (
	KindInconsistency  Kind = "inconsistency"
	KindPointCreated   Kind = "point_created"
	KindPointUpdated   Kind = "point_updated"
	KindPointDeleted   Kind = "point_deleted"
	KindSegmentCreated Kind = "segment_created"
	KindSegmentDeleted Kind = "segment_deleted"
	KindIngestionStart Kind = "ingestion_started"
	KindIngestionDone  Kind = "ingestion_completed"
)

// Event is one audit record.
// ID is a uuid rather than the int64 Point/Segment id space: audit events
// are not part of the graph and have no need to share that allocator.
type Event struct {
	ID         uuid.UUID
	Kind       Kind
	Key        string
	Detail     string
	OccurredAt time.Time
}

// Sink is the contract hybridstore depends on; decoupling it
// from *SQLSink lets tests pass a no-op or in-memory implementation.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Store persists audit events; SQLSink's lower layer so either a Postgres
// (lib/pq) or SQLite (mattn/go-sqlite3) *sql.DB can back it.
type Store interface {
	SaveEvent(ctx context.Context, event Event) error
	SaveEvents(ctx context.Context, events []Event) error
}

// Config configures a SQLSink.
type Config struct {
	BufferSize    int
	FlushInterval time.Duration
	Async         bool
}

// DefaultConfig returns default sink configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 1000, FlushInterval: 5 * time.Second, Async: true}
}

// SQLSink buffers audit events and flushes them to a Store in batches.
type SQLSink struct {
	logger *observability.Logger
	store  Store
	buffer chan Event
	config Config
	stopCh chan struct{}
}

// NewSQLSink creates a sink; when config.Async is set it starts the
// background flush loop immediately.
func NewSQLSink(logger *observability.Logger, store Store, config Config) *SQLSink {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	s := &SQLSink{
		logger: logger,
		store:  store,
		buffer: make(chan Event, config.BufferSize),
		config: config,
		stopCh: make(chan struct{}),
	}

	if config.Async {
		go s.runFlushLoop()
	}

	return s
}

// Record enqueues event, falling back to a synchronous write if the
// buffer is full.
func (s *SQLSink) Record(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if !s.config.Async {
		return s.writeEvent(ctx, event)
	}

	select {
	case s.buffer <- event:
		return nil
	default:
		s.logger.Warn().Msg("audit buffer full, writing synchronously")
		return s.writeEvent(ctx, event)
	}
}

func (s *SQLSink) writeEvent(ctx context.Context, event Event) error {
	if s.store == nil {
		s.logger.Info().Str("kind", string(event.Kind)).Str("key", event.Key).Msg("audit event (no store)")
		return nil
	}
	return s.store.SaveEvent(ctx, event)
}

func (s *SQLSink) runFlushLoop() {
	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	var batch []Event
	for {
		select {
		case event := <-s.buffer:
			batch = append(batch, event)
			if len(batch) >= 100 {
				s.flushBatch(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = nil
			}
		case <-s.stopCh:
			for {
				select {
				case event := <-s.buffer:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						s.flushBatch(batch)
					}
					return
				}
			}
		}
	}
}

func (s *SQLSink) flushBatch(batch []Event) {
	if s.store == nil {
		for _, event := range batch {
			s.logger.Info().Str("kind", string(event.Kind)).Str("key", event.Key).Msg("audit event (batch, no store)")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.SaveEvents(ctx, batch); err != nil {
		s.logger.Error().Err(err).Int("count", len(batch)).Msg("failed to flush audit batch")
		return
	}
	s.logger.Debug().Int("count", len(batch)).Msg("flushed audit batch")
}

// Stop drains and stops the background flush loop.
func (s *SQLSink) Stop() {
	close(s.stopCh)
}

// PostgresStore persists audit events to Postgres via lib/pq, using the
// schema audit_events(id, occurred_at, kind, key, detail).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-opened *sql.DB (opened with the
// "postgres" driver registered by lib/pq's side-effect import).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SaveEvent inserts one audit event.
func (p *PostgresStore) SaveEvent(ctx context.Context, event Event) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, occurred_at, kind, key, detail) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.OccurredAt, string(event.Kind), event.Key, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// SaveEvents inserts a batch of audit events inside one transaction.
func (p *PostgresStore) SaveEvents(ctx context.Context, events []Event) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audit_events (id, occurred_at, kind, key, detail) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("audit: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.ExecContext(ctx, event.ID, event.OccurredAt, string(event.Kind), event.Key, event.Detail); err != nil {
			return fmt.Errorf("audit: batch insert: %w", err)
		}
	}
	return tx.Commit()
}

// SQLiteStore persists audit events to a local SQLite file via
// mattn/go-sqlite3, for single-process deployments and the demo binary
// that would rather not stand up Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-opened *sql.DB (opened with the
// "sqlite3" driver registered by mattn/go-sqlite3's side-effect import).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SaveEvent inserts one audit event.
func (s *SQLiteStore) SaveEvent(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, occurred_at, kind, key, detail) VALUES (?, ?, ?, ?, ?)`,
		event.ID.String(), event.OccurredAt, string(event.Kind), event.Key, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// SaveEvents inserts a batch of audit events inside one transaction.
func (s *SQLiteStore) SaveEvents(ctx context.Context, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audit_events (id, occurred_at, kind, key, detail) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("audit: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.ExecContext(ctx, event.ID.String(), event.OccurredAt, string(event.Kind), event.Key, event.Detail); err != nil {
			return fmt.Errorf("audit: batch insert: %w", err)
		}
	}
	return tx.Commit()
}

// SQLiteSchema is the DDL run before handing a SQLite *sql.DB to
// NewSQLiteStore.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	occurred_at DATETIME NOT NULL,
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	detail TEXT
);`

// PostgresSchema is the Postgres equivalent; a real deployment would
// run this from a migration instead.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	detail TEXT
);`

var (
	_ Sink  = (*SQLSink)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
