// Package eventstore keeps diagnostic trace records of narrator sessions in
// SQLite.
package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/config"
	_ "modernc.org/sqlite"
)

// Record is one stored trace entry.
type Record struct {
	ID        int64
	SessionID string
	TraceID   string
	Kind      string
	Payload   []byte
	CreatedAt time.Time
}

// Store wraps a SQLite-backed trace store. In ephemeral mode it accepts and
// discards everything.
type Store struct {
	db    *sql.DB
	cfg   config.EventStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.EventStoreConfig, log *slog.Logger) (*Store, error) {
	log = log.With(slog.String("component", "eventstore"))
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("event store vacuum failed", slog.String("error", err.Error()))
		}
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("event store prune on start failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS narration_sessions (
    session_id TEXT PRIMARY KEY,
    runtime TEXT,
    started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS trace_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    trace_id TEXT,
    kind TEXT NOT NULL,
    payload BLOB,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES narration_sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_trace_records_session_created ON trace_records(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Persistent reports whether records actually reach disk.
func (s *Store) Persistent() bool {
	return s != nil && s.db != nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenSession registers a narrator session. Re-registering is harmless.
func (s *Store) OpenSession(ctx context.Context, sessionID, runtime string) error {
	if !s.Persistent() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO narration_sessions(session_id, runtime, started_at)
		 VALUES(?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET runtime=excluded.runtime`,
		sessionID, runtime, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("open session %s: %w", sessionID, err)
	}
	return nil
}

// Record writes a trace record. The owning session row is created on demand.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if !s.Persistent() {
		return nil
	}
	if rec.SessionID == "" {
		return errors.New("trace record without session id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO narration_sessions(session_id, runtime, started_at) VALUES(?, '', ?)
		 ON CONFLICT(session_id) DO NOTHING`, rec.SessionID, rec.CreatedAt); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO trace_records(session_id, trace_id, kind, payload, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		rec.SessionID, rec.TraceID, rec.Kind, rec.Payload, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert trace record: %w", err)
	}
	err = tx.Commit()
	return err
}

// Records retrieves up to limit records for a session ordered ascending by time.
func (s *Store) Records(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if !s.Persistent() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, trace_id, kind, payload, created_at
		 FROM trace_records WHERE session_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var traceID sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &r.SessionID, &traceID, &r.Kind, &r.Payload, &created); err != nil {
			return nil, err
		}
		r.TraceID = traceID.String
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune applies retention_days and max_sessions (called on startup and can be scheduled).
func (s *Store) Prune(ctx context.Context) error {
	if !s.Persistent() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
		if _, err = tx.ExecContext(ctx, `DELETE FROM trace_records WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM narration_sessions WHERE started_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxSessions > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM narration_sessions WHERE session_id IN (
			SELECT session_id FROM narration_sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
