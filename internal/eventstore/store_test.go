package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	es, err := Open(ctx, config.EventStoreConfig{RetentionMode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if es.Persistent() {
		t.Fatal("ephemeral store must not hold a database")
	}
	if err := es.Record(ctx, Record{SessionID: "s", Kind: "voice.status"}); err != nil {
		t.Fatalf("ephemeral record: %v", err)
	}
	records, err := es.Records(ctx, "s", 10)
	if err != nil || len(records) != 0 {
		t.Fatalf("expected nothing stored, got %v %v", records, err)
	}
}

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{Path: filepath.Join(t.TempDir(), "narrator.db"), RetentionMode: "session"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	if err := es.OpenSession(ctx, "session-123", "narrator"); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := es.Record(ctx, Record{SessionID: "session-123", TraceID: "abc", Kind: "voice.status", Payload: []byte(`{"status":"idle"}`)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	// unknown sessions are created on demand
	if err := es.Record(ctx, Record{SessionID: "session-456", Kind: "voice.status"}); err != nil {
		t.Fatalf("record new session: %v", err)
	}

	records, err := es.Records(ctx, "session-123", 10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Kind != "voice.status" || records[0].TraceID != "abc" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	if string(records[0].Payload) != `{"status":"idle"}` {
		t.Fatalf("unexpected payload: %s", records[0].Payload)
	}
}

func TestRecordRequiresSession(t *testing.T) {
	cfg := config.EventStoreConfig{Path: filepath.Join(t.TempDir(), "narrator.db"), RetentionMode: "session"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.Record(context.Background(), Record{Kind: "voice.status"}); err == nil {
		t.Fatal("expected error for record without session")
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{Path: filepath.Join(t.TempDir(), "narrator.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.OpenSession(ctx, "old-session", "narrator"); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := es.Record(ctx, Record{SessionID: "old-session", Kind: "voice.status"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.OpenSession(ctx, "new-session", "narrator"); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := es.Record(ctx, Record{SessionID: "new-session", Kind: "voice.status"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := es.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	old, err := es.Records(ctx, "old-session", 10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("expected old session pruned")
	}
	fresh, err := es.Records(ctx, "new-session", 10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("expected new session kept, got %d records", len(fresh))
	}
}
