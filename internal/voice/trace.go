package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/eventstore"
	"github.com/loqalabs/loqa-narrator/internal/speech"
	"go.opentelemetry.io/otel/trace"
)

// TraceKind is the event store kind used for status traces.
const TraceKind = "voice.status"

// EngineState is the engine-side view captured in a trace.
type EngineState struct {
	Supported bool `json:"supported"`
	Speaking  bool `json:"speaking"`
	Paused    bool `json:"paused"`
}

// TraceEntry is a diagnostic dump of the controller.
type TraceEntry struct {
	SessionID     string         `json:"session_id"`
	Time          time.Time      `json:"time"`
	Engine        EngineState    `json:"engine"`
	Voices        []speech.Voice `json:"voices"`
	SelectedVoice string         `json:"selected_voice"`
	Status        Status         `json:"status"`
}

// TraceSink accepts diagnostic entries.
type TraceSink interface {
	Trace(ctx context.Context, entry TraceEntry) error
}

// TraceFunc adapts a function to TraceSink.
type TraceFunc func(ctx context.Context, entry TraceEntry) error

func (f TraceFunc) Trace(ctx context.Context, entry TraceEntry) error { return f(ctx, entry) }

type logSink struct {
	logger *slog.Logger
}

// NewLogSink writes entries to the structured log.
func NewLogSink(logger *slog.Logger) TraceSink {
	return logSink{logger: logger}
}

func (s logSink) Trace(ctx context.Context, e TraceEntry) error {
	voices := make([]string, 0, len(e.Voices))
	for _, v := range e.Voices {
		voices = append(voices, v.Name+" ("+v.Language+")")
	}
	s.logger.InfoContext(ctx, "voice status",
		slog.String("session_id", e.SessionID),
		slog.Group("engine",
			slog.Bool("supported", e.Engine.Supported),
			slog.Bool("speaking", e.Engine.Speaking),
			slog.Bool("paused", e.Engine.Paused),
		),
		slog.Any("voices", voices),
		slog.String("selected_voice", e.SelectedVoice),
		slog.String("status", e.Status.String()),
	)
	return nil
}

// Recorder is the part of eventstore.Store the store sink needs.
type Recorder interface {
	Record(ctx context.Context, rec eventstore.Record) error
}

type storeSink struct {
	rec Recorder
}

// NewStoreSink persists entries as event store records.
func NewStoreSink(rec Recorder) TraceSink {
	return storeSink{rec: rec}
}

func (s storeSink) Trace(ctx context.Context, e TraceEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	rec := eventstore.Record{
		SessionID: e.SessionID,
		Kind:      TraceKind,
		Payload:   payload,
		CreatedAt: e.Time,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		rec.TraceID = sc.TraceID().String()
	}
	return s.rec.Record(ctx, rec)
}

type multiSink []TraceSink

// MultiSink fans entries out to every sink; all sinks are attempted.
func MultiSink(sinks ...TraceSink) TraceSink {
	return multiSink(sinks)
}

func (m multiSink) Trace(ctx context.Context, e TraceEntry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Trace(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
