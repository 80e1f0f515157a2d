package voice

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/loqalabs/loqa-narrator/voice"

type metrics struct {
	started   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	voices    atomic.Int64
	reg       metric.Registration
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error
	if m.started, err = meter.Int64Counter("narrator.utterances.started", metric.WithDescription("Utterances accepted by the speech engine")); err != nil {
		return m, err
	}
	if m.completed, err = meter.Int64Counter("narrator.utterances.completed", metric.WithDescription("Utterances that played to the end")); err != nil {
		return m, err
	}
	if m.failed, err = meter.Int64Counter("narrator.utterances.failed", metric.WithDescription("Utterances rejected or aborted by the engine")); err != nil {
		return m, err
	}
	gauge, err := meter.Int64ObservableGauge("narrator.voices.available", metric.WithDescription("Voices reported by the speech engine"))
	if err != nil {
		return m, err
	}
	m.reg, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, m.voices.Load())
		return nil
	}, gauge)
	return m, err
}

func (m *metrics) addStarted(ctx context.Context) {
	if m.started != nil {
		m.started.Add(ctx, 1)
	}
}

func (m *metrics) addCompleted(ctx context.Context) {
	if m.completed != nil {
		m.completed.Add(ctx, 1)
	}
}

func (m *metrics) addFailed(ctx context.Context, stage, code string) {
	if m.failed != nil {
		m.failed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("code", code),
		))
	}
}

func (m *metrics) close() {
	if m.reg != nil {
		_ = m.reg.Unregister()
	}
}
