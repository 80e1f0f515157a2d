// Package hostregistry tracks the speech hosts reachable over the bus, using
// the voice-list broadcasts each host sends on change and on every heartbeat.
package hostregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/bus"
	"github.com/loqalabs/loqa-narrator/internal/protocol"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type HostInfo struct {
	ID        string    `json:"id"`
	Supported bool      `json:"supported"`
	Voices    int       `json:"voices"`
	LastSeen  time.Time `json:"last_seen"`
	Healthy   bool      `json:"healthy"`
}

type Registry struct {
	log     *slog.Logger
	bus     *bus.Client
	timeout time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	hosts map[string]*HostInfo

	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    *nats.Subscription
	reg    metric.Registration
}

// New subscribes to host broadcasts. A host that stays silent for longer
// than timeout is marked unhealthy but kept in the listing.
func New(ctx context.Context, busClient *bus.Client, timeout time.Duration, log *slog.Logger) (*Registry, error) {
	ctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		log:     log.With(slog.String("component", "host-registry")),
		bus:     busClient,
		timeout: timeout,
		now:     time.Now,
		hosts:   make(map[string]*HostInfo),
		cancel:  cancel,
	}

	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slogError(err))
	}

	sub, err := busClient.Conn().Subscribe(protocol.SubjectVoices, r.handleVoices)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("subscribe %s: %w", protocol.SubjectVoices, err)
	}
	r.sub = sub

	r.wg.Add(1)
	go r.monitorHealth(ctx)
	return r, nil
}

func (r *Registry) Close() {
	r.cancel()
	if r.sub != nil {
		_ = r.sub.Drain()
	}
	r.wg.Wait()
	if r.reg != nil {
		_ = r.reg.Unregister()
	}
}

func (r *Registry) monitorHealth(ctx context.Context) {
	defer r.wg.Done()
	interval := r.timeout / 2
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evaluateHealth()
		}
	}
}

func (r *Registry) handleVoices(msg *nats.Msg) {
	var list protocol.VoiceList
	if err := json.Unmarshal(msg.Data, &list); err != nil {
		r.log.Warn("invalid voice list message", slogError(err))
		return
	}
	if list.HostID == "" {
		return
	}
	r.observe(list)
}

// observe records a broadcast. Liveness is judged by local receive time so
// host clock skew does not matter.
func (r *Registry) observe(list protocol.VoiceList) {
	r.mu.Lock()
	defer r.mu.Unlock()

	host, ok := r.hosts[list.HostID]
	if !ok {
		host = &HostInfo{ID: list.HostID}
		r.hosts[list.HostID] = host
		r.log.Info("speech host discovered", slog.String("host_id", list.HostID), slog.Int("voices", len(list.Voices)))
	}
	host.Supported = list.Supported
	host.Voices = len(list.Voices)
	host.LastSeen = r.now()
	host.Healthy = true
}

func (r *Registry) evaluateHealth() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, host := range r.hosts {
		if host.Healthy && now.Sub(host.LastSeen) > r.timeout {
			host.Healthy = false
			r.log.Warn("speech host went silent", slog.String("host_id", host.ID), slog.Time("last_seen", host.LastSeen))
		}
	}
}

// Healthy reports whether at least one healthy host can synthesize speech.
func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, host := range r.hosts {
		if host.Healthy && host.Supported {
			return true
		}
	}
	return false
}

// Hosts lists known hosts ordered by ID.
func (r *Registry) Hosts() []HostInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]HostInfo, 0, len(r.hosts))
	for _, host := range r.hosts {
		out = append(out, *host)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) initMetrics() error {
	meter := otel.Meter("github.com/loqalabs/loqa-narrator/hostregistry")
	known, err := meter.Int64ObservableGauge("narrator.speech_hosts.known", metric.WithDescription("Speech hosts seen on the bus"))
	if err != nil {
		return err
	}
	healthy, err := meter.Int64ObservableGauge("narrator.speech_hosts.healthy", metric.WithDescription("Speech hosts heard from within the timeout"))
	if err != nil {
		return err
	}
	r.reg, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		total, live := r.counts()
		obs.ObserveInt64(known, total)
		obs.ObserveInt64(healthy, live)
		return nil
	}, known, healthy)
	return err
}

func (r *Registry) counts() (int64, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live int64
	for _, host := range r.hosts {
		if host.Healthy {
			live++
		}
	}
	return int64(len(r.hosts)), live
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
