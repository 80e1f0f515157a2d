// Package runtime assembles the narrator process: telemetry, the optional
// NATS bus, the event store, the speech engine, the voice controller and the
// HTTP surface.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/api"
	"github.com/loqalabs/loqa-narrator/internal/bus"
	"github.com/loqalabs/loqa-narrator/internal/config"
	"github.com/loqalabs/loqa-narrator/internal/describe"
	"github.com/loqalabs/loqa-narrator/internal/eventstore"
	"github.com/loqalabs/loqa-narrator/internal/hostregistry"
	"github.com/loqalabs/loqa-narrator/internal/natsserver"
	"github.com/loqalabs/loqa-narrator/internal/speech"
	"github.com/loqalabs/loqa-narrator/internal/speechhost"
	"github.com/loqalabs/loqa-narrator/internal/voice"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
)

type Runtime struct {
	cfg       config.Config
	logger    *slog.Logger
	sessionID string

	telemetry  *telemetry
	nats       *natsserver.EmbeddedServer
	bus        *bus.Client
	store      *eventstore.Store
	engine     speech.Engine
	host       *speechhost.Service
	hosts      *hostregistry.Registry
	controller *voice.Controller
	httpServer *http.Server

	addr    atomic.Value // string
	ready   atomic.Bool
	readyCh chan struct{}
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		sessionID: xid.New().String(),
		readyCh:   make(chan struct{}),
	}
}

// Ready is closed once the HTTP listener accepts connections.
func (r *Runtime) Ready() <-chan struct{} { return r.readyCh }

// Addr returns the bound HTTP address, empty before Ready.
func (r *Runtime) Addr() string {
	addr, _ := r.addr.Load().(string)
	return addr
}

// Start brings every component up, serves HTTP until ctx is done and then
// tears everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	defer r.teardown()

	if err := r.setup(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	r.addr.Store(ln.Addr().String())
	r.httpServer = &http.Server{
		Handler:           r.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		r.ready.Store(false)
		r.logger.Info("runtime stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Closing the controller first sends stream clients a going-away frame.
		r.controller.Close()
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slogError(err))
		}
		return nil
	})

	r.ready.Store(true)
	close(r.readyCh)
	r.logger.Info("runtime started",
		slog.String("addr", r.Addr()),
		slog.String("session_id", r.sessionID),
		slog.String("engine", r.cfg.Engine.Mode),
	)
	return g.Wait()
}

func (r *Runtime) setup(ctx context.Context) error {
	tel, err := setupTelemetry(ctx, r.cfg, r.sessionID, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetry = tel

	if r.cfg.NeedsBus() {
		busCfg := r.cfg.Bus
		if busCfg.Embedded {
			r.nats, err = natsserver.Start(busCfg, r.logger)
			if err != nil {
				return err
			}
			busCfg.Servers = []string{r.nats.ClientURL()}
		}
		r.bus, err = bus.Connect(ctx, busCfg, r.cfg.RuntimeName, r.logger)
		if err != nil {
			return err
		}
	}

	r.store, err = eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	if err := r.store.OpenSession(ctx, r.sessionID, r.cfg.RuntimeName); err != nil {
		r.logger.Warn("failed to register session", slogError(err))
	}

	if r.cfg.Engine.Mode == "bus" {
		r.hosts, err = hostregistry.New(ctx, r.bus, time.Duration(r.cfg.Engine.HostTimeoutMS)*time.Millisecond, r.logger)
		if err != nil {
			return err
		}
	}

	r.engine, err = newEngine(r.cfg.Engine, r.bus, r.logger)
	if err != nil {
		return err
	}

	if r.cfg.SpeechHost.Enabled {
		r.host = speechhost.NewService(ctx, r.cfg.SpeechHost, r.bus, r.engine, r.logger)
		if err := r.host.Start(); err != nil {
			return fmt.Errorf("start speech host: %w", err)
		}
	}

	project := r.cfg.Project
	r.controller = voice.New(r.engine, voice.Options{
		Message: describe.Generate(describe.Project{
			Name:        project.Name,
			Version:     project.Version,
			Description: project.Description,
			Notes:       project.Notes,
		}, project.Components),
		Rate:      r.cfg.Voice.Rate,
		Pitch:     r.cfg.Voice.Pitch,
		Trace:     voice.MultiSink(voice.NewLogSink(r.logger), voice.NewStoreSink(r.store)),
		Logger:    r.logger,
		NoticeTTL: time.Duration(r.cfg.Voice.NoticeTTLMS) * time.Millisecond,
		SessionID: r.sessionID,
	})
	if err := r.controller.Initialize(ctx); err != nil {
		if !errors.Is(err, voice.ErrUnsupported) {
			return fmt.Errorf("initialize voice controller: %w", err)
		}
		r.logger.Warn("speech synthesis unavailable", slogError(err))
	}
	return nil
}

func newEngine(cfg config.EngineConfig, busClient *bus.Client, logger *slog.Logger) (speech.Engine, error) {
	switch cfg.Mode {
	case "exec":
		engine, err := speech.NewExecEngine(speech.ExecConfig{
			Command:       cfg.Command,
			VoicesCommand: cfg.VoicesCommand,
			VoicesDir:     cfg.VoicesDir,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create exec engine: %w", err)
		}
		return engine, nil
	case "bus":
		engine, err := speech.NewBusEngine(busClient, time.Duration(cfg.RequestTimeoutMS)*time.Millisecond, logger)
		if err != nil {
			return nil, fmt.Errorf("create bus engine: %w", err)
		}
		return engine, nil
	default:
		voices := make([]speech.Voice, 0, len(cfg.MockVoices))
		for _, v := range cfg.MockVoices {
			voices = append(voices, speech.Voice{Name: v.Name, Language: v.Language})
		}
		return speech.NewMockEngine(voices, time.Duration(cfg.MockDurationMS)*time.Millisecond), nil
	}
}

func (r *Runtime) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if r.telemetry.metrics != nil {
		mux.Handle("/metrics", r.telemetry.metrics)
	}
	if r.hosts != nil {
		mux.HandleFunc("GET /hosts", r.handleHosts)
	}
	mux.Handle("/", api.New(r.controller, api.Options{
		Title:  r.cfg.Project.Name,
		Logger: r.logger,
	}))
	return mux
}

func (r *Runtime) teardown() {
	if r.controller != nil {
		r.controller.Close()
	}
	if r.host != nil {
		r.host.Close()
	}
	if r.hosts != nil {
		r.hosts.Close()
	}
	if closer, ok := r.engine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			r.logger.Warn("engine close error", slogError(err))
		}
	}
	if r.bus != nil {
		r.bus.Close()
	}
	r.nats.Shutdown()
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("event store close error", slogError(err))
		}
	}
	if r.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.telemetry.shutdown(ctx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.componentsHealthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) componentsHealthy() bool {
	if r.bus != nil && !r.bus.Healthy() {
		return false
	}
	if r.host != nil && !r.host.Healthy() {
		return false
	}
	if r.hosts != nil && !r.hosts.Healthy() {
		return false
	}
	return true
}

func (r *Runtime) handleHosts(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r.hosts.Hosts())
}
