// Package speechhost exposes a local speech engine on the NATS bus so that
// narrators in other processes can drive it through speech.BusEngine.
package speechhost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/bus"
	"github.com/loqalabs/loqa-narrator/internal/config"
	"github.com/loqalabs/loqa-narrator/internal/protocol"
	"github.com/loqalabs/loqa-narrator/internal/speech"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Service struct {
	cfg    config.SpeechHostConfig
	bus    *bus.Client
	engine speech.Engine
	tracer trace.Tracer
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	subs   []*nats.Subscription

	mu           sync.Mutex
	active       string
	cancelActive context.CancelFunc
	voices       []speech.Voice
}

func NewService(parent context.Context, cfg config.SpeechHostConfig, busClient *bus.Client, engine speech.Engine, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		engine: engine,
		tracer: otel.Tracer("github.com/loqalabs/loqa-narrator/speechhost"),
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "speech-host"), slog.String("host_id", cfg.HostID)),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	// Unaddressed requests go through the queue group so only one host plays
	// them; controls are broadcast and filtered by utterance id.
	handlers := []struct {
		subject string
		queue   string
		handler nats.MsgHandler
	}{
		{protocol.SubjectSpeak, protocol.QueueSpeechHosts, s.handleSpeak},
		{protocol.HostSubject(protocol.SubjectSpeak, s.cfg.HostID), "", s.handleSpeak},
		{protocol.SubjectControl, "", s.handleControl},
		{protocol.SubjectVoicesList, protocol.QueueSpeechHosts, s.handleVoicesList},
		{protocol.HostSubject(protocol.SubjectVoicesList, s.cfg.HostID), "", s.handleVoicesList},
	}
	for _, h := range handlers {
		var (
			sub *nats.Subscription
			err error
		)
		if h.queue != "" {
			sub, err = s.bus.Conn().QueueSubscribe(h.subject, h.queue, h.handler)
		} else {
			sub, err = s.bus.Conn().Subscribe(h.subject, h.handler)
		}
		if err != nil {
			s.drain()
			return fmt.Errorf("subscribe %s: %w", h.subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	updates := s.engine.WatchVoices(s.ctx)
	if voices, err := s.engine.ListVoices(s.ctx); err != nil {
		s.logger.Warn("initial voice enumeration failed", slogError(err))
	} else {
		s.setVoices(voices)
	}

	s.wg.Add(2)
	go s.forwardVoices(updates)
	go s.runHeartbeat()
	s.announce()
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.drain()
	s.wg.Wait()
	_ = s.engine.Cancel()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || len(s.subs) > 0 }

func (s *Service) drain() {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
}

func (s *Service) setVoices(voices []speech.Voice) {
	s.mu.Lock()
	s.voices = append([]speech.Voice(nil), voices...)
	s.mu.Unlock()
}

func (s *Service) voiceList() protocol.VoiceList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.VoiceList{
		HostID:    s.cfg.HostID,
		Supported: s.engine.Supported(),
		Voices:    speech.ToWire(s.voices),
		Timestamp: time.Now().UTC(),
	}
}

func (s *Service) announce() {
	if err := s.bus.PublishJSON(protocol.SubjectVoices, s.voiceList()); err != nil {
		s.logger.Warn("failed to publish voice list", slogError(err))
	}
}

func (s *Service) forwardVoices(updates <-chan []speech.Voice) {
	defer s.wg.Done()
	for voices := range updates {
		s.setVoices(voices)
		s.announce()
	}
}

func (s *Service) runHeartbeat() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Duration(s.cfg.HeartbeatIntervalMS) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.announce()
		}
	}
}

func (s *Service) handleVoicesList(msg *nats.Msg) {
	data, err := json.Marshal(s.voiceList())
	if err != nil {
		s.logger.Warn("failed to marshal voice list", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to reply voice list", slogError(err))
	}
}

func (s *Service) handleSpeak(msg *nats.Msg) {
	var req protocol.SpeakRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode speak request", slogError(err))
		s.respond(msg, protocol.SpeakAck{Error: "invalid request"})
		return
	}

	ctx, span := s.tracer.Start(s.ctx, "speechhost.speak", trace.WithAttributes(
		attribute.String("utterance.id", req.UtteranceID),
		attribute.String("voice.name", req.Voice),
		attribute.Int("text.length", len(req.Text)),
	))
	uctx, cancel := context.WithCancel(ctx)

	sreq := speech.Request{ID: req.UtteranceID, Text: req.Text, Rate: req.Rate, Pitch: req.Pitch}
	if req.Voice != "" {
		sreq.Voice = &speech.Voice{Name: req.Voice, Language: req.Language}
	}
	results, err := s.engine.Speak(uctx, sreq)
	if err != nil {
		cancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		span.End()
		s.logger.Warn("engine rejected utterance", slogError(err))
		s.respond(msg, protocol.SpeakAck{UtteranceID: req.UtteranceID, Error: err.Error()})
		return
	}

	s.mu.Lock()
	if s.cancelActive != nil {
		s.cancelActive()
	}
	s.active = req.UtteranceID
	s.cancelActive = cancel
	s.mu.Unlock()

	s.respond(msg, protocol.SpeakAck{UtteranceID: req.UtteranceID, Accepted: true})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer span.End()
		defer cancel()

		res, ok := <-results
		out := protocol.SpeakResult{UtteranceID: req.UtteranceID, Completed: true, Timestamp: time.Now().UTC()}
		if ok && res.Err != nil {
			out.Completed = false
			out.ErrorCode = speech.ErrorCode(res.Err)
			span.SetStatus(codes.Error, out.ErrorCode)
		}

		s.mu.Lock()
		if s.active == req.UtteranceID {
			s.active = ""
			s.cancelActive = nil
		}
		s.mu.Unlock()

		if err := s.bus.PublishJSON(protocol.SubjectResult, out); err != nil {
			s.logger.Warn("failed to publish speak result", slogError(err))
		}
	}()
}

func (s *Service) handleControl(msg *nats.Msg) {
	var req protocol.ControlRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode control request", slogError(err))
		return
	}
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if req.UtteranceID != "" && req.UtteranceID != active {
		return
	}

	var err error
	switch req.Action {
	case protocol.ControlPause:
		err = s.engine.Pause()
	case protocol.ControlResume:
		err = s.engine.Resume()
	case protocol.ControlCancel:
		err = s.engine.Cancel()
	default:
		s.logger.Warn("unknown control action", slog.String("action", req.Action))
		return
	}
	if err != nil {
		s.logger.Warn("control action failed", slog.String("action", req.Action), slogError(err))
	}
}

func (s *Service) respond(msg *nats.Msg, ack protocol.SpeakAck) {
	ack.HostID = s.cfg.HostID
	data, err := json.Marshal(ack)
	if err != nil {
		s.logger.Warn("failed to marshal speak ack", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to reply speak ack", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
