package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/bus"
	"github.com/loqalabs/loqa-narrator/internal/protocol"
	"github.com/nats-io/nats.go"
)

// BusEngine drives a remote speech host over NATS. Playback state is tracked
// locally from the commands it sends and the results the host publishes.
//
// The engine pins one host: the first one heard from, replaced by whichever
// host acknowledges an utterance. Requests are addressed to the pinned host
// and voice lists from other hosts are ignored. A pinned host that stops
// answering is dropped and the next host heard from takes over.
type BusEngine struct {
	bus     *bus.Client
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	host     string
	voices   []Voice
	active   *busPlayback
	paused   bool
	watchers voiceWatchers
	subs     []*nats.Subscription
}

type busPlayback struct {
	id      string
	results chan Result
	done    chan struct{}
}

func NewBusEngine(busClient *bus.Client, timeout time.Duration, log *slog.Logger) (*BusEngine, error) {
	e := &BusEngine{
		bus:     busClient,
		timeout: timeout,
		logger:  log.With(slog.String("component", "bus-engine")),
	}
	resultSub, err := busClient.Conn().Subscribe(protocol.SubjectResult, e.handleResult)
	if err != nil {
		return nil, fmt.Errorf("subscribe results: %w", err)
	}
	e.subs = append(e.subs, resultSub)

	voicesSub, err := busClient.Conn().Subscribe(protocol.SubjectVoices, e.handleVoices)
	if err != nil {
		_ = resultSub.Drain()
		return nil, fmt.Errorf("subscribe voices: %w", err)
	}
	e.subs = append(e.subs, voicesSub)
	return e, nil
}

func (e *BusEngine) Close() error {
	for _, sub := range e.subs {
		_ = sub.Drain()
	}
	return e.Cancel()
}

func (e *BusEngine) Supported() bool {
	return e.bus.Healthy()
}

// Host returns the pinned speech host, empty while none is known.
func (e *BusEngine) Host() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.host
}

// subject addresses base to the pinned host, or to the host queue group.
func (e *BusEngine) subject(base string) (string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host == "" {
		return base, ""
	}
	return protocol.HostSubject(base, e.host), e.host
}

func (e *BusEngine) pinLocked(hostID string) {
	if hostID == "" || hostID == e.host {
		return
	}
	e.logger.Info("speech host selected", slog.String("host_id", hostID), slog.String("previous", e.host))
	e.host = hostID
}

// unpin drops hostID when a request to it found no responder or timed out.
func (e *BusEngine) unpin(hostID string, err error) {
	if hostID == "" || !unreachable(err) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host == hostID {
		e.logger.Warn("speech host unreachable", slog.String("host_id", hostID), slogError(err))
		e.host = ""
	}
}

func unreachable(err error) bool {
	return errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (e *BusEngine) ListVoices(ctx context.Context) ([]Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	subject, pinned := e.subject(protocol.SubjectVoicesList)
	var list protocol.VoiceList
	if err := e.bus.RequestJSON(ctx, subject, struct{}{}, &list); err != nil {
		e.unpin(pinned, err)
		return nil, err
	}
	voices := fromWire(list.Voices)
	e.mu.Lock()
	e.pinLocked(list.HostID)
	e.voices = voices
	e.mu.Unlock()
	return voices, nil
}

func (e *BusEngine) WatchVoices(ctx context.Context) <-chan []Voice {
	return e.watchers.add(ctx)
}

func (e *BusEngine) handleVoices(msg *nats.Msg) {
	var list protocol.VoiceList
	if err := json.Unmarshal(msg.Data, &list); err != nil {
		e.logger.Warn("failed to decode voice list", slogError(err))
		return
	}
	voices := fromWire(list.Voices)
	e.mu.Lock()
	if e.host == "" {
		e.pinLocked(list.HostID)
	}
	if list.HostID != e.host {
		e.mu.Unlock()
		return
	}
	changed := !sameVoices(e.voices, voices)
	e.voices = voices
	e.mu.Unlock()
	if changed {
		e.watchers.publish(voices)
	}
}

func (e *BusEngine) Speak(ctx context.Context, req Request) (<-chan Result, error) {
	if err := e.Cancel(); err != nil {
		e.logger.Warn("failed to cancel previous utterance", slogError(err))
	}

	pb := &busPlayback{
		id:      req.ID,
		results: make(chan Result, 1),
		done:    make(chan struct{}),
	}
	// Registered before the request so an early result is not lost.
	e.mu.Lock()
	e.active = pb
	e.paused = false
	e.mu.Unlock()

	wire := protocol.SpeakRequest{
		UtteranceID: req.ID,
		Text:        req.Text,
		Rate:        req.Rate,
		Pitch:       req.Pitch,
		Timestamp:   time.Now().UTC(),
	}
	if req.Voice != nil {
		wire.Voice = req.Voice.Name
		wire.Language = req.Voice.Language
	}

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	subject, pinned := e.subject(protocol.SubjectSpeak)
	var ack protocol.SpeakAck
	err := e.bus.RequestJSON(rctx, subject, wire, &ack)
	if err != nil {
		e.unpin(pinned, err)
	} else if !ack.Accepted {
		reason := ack.Error
		if reason == "" {
			reason = "not accepted"
		}
		err = errors.New(reason)
	}
	if err != nil {
		e.mu.Lock()
		if e.active == pb {
			e.active = nil
		}
		close(pb.done)
		e.mu.Unlock()
		return nil, fmt.Errorf("speech host rejected utterance: %w", err)
	}
	e.mu.Lock()
	e.pinLocked(ack.HostID)
	e.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			e.sendControl(protocol.ControlCancel, pb.id)
			e.finish(pb, &PlaybackError{Code: CodeInterrupted})
		case <-pb.done:
		}
	}()
	return pb.results, nil
}

func (e *BusEngine) handleResult(msg *nats.Msg) {
	var res protocol.SpeakResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		e.logger.Warn("failed to decode speak result", slogError(err))
		return
	}
	e.mu.Lock()
	pb := e.active
	e.mu.Unlock()
	if pb == nil || pb.id != res.UtteranceID {
		return
	}
	var err error
	if !res.Completed {
		err = &PlaybackError{Code: res.ErrorCode}
	}
	e.finish(pb, err)
}

func (e *BusEngine) finish(pb *busPlayback, err error) {
	e.mu.Lock()
	select {
	case <-pb.done:
		e.mu.Unlock()
		return
	default:
	}
	if e.active == pb {
		e.active = nil
		e.paused = false
	}
	close(pb.done)
	e.mu.Unlock()

	pb.results <- Result{Err: err}
	close(pb.results)
}

func (e *BusEngine) sendControl(action, id string) error {
	return e.bus.PublishJSON(protocol.SubjectControl, protocol.ControlRequest{UtteranceID: id, Action: action})
}

func (e *BusEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil || e.paused {
		return nil
	}
	if err := e.sendControl(protocol.ControlPause, e.active.id); err != nil {
		return err
	}
	e.paused = true
	return nil
}

func (e *BusEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil || !e.paused {
		return nil
	}
	if err := e.sendControl(protocol.ControlResume, e.active.id); err != nil {
		return err
	}
	e.paused = false
	return nil
}

func (e *BusEngine) Cancel() error {
	e.mu.Lock()
	pb := e.active
	e.mu.Unlock()
	if pb == nil {
		return nil
	}
	err := e.sendControl(protocol.ControlCancel, pb.id)
	e.finish(pb, &PlaybackError{Code: CodeInterrupted})
	return err
}

func (e *BusEngine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

func (e *BusEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil && e.paused
}

// ToWire converts voices to their protocol form.
func ToWire(voices []Voice) []protocol.VoiceInfo {
	out := make([]protocol.VoiceInfo, 0, len(voices))
	for _, v := range voices {
		out = append(out, protocol.VoiceInfo{Name: v.Name, Language: v.Language})
	}
	return out
}

func fromWire(voices []protocol.VoiceInfo) []Voice {
	out := make([]Voice, 0, len(voices))
	for _, v := range voices {
		out = append(out, Voice{Name: v.Name, Language: v.Language})
	}
	return out
}

var _ Engine = (*BusEngine)(nil)
