package speech

import (
	"context"
	"sync"
	"time"
)

// MockEngine is an in-memory engine. With a zero duration utterances stay
// active until Complete or Fail is called, which makes it usable as a test
// double; otherwise they finish on their own after the configured duration.
type MockEngine struct {
	mu          sync.Mutex
	voices      []Voice
	unsupported bool
	duration    time.Duration
	active      *mockPlayback
	paused      bool
	watchers    voiceWatchers

	speakErr    error
	requests    []Request
	cancelCalls int
}

type mockPlayback struct {
	req       Request
	results   chan Result
	done      chan struct{}
	timer     *time.Timer
	remaining time.Duration
	started   time.Time
}

func NewMockEngine(voices []Voice, duration time.Duration) *MockEngine {
	return &MockEngine{
		voices:   append([]Voice(nil), voices...),
		duration: duration,
	}
}

func (m *MockEngine) Supported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unsupported
}

// SetSupported toggles the capability flag.
func (m *MockEngine) SetSupported(ok bool) {
	m.mu.Lock()
	m.unsupported = !ok
	m.mu.Unlock()
}

// SetSpeakError makes subsequent Speak calls fail synchronously with err.
func (m *MockEngine) SetSpeakError(err error) {
	m.mu.Lock()
	m.speakErr = err
	m.mu.Unlock()
}

func (m *MockEngine) ListVoices(_ context.Context) ([]Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Voice(nil), m.voices...), nil
}

func (m *MockEngine) WatchVoices(ctx context.Context) <-chan []Voice {
	return m.watchers.add(ctx)
}

// SetVoices replaces the voice list and notifies watchers.
func (m *MockEngine) SetVoices(voices []Voice) {
	m.mu.Lock()
	m.voices = append([]Voice(nil), voices...)
	m.mu.Unlock()
	m.watchers.publish(voices)
}

// Watchers returns the number of live WatchVoices subscriptions.
func (m *MockEngine) Watchers() int {
	return m.watchers.count()
}

func (m *MockEngine) Speak(ctx context.Context, req Request) (<-chan Result, error) {
	m.mu.Lock()
	if m.speakErr != nil {
		err := m.speakErr
		m.mu.Unlock()
		return nil, err
	}
	m.requests = append(m.requests, req)
	prev := m.active
	pb := &mockPlayback{
		req:       req,
		results:   make(chan Result, 1),
		done:      make(chan struct{}),
		remaining: m.duration,
	}
	m.active = pb
	m.paused = false
	if m.duration > 0 {
		pb.started = time.Now()
		pb.timer = time.AfterFunc(m.duration, func() { m.finish(pb, nil) })
	}
	m.mu.Unlock()

	if prev != nil {
		m.finish(prev, &PlaybackError{Code: CodeInterrupted})
	}

	go func() {
		select {
		case <-ctx.Done():
			m.finish(pb, &PlaybackError{Code: CodeInterrupted})
		case <-pb.done:
		}
	}()
	return pb.results, nil
}

func (m *MockEngine) finish(pb *mockPlayback, err error) {
	m.mu.Lock()
	select {
	case <-pb.done:
		m.mu.Unlock()
		return
	default:
	}
	if pb.timer != nil {
		pb.timer.Stop()
	}
	if m.active == pb {
		m.active = nil
		m.paused = false
	}
	close(pb.done)
	m.mu.Unlock()

	pb.results <- Result{Err: err}
	close(pb.results)
}

// Complete finishes the active utterance successfully.
func (m *MockEngine) Complete() {
	m.mu.Lock()
	pb := m.active
	m.mu.Unlock()
	if pb != nil {
		m.finish(pb, nil)
	}
}

// Fail finishes the active utterance with the given engine code.
func (m *MockEngine) Fail(code string) {
	m.mu.Lock()
	pb := m.active
	m.mu.Unlock()
	if pb != nil {
		m.finish(pb, &PlaybackError{Code: code})
	}
}

func (m *MockEngine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.paused {
		return nil
	}
	m.paused = true
	if pb := m.active; pb.timer != nil && pb.timer.Stop() {
		pb.remaining -= time.Since(pb.started)
	}
	return nil
}

func (m *MockEngine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || !m.paused {
		return nil
	}
	m.paused = false
	if pb := m.active; pb.timer != nil {
		if pb.remaining < 0 {
			pb.remaining = 0
		}
		pb.started = time.Now()
		pb.timer = time.AfterFunc(pb.remaining, func() { m.finish(pb, nil) })
	}
	return nil
}

func (m *MockEngine) Cancel() error {
	m.mu.Lock()
	m.cancelCalls++
	pb := m.active
	m.mu.Unlock()
	if pb != nil {
		m.finish(pb, &PlaybackError{Code: CodeInterrupted})
	}
	return nil
}

func (m *MockEngine) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

func (m *MockEngine) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && m.paused
}

// Requests returns every request submitted so far.
func (m *MockEngine) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// CancelCalls returns how many times Cancel was invoked.
func (m *MockEngine) CancelCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCalls
}

var _ Engine = (*MockEngine)(nil)
