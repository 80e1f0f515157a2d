package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/speech"
)

var (
	alex  = speech.Voice{Name: "Alex", Language: "en-US"}
	kyoko = speech.Voice{Name: "Kyoko", Language: "ja-JP"}
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newController(t *testing.T, engine speech.Engine, opts Options) *Controller {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = newLogger()
	}
	if opts.Trace == nil {
		opts.Trace = TraceFunc(func(context.Context, TraceEntry) error { return nil })
	}
	c := New(engine, opts)
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, c *Controller, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := c.Snapshot()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last snapshot %+v", what, snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func consistently(t *testing.T, c *Controller, what string, d time.Duration, cond func(Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if snap := c.Snapshot(); !cond(snap) {
			t.Fatalf("%s violated: %+v", what, snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// scriptedEngine hands results back only when the test says so, which lets a
// superseded utterance report long after it was cancelled.
type scriptedEngine struct {
	mu       sync.Mutex
	speaking bool
	paused   bool
	overlap  bool
	results  []*scriptedResult
	cancels  int
}

type scriptedResult struct {
	once sync.Once
	ch   chan speech.Result
}

func (r *scriptedResult) send(res speech.Result) {
	r.once.Do(func() {
		r.ch <- res
		close(r.ch)
	})
}

func newScriptedController(t *testing.T) (*scriptedEngine, *Controller) {
	t.Helper()
	e := &scriptedEngine{}
	c := newController(t, e, Options{})
	// runs before Close so no watcher is left waiting
	t.Cleanup(e.drain)
	return e, c
}

func (e *scriptedEngine) Supported() bool { return true }

func (e *scriptedEngine) ListVoices(context.Context) ([]speech.Voice, error) {
	return []speech.Voice{alex, kyoko}, nil
}

func (e *scriptedEngine) WatchVoices(ctx context.Context) <-chan []speech.Voice {
	ch := make(chan []speech.Voice)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (e *scriptedEngine) Speak(_ context.Context, _ speech.Request) (<-chan speech.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.speaking {
		e.overlap = true
	}
	e.speaking = true
	e.paused = false
	r := &scriptedResult{ch: make(chan speech.Result, 1)}
	e.results = append(e.results, r)
	return r.ch, nil
}

func (e *scriptedEngine) deliver(i int, res speech.Result) {
	e.mu.Lock()
	r := e.results[i]
	e.mu.Unlock()
	r.send(res)
}

func (e *scriptedEngine) drain() {
	e.mu.Lock()
	pending := append([]*scriptedResult(nil), e.results...)
	e.mu.Unlock()
	for _, r := range pending {
		r.send(speech.Result{Err: &speech.PlaybackError{Code: speech.CodeInterrupted}})
	}
}

func (e *scriptedEngine) Pause() error {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	return nil
}

func (e *scriptedEngine) Resume() error {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	return nil
}

func (e *scriptedEngine) Cancel() error {
	e.mu.Lock()
	e.cancels++
	e.speaking = false
	e.paused = false
	e.mu.Unlock()
	return nil
}

func (e *scriptedEngine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

func (e *scriptedEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking && e.paused
}

func TestInitializeDefaultsSelection(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex, kyoko}, 0)
	c := newController(t, engine, Options{Message: "hello"})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	snap := c.Snapshot()
	if !reflect.DeepEqual(snap.Voices, []speech.Voice{alex, kyoko}) {
		t.Fatalf("unexpected voices %+v", snap.Voices)
	}
	if snap.SelectedVoice != "Alex" {
		t.Fatalf("expected Alex selected, got %q", snap.SelectedVoice)
	}
	if snap.Status != StatusIdle || snap.LastError != "" || !snap.Supported {
		t.Fatalf("unexpected initial state %+v", snap)
	}

	c.SelectVoice("Kyoko")
	if got := c.Snapshot().SelectedVoice; got != "Kyoko" {
		t.Fatalf("expected Kyoko, got %q", got)
	}
	c.SelectVoice("Nonexistent")
	if got := c.Snapshot().SelectedVoice; got != "Kyoko" {
		t.Fatalf("unknown voice changed selection to %q", got)
	}
}

func TestInitializeWithoutSpeechSupport(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	engine.SetSupported(false)
	c := newController(t, engine, Options{Message: "hello"})

	if err := c.Initialize(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	before := c.Snapshot()
	if before.Status != StatusIdle {
		t.Fatalf("expected idle, got %v", before.Status)
	}
	if before.LastError != "Speech synthesis is not supported in this browser." {
		t.Fatalf("unexpected error text %q", before.LastError)
	}
	if engine.Watchers() != 0 {
		t.Fatal("no voice subscription expected without speech support")
	}

	if err := c.Speak(context.Background(), "hello"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported from speak, got %v", err)
	}
	if after := c.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("speak changed state:\nbefore %+v\nafter  %+v", before, after)
	}
	if len(engine.Requests()) != 0 {
		t.Fatal("engine must not receive utterances")
	}
}

func TestVoiceListReplacedNotMerged(t *testing.T) {
	engine := speech.NewMockEngine(nil, 0)
	c := newController(t, engine, Options{})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := c.Snapshot(); len(got.Voices) != 0 || got.SelectedVoice != "" {
		t.Fatalf("expected empty list and no selection, got %+v", got)
	}

	l1 := []speech.Voice{alex, kyoko}
	l2 := []speech.Voice{{Name: "Daniel", Language: "en-GB"}, kyoko}
	c.OnVoiceListChanged(l1)
	c.SelectVoice("Kyoko")
	c.OnVoiceListChanged(l2)

	snap := c.Snapshot()
	if !reflect.DeepEqual(snap.Voices, l2) {
		t.Fatalf("expected exactly L2, got %+v", snap.Voices)
	}
	if snap.SelectedVoice != "Kyoko" {
		t.Fatalf("selection should be preserved, got %q", snap.SelectedVoice)
	}
}

func TestVoiceListFromEngineUpdates(t *testing.T) {
	engine := speech.NewMockEngine(nil, 0)
	c := newController(t, engine, Options{})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	engine.SetVoices([]speech.Voice{kyoko, alex})
	snap := waitFor(t, c, "voices from engine", func(s Snapshot) bool { return len(s.Voices) == 2 })
	if snap.SelectedVoice != "Kyoko" {
		t.Fatalf("expected first delivered voice selected, got %q", snap.SelectedVoice)
	}
}

func TestRateAndPitchParsing(t *testing.T) {
	c := newController(t, speech.NewMockEngine(nil, 0), Options{})
	cases := []struct {
		in   string
		want float64
	}{
		{"abc", 1},
		{"1.5", 1.5},
		{" 0.7 ", 0.7},
		{"3", 3},
		{"NaN", 1},
		{"", 1},
	}
	for _, tc := range cases {
		c.SetRate(tc.in)
		c.SetPitch(tc.in)
		snap := c.Snapshot()
		if snap.Rate != tc.want || snap.Pitch != tc.want {
			t.Fatalf("input %q: expected %v, got rate=%v pitch=%v", tc.in, tc.want, snap.Rate, snap.Pitch)
		}
	}
}

func TestSpeakUsesSelectionAndParameters(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex, kyoko}, 0)
	c := newController(t, engine, Options{})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	c.SelectVoice("Kyoko")
	c.SetRate("1.5")
	c.SetPitch("0.8")

	if err := c.Speak(context.Background(), "Hi"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	reqs := engine.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Text != "Hi" || req.Voice == nil || *req.Voice != kyoko || req.Rate != 1.5 || req.Pitch != 0.8 {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.ID == "" {
		t.Fatal("utterance id missing")
	}
}

func TestSpeakWithoutVoicesUsesEngineDefault(t *testing.T) {
	engine := speech.NewMockEngine(nil, 0)
	c := newController(t, engine, Options{})
	c.SetRate("0")
	if err := c.Speak(context.Background(), "Hi"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	req := engine.Requests()[0]
	if req.Voice != nil {
		t.Fatalf("expected engine default voice, got %+v", req.Voice)
	}
	if req.Rate != 1 {
		t.Fatalf("zero rate should be submitted as 1, got %v", req.Rate)
	}
	if got := c.Snapshot().Rate; got != 0 {
		t.Fatalf("stored rate should stay unclamped, got %v", got)
	}
}

func TestSpeakPauseResumeComplete(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	c := newController(t, engine, Options{})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := c.Speak(context.Background(), "Hi"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if snap := c.Snapshot(); snap.Status != StatusSpeaking || !snap.Speaking || snap.Paused {
		t.Fatalf("expected speaking, got %+v", snap)
	}

	if err := c.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if snap := c.Snapshot(); snap.Status != StatusPaused || !snap.Paused || !snap.Speaking {
		t.Fatalf("expected paused, got %+v", snap)
	}
	if !engine.Paused() {
		t.Fatal("engine should be paused")
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := c.Snapshot().Status; got != StatusSpeaking {
		t.Fatalf("expected speaking after resume, got %v", got)
	}

	engine.Complete()
	snap := waitFor(t, c, "idle after completion", func(s Snapshot) bool { return s.Status == StatusIdle })
	if snap.LastError != "" || snap.Speaking || snap.Paused {
		t.Fatalf("unexpected state after completion %+v", snap)
	}
}

func TestPlaybackErrorSurfacesCode(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	c := newController(t, engine, Options{})
	if err := c.Speak(context.Background(), "Hi"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	engine.Fail("network")
	snap := waitFor(t, c, "playback error", func(s Snapshot) bool { return s.Status == StatusIdle })
	if snap.LastError != "Speech error: network" {
		t.Fatalf("unexpected error %q", snap.LastError)
	}

	if err := c.Speak(context.Background(), "again"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if got := c.Snapshot().LastError; got != "" {
		t.Fatalf("successful speak should clear the error, got %q", got)
	}
	engine.Fail("")
	snap = waitFor(t, c, "playback error", func(s Snapshot) bool { return s.Status == StatusIdle })
	if snap.LastError != "Speech error: unknown" {
		t.Fatalf("unexpected error %q", snap.LastError)
	}
}

func TestSpeakSubmitFailure(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	engine.SetSpeakError(errors.New("engine busy"))
	c := newController(t, engine, Options{})

	err := c.Speak(context.Background(), "Hi")
	var submitErr *SubmitError
	if !errors.As(err, &submitErr) {
		t.Fatalf("expected SubmitError, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Status != StatusIdle {
		t.Fatalf("expected idle, got %v", snap.Status)
	}
	if snap.LastError != "Failed to speak: engine busy" {
		t.Fatalf("unexpected error %q", snap.LastError)
	}
}

func TestSpeakRejectsBlankText(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	c := newController(t, engine, Options{})
	if err := c.Speak(context.Background(), "  \n"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if got := c.Snapshot().LastError; got != MsgEmptyInput {
		t.Fatalf("unexpected error %q", got)
	}
	if len(engine.Requests()) != 0 || engine.CancelCalls() != 0 {
		t.Fatal("blank input must not touch the engine")
	}
}

func TestAtMostOneUtterance(t *testing.T) {
	engine, c := newScriptedController(t)
	for _, text := range []string{"one", "two", "three"} {
		if err := c.Speak(context.Background(), text); err != nil {
			t.Fatalf("speak %q: %v", text, err)
		}
	}
	engine.mu.Lock()
	overlap, cancels := engine.overlap, engine.cancels
	engine.mu.Unlock()
	if overlap {
		t.Fatal("an utterance was submitted while another was active")
	}
	if cancels != 3 {
		t.Fatalf("expected a cancel before every submit, got %d", cancels)
	}
	if got := c.Snapshot().Status; got != StatusSpeaking {
		t.Fatalf("expected speaking, got %v", got)
	}
}

func TestStaleResultIgnored(t *testing.T) {
	engine, c := newScriptedController(t)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := c.Speak(context.Background(), "A"); err != nil {
		t.Fatalf("speak A: %v", err)
	}
	if err := c.Speak(context.Background(), "B"); err != nil {
		t.Fatalf("speak B: %v", err)
	}

	engine.deliver(0, speech.Result{})
	consistently(t, c, "B still speaking", 60*time.Millisecond, func(s Snapshot) bool {
		return s.Status == StatusSpeaking && s.LastError == "" && s.SelectedVoice == "Alex"
	})

	if err := c.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	engine.deliver(1, speech.Result{Err: &speech.PlaybackError{Code: "audio-busy"}})
	snap := waitFor(t, c, "B error", func(s Snapshot) bool { return s.Status == StatusIdle })
	if snap.LastError != "Speech error: audio-busy" {
		t.Fatalf("unexpected error %q", snap.LastError)
	}
}

func TestStoppedUtteranceResultIgnored(t *testing.T) {
	engine, c := newScriptedController(t)
	if err := c.Speak(context.Background(), "A"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	c.Stop()
	if got := c.Snapshot().Status; got != StatusIdle {
		t.Fatalf("stop should flip to idle immediately, got %v", got)
	}
	engine.deliver(0, speech.Result{Err: &speech.PlaybackError{Code: "interrupted"}})
	consistently(t, c, "no error from stopped utterance", 60*time.Millisecond, func(s Snapshot) bool {
		return s.Status == StatusIdle && s.LastError == ""
	})
}

func TestStopIsIdempotent(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	c := newController(t, engine, Options{Message: "hello"})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	before := c.Snapshot()
	c.Stop()
	c.Stop()
	if after := c.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("stop on idle changed state:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestPauseAndResumeAreNoopsOutOfState(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	c := newController(t, engine, Options{})
	if err := c.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got := c.Snapshot().Status; got != StatusIdle {
		t.Fatalf("pause on idle changed status to %v", got)
	}

	if err := c.Speak(context.Background(), "Hi"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := c.Snapshot().Status; got != StatusSpeaking {
		t.Fatalf("resume while speaking changed status to %v", got)
	}
}

func TestLogStatusNotice(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex, kyoko}, 0)
	var entries []TraceEntry
	var mu sync.Mutex
	sink := TraceFunc(func(_ context.Context, e TraceEntry) error {
		mu.Lock()
		entries = append(entries, e)
		mu.Unlock()
		return nil
	})
	c := newController(t, engine, Options{Trace: sink, NoticeTTL: 30 * time.Millisecond, SessionID: "sess-1"})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	c.LogStatus(context.Background())
	if got := c.Snapshot().LastError; got != "Status logged to console" {
		t.Fatalf("unexpected notice %q", got)
	}
	waitFor(t, c, "notice to clear", func(s Snapshot) bool { return s.LastError == "" })

	mu.Lock()
	defer mu.Unlock()
	if len(entries) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(entries))
	}
	e := entries[0]
	if e.SessionID != "sess-1" || e.SelectedVoice != "Alex" || len(e.Voices) != 2 || !e.Engine.Supported {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestLogStatusFailureNotice(t *testing.T) {
	sink := TraceFunc(func(context.Context, TraceEntry) error { return errors.New("disk full") })
	c := newController(t, speech.NewMockEngine(nil, 0), Options{Trace: sink, NoticeTTL: 30 * time.Millisecond})

	c.LogStatus(context.Background())
	if got := c.Snapshot().LastError; got != "Failed to log status: disk full" {
		t.Fatalf("unexpected notice %q", got)
	}
	waitFor(t, c, "notice to clear", func(s Snapshot) bool { return s.LastError == "" })
}

func TestNoticeDoesNotClearLaterError(t *testing.T) {
	c := newController(t, speech.NewMockEngine(nil, 0), Options{NoticeTTL: 20 * time.Millisecond})
	c.LogStatus(context.Background())
	_ = c.Speak(context.Background(), "")
	consistently(t, c, "empty input error kept", 80*time.Millisecond, func(s Snapshot) bool {
		return s.LastError == MsgEmptyInput
	})
}

func TestRunDebugTestLogsBeforeSpeaking(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	var requestsAtTrace = -1
	sink := TraceFunc(func(context.Context, TraceEntry) error {
		requestsAtTrace = len(engine.Requests())
		return nil
	})
	c := newController(t, engine, Options{Trace: sink})
	if err := c.RunDebugTest(context.Background()); err != nil {
		t.Fatalf("debug test: %v", err)
	}
	if requestsAtTrace != 0 {
		t.Fatalf("status must be logged before speaking, saw %d requests", requestsAtTrace)
	}
	reqs := engine.Requests()
	if len(reqs) != 1 || reqs[0].Text != "Debug test: speech synthesis test phrase." {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	if got := c.Snapshot().Status; got != StatusSpeaking {
		t.Fatalf("expected speaking, got %v", got)
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	c := newController(t, speech.NewMockEngine(nil, 0), Options{Message: "first"})
	updates, cancel := c.Subscribe()

	select {
	case snap := <-updates:
		if snap.Message != "first" {
			t.Fatalf("unexpected initial snapshot %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	c.SetMessage("second")
	c.SetMessage("third")
	select {
	case snap := <-updates:
		if snap.Message != "third" {
			t.Fatalf("expected latest snapshot, got %q", snap.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no update")
	}

	cancel()
	if _, ok := <-updates; ok {
		t.Fatal("channel should be closed after cancel")
	}
	cancel()
}

func TestCloseReleasesEngineResources(t *testing.T) {
	engine := speech.NewMockEngine([]speech.Voice{alex}, 0)
	c := New(engine, Options{Logger: newLogger()})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if engine.Watchers() != 1 {
		t.Fatalf("expected one voice subscription, got %d", engine.Watchers())
	}
	updates, _ := c.Subscribe()
	if err := c.Speak(context.Background(), "Hi"); err != nil {
		t.Fatalf("speak: %v", err)
	}

	c.Close()
	c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for engine.Watchers() != 0 || engine.Speaking() {
		if time.Now().After(deadline) {
			t.Fatalf("engine still holds resources: watchers=%d speaking=%v", engine.Watchers(), engine.Speaking())
		}
		time.Sleep(5 * time.Millisecond)
	}
	for range updates {
	}
	if err := c.Speak(context.Background(), "again"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// hangingListEngine never answers a voice enumeration on its own.
type hangingListEngine struct {
	*speech.MockEngine
}

func (e hangingListEngine) ListVoices(ctx context.Context) ([]speech.Voice, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestInitializeBoundsVoiceEnumeration(t *testing.T) {
	mock := speech.NewMockEngine([]speech.Voice{alex}, 0)
	c := newController(t, hangingListEngine{mock}, Options{VoiceListTimeout: 50 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- c.Initialize(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("initialize: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("initialize blocked on a hanging voice enumeration")
	}

	c.SetMessage("still responsive")
	if got := c.Snapshot().Message; got != "still responsive" {
		t.Fatalf("unexpected message %q", got)
	}

	mock.SetVoices([]speech.Voice{kyoko})
	waitFor(t, c, "voice list from watch", func(s Snapshot) bool {
		return len(s.Voices) == 1 && s.SelectedVoice == "Kyoko"
	})
}
