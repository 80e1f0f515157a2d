// Package voice implements the narrator's playback controller: it owns the
// voice, rate, pitch, message and playback status and is the only component
// that talks to the speech engine.
package voice

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-narrator/internal/speech"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultNoticeTTL        = 2 * time.Second
	defaultVoiceListTimeout = 10 * time.Second
)

type Options struct {
	Message   string
	Rate      float64
	Pitch     float64
	Trace     TraceSink
	Logger    *slog.Logger
	NoticeTTL time.Duration
	SessionID string
	// VoiceListTimeout bounds the first enumeration in Initialize, which
	// runs with the controller locked.
	VoiceListTimeout time.Duration
}

// Controller serializes every operation and every engine delivery behind one
// mutex, so at most one utterance is ever active.
type Controller struct {
	engine    speech.Engine
	sink      TraceSink
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics
	noticeTTL time.Duration
	listTTL   time.Duration
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	supported   bool
	voices      []speech.Voice
	selected    string
	message     string
	rate        float64
	pitch       float64
	status      Status
	lastError   string
	current     *utterance
	watchCancel context.CancelFunc
	noticeTimer *time.Timer
	noticeSeq   uint64
	subs        map[chan Snapshot]struct{}
}

type utterance struct {
	id     string
	cancel context.CancelFunc
}

func New(engine speech.Engine, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "voice-controller"))

	sink := opts.Trace
	if sink == nil {
		sink = NewLogSink(logger)
	}
	ttl := opts.NoticeTTL
	if ttl <= 0 {
		ttl = defaultNoticeTTL
	}
	listTTL := opts.VoiceListTimeout
	if listTTL <= 0 {
		listTTL = defaultVoiceListTimeout
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = xid.New().String()
	}

	m, err := newMetrics()
	if err != nil {
		logger.Warn("failed to initialize metrics", slogError(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		engine:    engine,
		sink:      sink,
		logger:    logger.With(slog.String("session_id", sessionID)),
		tracer:    otel.Tracer(instrumentationName),
		metrics:   m,
		noticeTTL: ttl,
		listTTL:   listTTL,
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
		supported: engine.Supported(),
		message:   opts.Message,
		rate:      orDefault(opts.Rate),
		pitch:     orDefault(opts.Pitch),
		subs:      make(map[chan Snapshot]struct{}),
	}
}

// SessionID identifies this controller instance.
func (c *Controller) SessionID() string { return c.sessionID }

// Initialize subscribes to voice list changes and performs the first
// enumeration. Without speech support it records the capability error and
// returns ErrUnsupported; the controller then stays Idle.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publishLocked()

	if c.closed {
		return ErrClosed
	}
	if !c.engine.Supported() {
		c.supported = false
		c.setErrorLocked(MsgUnsupported)
		c.logger.Warn("speech synthesis unavailable")
		return ErrUnsupported
	}
	c.supported = true

	if c.watchCancel != nil {
		c.watchCancel()
	}
	wctx, wcancel := context.WithCancel(c.ctx)
	c.watchCancel = wcancel
	updates := c.engine.WatchVoices(wctx)
	c.wg.Add(1)
	go c.watchVoices(updates)

	lctx, lcancel := context.WithTimeout(ctx, c.listTTL)
	defer lcancel()
	voices, err := c.engine.ListVoices(lctx)
	if err != nil {
		// the watch subscription still delivers later lists
		c.logger.Warn("initial voice enumeration failed", slogError(err))
		return nil
	}
	c.applyVoicesLocked(voices)
	c.logger.Info("voice controller initialized", slog.Int("voices", len(voices)))
	return nil
}

func (c *Controller) watchVoices(updates <-chan []speech.Voice) {
	defer c.wg.Done()
	for voices := range updates {
		c.OnVoiceListChanged(voices)
	}
}

// Close tears the controller down: the voice subscription and any in-flight
// utterance are cancelled and subscriber channels are closed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.watchCancel != nil {
		c.watchCancel()
	}
	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
	c.status = StatusIdle
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
	}
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	if c.metrics != nil {
		c.metrics.close()
	}
}

// OnVoiceListChanged replaces the voice list. The first voice becomes the
// selection only when nothing is selected yet.
func (c *Controller) OnVoiceListChanged(voices []speech.Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.applyVoicesLocked(voices)
	c.publishLocked()
}

func (c *Controller) applyVoicesLocked(voices []speech.Voice) {
	c.voices = append([]speech.Voice(nil), voices...)
	if c.selected == "" && len(c.voices) > 0 {
		c.selected = c.voices[0].Name
	}
	if c.metrics != nil {
		c.metrics.voices.Store(int64(len(c.voices)))
	}
}

// SelectVoice selects a voice by name. Unknown names are ignored.
func (c *Controller) SelectVoice(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, v := range c.voices {
		if v.Name == name {
			c.selected = name
			break
		}
	}
	c.publishLocked()
}

func (c *Controller) SetRate(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.rate = parseParam(value)
	c.publishLocked()
}

func (c *Controller) SetPitch(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pitch = parseParam(value)
	c.publishLocked()
}

func (c *Controller) SetMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.message = text
	c.publishLocked()
}

// Speak stops whatever is playing and submits text as a new utterance.
func (c *Controller) Speak(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publishLocked()
	return c.speakLocked(ctx, text)
}

func (c *Controller) speakLocked(ctx context.Context, text string) error {
	if c.closed {
		return ErrClosed
	}
	if !c.supported || !c.engine.Supported() {
		c.setErrorLocked(MsgUnsupported)
		return ErrUnsupported
	}
	if strings.TrimSpace(text) == "" {
		c.setErrorLocked(MsgEmptyInput)
		return ErrEmptyInput
	}

	c.stopLocked()

	req := speech.Request{
		ID:    xid.New().String(),
		Text:  text,
		Voice: c.resolveVoiceLocked(),
		Rate:  orDefault(c.rate),
		Pitch: orDefault(c.pitch),
	}
	voiceName := ""
	if req.Voice != nil {
		voiceName = req.Voice.Name
	}
	_, span := c.tracer.Start(ctx, "voice.speak", trace.WithAttributes(
		attribute.String("utterance.id", req.ID),
		attribute.String("voice.name", voiceName),
		attribute.Float64("voice.rate", req.Rate),
		attribute.Float64("voice.pitch", req.Pitch),
		attribute.Int("text.length", len(text)),
	))

	// Playback outlives the caller's request, so it hangs off the controller.
	uctx, ucancel := context.WithCancel(trace.ContextWithSpan(c.ctx, span))
	results, err := c.engine.Speak(uctx, req)
	if err != nil {
		ucancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		span.End()
		c.recordFailed("submit", "submit")
		c.setErrorLocked(submitMessage(err))
		c.logger.Warn("speech engine rejected utterance", slog.String("utterance_id", req.ID), slogError(err))
		return &SubmitError{Err: err}
	}

	u := &utterance{id: req.ID, cancel: ucancel}
	c.current = u
	c.status = StatusSpeaking
	c.clearErrorLocked()
	if c.metrics != nil {
		c.metrics.addStarted(c.ctx)
	}
	c.logger.Debug("utterance started", slog.String("utterance_id", req.ID), slog.String("voice", voiceName))

	c.wg.Add(1)
	go c.await(u, results, span)
	return nil
}

func (c *Controller) resolveVoiceLocked() *speech.Voice {
	for _, v := range c.voices {
		if v.Name == c.selected {
			voice := v
			return &voice
		}
	}
	return nil
}

func (c *Controller) await(u *utterance, results <-chan speech.Result, span trace.Span) {
	defer c.wg.Done()
	defer span.End()

	res, ok := <-results
	if !ok {
		res = speech.Result{Err: &speech.PlaybackError{}}
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, speech.ErrorCode(res.Err))
	}
	c.finish(u, res)
}

// finish applies an utterance result unless the utterance has been superseded
// or stopped in the meantime.
func (c *Controller) finish(u *utterance, res speech.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.current != u {
		c.logger.Debug("ignoring result of superseded utterance", slog.String("utterance_id", u.id))
		return
	}
	c.current = nil
	u.cancel()
	c.status = StatusIdle
	if res.Err != nil {
		code := speech.ErrorCode(res.Err)
		c.recordFailed("playback", code)
		c.setErrorLocked(playbackMessage(res.Err))
		c.logger.Warn("utterance failed", slog.String("utterance_id", u.id), slog.String("code", code))
	} else {
		if c.metrics != nil {
			c.metrics.addCompleted(c.ctx)
		}
		c.logger.Debug("utterance completed", slog.String("utterance_id", u.id))
	}
	c.publishLocked()
}

func (c *Controller) recordFailed(stage, code string) {
	if c.metrics != nil {
		c.metrics.addFailed(c.ctx, stage, code)
	}
}

// Pause is a no-op unless the engine reports active speech.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.current == nil || !c.engine.Speaking() {
		return nil
	}
	if err := c.engine.Pause(); err != nil {
		c.logger.Warn("pause failed", slogError(err))
		return err
	}
	c.status = StatusPaused
	c.publishLocked()
	return nil
}

// Resume is a no-op unless the engine reports paused speech.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.current == nil || !c.engine.Paused() {
		return nil
	}
	if err := c.engine.Resume(); err != nil {
		c.logger.Warn("resume failed", slogError(err))
		return err
	}
	c.status = StatusSpeaking
	c.publishLocked()
	return nil
}

// Stop cancels playback and returns to Idle immediately. It always succeeds.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopLocked()
	c.publishLocked()
}

func (c *Controller) stopLocked() {
	if err := c.engine.Cancel(); err != nil {
		c.logger.Debug("engine cancel failed", slogError(err))
	}
	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
	c.status = StatusIdle
}

// LogStatus records a diagnostic trace. Success and failure are both reported
// through a notice that clears itself after the notice TTL.
func (c *Controller) LogStatus(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.logStatusLocked(ctx)
	c.publishLocked()
}

func (c *Controller) logStatusLocked(ctx context.Context) {
	entry := TraceEntry{
		SessionID: c.sessionID,
		Time:      time.Now().UTC(),
		Engine: EngineState{
			Supported: c.engine.Supported(),
			Speaking:  c.engine.Speaking(),
			Paused:    c.engine.Paused(),
		},
		Voices:        append([]speech.Voice(nil), c.voices...),
		SelectedVoice: c.selected,
		Status:        c.status,
	}
	if err := c.sink.Trace(ctx, entry); err != nil {
		c.logger.Warn("status trace failed", slogError(err))
		c.setNoticeLocked(traceFailureMessage(err))
		return
	}
	c.setNoticeLocked(MsgStatusLogged)
}

// RunDebugTest logs the current status and then speaks DebugPhrase.
func (c *Controller) RunDebugTest(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	defer c.publishLocked()
	c.logStatusLocked(ctx)
	return c.speakLocked(ctx, DebugPhrase)
}

func (c *Controller) setErrorLocked(msg string) {
	c.noticeSeq++
	c.lastError = msg
}

func (c *Controller) clearErrorLocked() {
	c.noticeSeq++
	c.lastError = ""
}

func (c *Controller) setNoticeLocked(msg string) {
	c.setErrorLocked(msg)
	seq := c.noticeSeq
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
	}
	c.noticeTimer = time.AfterFunc(c.noticeTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.noticeSeq != seq {
			return
		}
		c.clearErrorLocked()
		c.publishLocked()
	})
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:     c.sessionID,
		Supported:     c.supported,
		Voices:        append([]speech.Voice{}, c.voices...),
		SelectedVoice: c.selected,
		Message:       c.message,
		Rate:          c.rate,
		Pitch:         c.pitch,
		Status:        c.status,
		Speaking:      c.status != StatusIdle,
		Paused:        c.status == StatusPaused,
		LastError:     c.lastError,
	}
}

// Subscribe delivers the current snapshot and then one after every state
// change. Slow readers only see the latest snapshot. The channel is closed by
// the returned cancel func or by Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- c.snapshotLocked()
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// parseParam mirrors a numeric form field: anything that is not a finite
// number becomes 1.0. Range limits belong to the input widget.
func parseParam(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	return f
}

// orDefault maps an unset or unusable parameter to 1.0.
func orDefault(f float64) float64 {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	return f
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
