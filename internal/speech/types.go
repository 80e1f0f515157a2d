package speech

import (
	"context"
	"errors"
	"fmt"
)

// Voice describes a voice offered by an engine.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Key identifies a voice; names alone may collide across languages.
func (v Voice) Key() string {
	return v.Name + "|" + v.Language
}

// Request contains everything needed to play one utterance.
type Request struct {
	ID    string
	Text  string
	Voice *Voice // nil selects the engine default
	Rate  float64
	Pitch float64
}

// Result is delivered exactly once per submitted utterance. A nil Err means
// playback reached its natural end.
type Result struct {
	Err error
}

// PlaybackError reports an engine-side failure of an in-flight utterance.
type PlaybackError struct {
	Code string
}

func (e *PlaybackError) Error() string {
	code := e.Code
	if code == "" {
		code = "unknown"
	}
	return fmt.Sprintf("playback failed: %s", code)
}

// ErrorCode extracts the engine-supplied code from err, or "unknown".
func ErrorCode(err error) string {
	var pe *PlaybackError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	return "unknown"
}

// CodeInterrupted is reported for utterances cancelled before they finished.
const CodeInterrupted = "interrupted"

// Engine is the contract for a text-to-speech facility with a single
// playback slot.
//
// Engines never invoke callbacks synchronously: results and voice updates
// arrive on channels owned by the engine.
type Engine interface {
	// Supported reports whether speech is available at all.
	Supported() bool

	// ListVoices enumerates the voices currently known to the engine.
	ListVoices(ctx context.Context) ([]Voice, error)

	// WatchVoices emits the full voice list whenever it changes. The channel
	// is closed once ctx is done.
	WatchVoices(ctx context.Context) <-chan []Voice

	// Speak submits an utterance. The returned channel yields one Result and
	// is then closed. Cancelling ctx aborts playback.
	Speak(ctx context.Context, req Request) (<-chan Result, error)

	Pause() error
	Resume() error
	Cancel() error

	// Speaking is true while an utterance is active, paused or not.
	Speaking() bool
	Paused() bool
}
