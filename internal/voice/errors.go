package voice

import (
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-narrator/internal/speech"
)

// Messages surfaced through Snapshot.LastError.
const (
	MsgUnsupported  = "Speech synthesis is not supported in this browser."
	MsgEmptyInput   = "Nothing to speak: the message is empty."
	MsgStatusLogged = "Status logged to console"
)

// DebugPhrase is spoken by RunDebugTest.
const DebugPhrase = "Debug test: speech synthesis test phrase."

var (
	ErrUnsupported = errors.New("speech synthesis unavailable")
	ErrEmptyInput  = errors.New("empty speech input")
	ErrClosed      = errors.New("voice controller closed")
)

// SubmitError reports that the engine refused an utterance outright.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit utterance: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

func submitMessage(err error) string {
	return "Failed to speak: " + err.Error()
}

func playbackMessage(err error) string {
	return "Speech error: " + speech.ErrorCode(err)
}

func traceFailureMessage(err error) string {
	return "Failed to log status: " + err.Error()
}
