package voice

import (
	"fmt"

	"github.com/loqalabs/loqa-narrator/internal/speech"
)

// Status is the controller-tracked playback state.
type Status int

const (
	StatusIdle Status = iota
	StatusSpeaking
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSpeaking:
		return "speaking"
	case StatusPaused:
		return "paused"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StatusIdle
	case "speaking":
		*s = StatusSpeaking
	case "paused":
		*s = StatusPaused
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// Snapshot is the bindable controller state handed to presentation layers.
type Snapshot struct {
	SessionID     string         `json:"session_id"`
	Supported     bool           `json:"supported"`
	Voices        []speech.Voice `json:"voices"`
	SelectedVoice string         `json:"selected_voice"`
	Message       string         `json:"message"`
	Rate          float64        `json:"rate"`
	Pitch         float64        `json:"pitch"`
	Status        Status         `json:"status"`
	Speaking      bool           `json:"speaking"`
	Paused        bool           `json:"paused"`
	LastError     string         `json:"last_error"`
}
