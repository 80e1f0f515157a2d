package protocol

import "time"

// VoiceInfo is the wire form of a speech voice.
type VoiceInfo struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// SpeakRequest asks a speech host to play one utterance.
type SpeakRequest struct {
	UtteranceID string    `json:"utterance_id"`
	Text        string    `json:"text"`
	Voice       string    `json:"voice,omitempty"`
	Language    string    `json:"language,omitempty"`
	Rate        float64   `json:"rate"`
	Pitch       float64   `json:"pitch"`
	Timestamp   time.Time `json:"timestamp"`
}

// SpeakAck is the reply to a SpeakRequest. HostID names the host that took
// the utterance.
type SpeakAck struct {
	UtteranceID string `json:"utterance_id"`
	HostID      string `json:"host_id"`
	Accepted    bool   `json:"accepted"`
	Error       string `json:"error,omitempty"`
}

// ControlRequest pauses, resumes or cancels the host's active utterance.
type ControlRequest struct {
	UtteranceID string `json:"utterance_id,omitempty"`
	Action      string `json:"action"`
}

// SpeakResult reports the end of an utterance.
type SpeakResult struct {
	UtteranceID string    `json:"utterance_id"`
	Completed   bool      `json:"completed"`
	ErrorCode   string    `json:"error_code,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// VoiceList is broadcast by speech hosts on change and on every heartbeat.
type VoiceList struct {
	HostID    string      `json:"host_id"`
	Supported bool        `json:"supported"`
	Voices    []VoiceInfo `json:"voices"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	ControlPause  = "pause"
	ControlResume = "resume"
	ControlCancel = "cancel"
)

const (
	SubjectSpeak      = "speech.speak"
	SubjectControl    = "speech.control"
	SubjectResult     = "speech.result"
	SubjectVoices     = "speech.voices"
	SubjectVoicesList = "speech.voices.list"
)

// QueueSpeechHosts is the queue group hosts share for requests not addressed
// to a particular host, so exactly one host answers each.
const QueueSpeechHosts = "speech-hosts"

// HostSubject addresses subject to a single host, e.g. speech.speak.<host>.
func HostSubject(subject, hostID string) string {
	return subject + "." + hostID
}
