// Package models defines the payloads published for realtime sessions.
package models

// Event type names published to Kafka.
const (
	EventSessionStarted    = "session.started"
	EventSessionEnded      = "session.ended"
	EventSessionTranscript = "session.transcript"
	EventRecordingStored   = "session.recording.stored"
)

// TranscriptLine is one completed utterance in a session transcript.
type TranscriptLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SessionTranscript carries every completed transcription of a session, in
// the order the provider produced them.
type SessionTranscript struct {
	EventType string           `json:"eventType"`
	SessionID string           `json:"sessionId"`
	StreamID  string           `json:"streamId"`
	Profile   string           `json:"profile"`
	Provider  string           `json:"provider"`
	Timestamp int64            `json:"timestamp"`
	Lines     []TranscriptLine `json:"lines"`
}

// SessionStarted is published when a client session is accepted.
type SessionStarted struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	StreamID  string `json:"streamId"`
	Profile   string `json:"profile"`
	Provider  string `json:"provider"`
	Timestamp int64  `json:"timestamp"`
}

// SessionEnded is published once a session has been torn down.
type SessionEnded struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	StreamID  string `json:"streamId"`
	Profile   string `json:"profile"`
	Provider  string `json:"provider"`
	Timestamp int64  `json:"timestamp"`
}

// RecordingStored points at an uploaded session recording.
type RecordingStored struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	StreamID  string `json:"streamId"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	SizeBytes int    `json:"sizeBytes"`
	Timestamp int64  `json:"timestamp"`
}
