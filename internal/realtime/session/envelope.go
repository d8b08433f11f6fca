package session

// Client notification types.
const (
	TypeSessionReady                      = "SessionReady"
	TypeResponseAudioDelta                = "ResponseAudioDelta"
	TypeSpeechDetected                    = "SpeechDetected"
	TypeAiTurnCompleted                   = "AiTurnCompleted"
	TypeInputAudioTranscriptionCompleted  = "InputAudioTranscriptionCompleted"
	TypeOutputAudioTranscriptionCompleted = "OutputAudioTranscriptionCompleted"
	TypeOutputAudioTranscriptionPartial   = "OutputAudioTranscriptionPartial"
	TypeClientError                       = "ClientError"
)

// Envelope is one JSON notification sent to the client.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"Data,omitempty"`
	SessionID string `json:"session_id"`
}

// AudioDelta carries one chunk of AI audio.
type AudioDelta struct {
	Base64Payload string `json:"Base64Payload"`
}

// TranscriptionData carries a transcript fragment.
type TranscriptionData struct {
	Speaker    string `json:"Speaker"`
	Transcript string `json:"Transcript"`
}

// ClientErrorData is the sanitized error shown to clients.
type ClientErrorData struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}
