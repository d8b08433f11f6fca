package openai

import "encoding/json"

// Client event types (sent to the provider).
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeConversationItemCreate = "conversation.item.create"
	EventTypeResponseCreate         = "response.create"
)

// Server event types (received from the provider).
const (
	EventTypeError                   = "error"
	EventTypeSessionCreated          = "session.created"
	EventTypeSessionUpdated          = "session.updated"
	EventTypeSpeechStarted           = "input_audio_buffer.speech_started"
	EventTypeInputTranscriptionDone  = "conversation.item.input_audio_transcription.completed"
	EventTypeResponseAudioDelta      = "response.audio.delta"
	EventTypeAudioTranscriptDelta    = "response.audio_transcript.delta"
	EventTypeAudioTranscriptDone     = "response.audio_transcript.done"
	EventTypeResponseDone            = "response.done"
	EventTypeInputTranscriptionFault = "conversation.item.input_audio_transcription.failed"
)

type sessionUpdate struct {
	EventID string        `json:"event_id"`
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Instructions            string              `json:"instructions,omitempty"`
	Voice                   string              `json:"voice,omitempty"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription *transcriptionModel `json:"input_audio_transcription,omitempty"`
	TurnDetection           json.RawMessage     `json:"turn_detection,omitempty"`
	Tools                   []json.RawMessage   `json:"tools,omitempty"`
	ToolChoice              string              `json:"tool_choice,omitempty"`
}

type transcriptionModel struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type audioAppend struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Audio   string `json:"audio"`
}

type itemCreate struct {
	EventID string           `json:"event_id"`
	Type    string           `json:"type"`
	Item    conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []itemContent `json:"content"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseCreate struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// serverEvent is the union of the fields the adapter reads from server events.
type serverEvent struct {
	Type       string       `json:"type"`
	EventID    string       `json:"event_id"`
	Delta      string       `json:"delta"`
	Transcript string       `json:"transcript"`
	Error      *eventError  `json:"error"`
	Response   *responseRef `json:"response"`
}

type eventError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type responseRef struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	StatusDetails *statusDetails `json:"status_details"`
}

type statusDetails struct {
	Type   string      `json:"type"`
	Reason string      `json:"reason"`
	Error  *eventError `json:"error"`
}
