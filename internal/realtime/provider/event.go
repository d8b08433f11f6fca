package provider

import "fmt"

// EventType is the canonical, provider-agnostic event vocabulary every
// adapter normalizes its wire protocol into.
type EventType int

const (
	EventUnknown EventType = iota
	EventSessionInitialized
	EventAudioOutputReady
	EventTranscriptionPartial
	EventTranscriptionCompleted
	EventUserSpeechDetected
	EventTurnCompleted
	EventError
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventUnknown:
		return "Unknown"
	case EventSessionInitialized:
		return "SessionInitialized"
	case EventAudioOutputReady:
		return "AudioOutputReady"
	case EventTranscriptionPartial:
		return "TranscriptionPartial"
	case EventTranscriptionCompleted:
		return "TranscriptionCompleted"
	case EventUserSpeechDetected:
		return "UserSpeechDetected"
	case EventTurnCompleted:
		return "TurnCompleted"
	case EventError:
		return "Error"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Direction tags transcription events with the side that produced the speech.
type Direction int

const (
	// DirectionInput is the caller's speech.
	DirectionInput Direction = iota
	// DirectionOutput is the AI's speech.
	DirectionOutput
)

// Speaker returns the transcript speaker label for the direction.
func (d Direction) Speaker() string {
	if d == DirectionOutput {
		return "assistant"
	}
	return "user"
}

// Event is one canonical event parsed from a provider wire message.
type Event struct {
	Type EventType

	// AudioBase64 is the provider audio payload as received (AudioOutputReady).
	AudioBase64 string
	// Audio is the decoded AudioBase64. Nil if the payload failed to decode.
	Audio []byte

	// Text carries transcription text (TranscriptionPartial/Completed).
	Text      string
	Direction Direction

	// ErrorCode and ErrorMessage describe an Error event. Critical errors end the session.
	ErrorCode    string
	ErrorMessage string
	Critical     bool

	// WireType is the provider's own event name, kept for logs and metrics.
	WireType string
	// Raw is the original wire message.
	Raw []byte
}

// ErrorEvent builds a canonical Error event.
func ErrorEvent(code, message string, critical bool, raw []byte) Event {
	return Event{
		Type:         EventError,
		ErrorCode:    code,
		ErrorMessage: message,
		Critical:     critical,
		WireType:     "error",
		Raw:          raw,
	}
}

// UnknownEvent builds a canonical Unknown event carrying the raw payload.
func UnknownEvent(wireType string, raw []byte) Event {
	return Event{Type: EventUnknown, WireType: wireType, Raw: raw}
}
