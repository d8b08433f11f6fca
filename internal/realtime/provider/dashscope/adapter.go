// Package dashscope implements the provider adapter for the DashScope
// Qwen-Omni realtime API. The protocol mirrors OpenAI Realtime events but
// streams some responses in a "choices" envelope and only accepts PCM16 input.
package dashscope

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"ai-realtime-bridge-service/internal/realtime/provider"
)

const (
	// DefaultRealtimeURL is the mainland endpoint.
	DefaultRealtimeURL = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"
	// IntlRealtimeURL serves regions outside mainland China.
	IntlRealtimeURL = "wss://dashscope-intl.aliyuncs.com/api-ws/v1/realtime"
	// DefaultModel is used when a profile leaves the model empty.
	DefaultModel = "qwen-omni-turbo-realtime-latest"
)

// Adapter implements provider.Adapter for DashScope.
type Adapter struct {
	workspaceID string
}

// New creates a DashScope adapter. workspaceID may be empty.
func New(workspaceID string) *Adapter {
	return &Adapter{workspaceID: workspaceID}
}

// ID returns provider.DashScope.
func (a *Adapter) ID() provider.ID {
	return provider.DashScope
}

// Supports reports whether the codec is accepted for input audio.
func (a *Adapter) Supports(codec provider.Codec) bool {
	return codec == provider.CodecPCM16
}

// Endpoint picks the regional endpoint when no service URL is configured.
func (a *Adapter) Endpoint(p provider.Profile) (string, http.Header, error) {
	serviceURL := p.ServiceURL
	if serviceURL == "" {
		serviceURL = DefaultRealtimeURL
		if p.Region != "" && p.Region != "cn-beijing" {
			serviceURL = IntlRealtimeURL
		}
	}
	base, err := provider.ResolveURL(serviceURL, p.Region)
	if err != nil {
		return "", nil, err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", nil, fmt.Errorf("dashscope: invalid service url: %w", err)
	}
	q := u.Query()
	if q.Get("model") == "" {
		m := p.Model
		if m == "" {
			m = DefaultModel
		}
		q.Set("model", m)
	}
	u.RawQuery = q.Encode()

	headers := http.Header{}
	if p.APIKey != "" {
		headers.Set("Authorization", "bearer "+p.APIKey)
	}
	if a.workspaceID != "" {
		headers.Set("X-DashScope-WorkSpace", a.workspaceID)
	}
	return u.String(), headers, nil
}

// SessionSetup builds the session.update payload.
func (a *Adapter) SessionSetup(p provider.Profile) ([]byte, error) {
	if p.InputCodec != "" && !a.Supports(p.InputCodec) {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnsupportedCodec, p.InputCodec)
	}
	cfg := sessionConfig{
		Modalities:        []string{"text", "audio"},
		Voice:             p.Voice,
		Instructions:      p.Instructions,
		InputAudioFormat:  string(provider.CodecPCM16),
		OutputAudioFormat: string(provider.CodecPCM16),
		InputAudioTranscription: &transcription{
			Model: "gummy-realtime-v1",
		},
		TurnDetection: p.TurnDetection,
		Tools:         p.Tools,
	}
	if len(cfg.TurnDetection) == 0 {
		cfg.TurnDetection = json.RawMessage(`{"type":"server_vad"}`)
	}
	return json.Marshal(clientEvent{
		EventID: eventID(),
		Type:    "session.update",
		Session: &cfg,
	})
}

// AudioAppend builds input_audio_buffer.append. Only PCM16 is accepted.
func (a *Adapter) AudioAppend(audioBase64 string, codec provider.Codec) ([]byte, error) {
	if !a.Supports(codec) {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnsupportedCodec, codec)
	}
	return json.Marshal(clientEvent{
		EventID: eventID(),
		Type:    "input_audio_buffer.append",
		Audio:   audioBase64,
	})
}

// UserText builds a conversation.item.create user message.
func (a *Adapter) UserText(text string) ([]byte, error) {
	return json.Marshal(clientEvent{
		EventID: eventID(),
		Type:    "conversation.item.create",
		Item: &item{
			Type:    "message",
			Role:    "user",
			Content: []content{{Type: "input_text", Text: text}},
		},
	})
}

// TriggerResponse builds response.create.
func (a *Adapter) TriggerResponse() ([]byte, error) {
	return json.Marshal(clientEvent{
		EventID:  eventID(),
		Type:     "response.create",
		Response: &responseOptions{Modalities: []string{"text", "audio"}},
	})
}

// Parse maps one server message onto the canonical vocabulary.
func (a *Adapter) Parse(raw []byte) provider.Event {
	var ev serverEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return provider.UnknownEvent("", raw)
	}

	if len(ev.Choices) > 0 {
		return parseChoice(ev.Choices[0], raw)
	}

	switch ev.Type {
	case "session.updated":
		return provider.Event{Type: provider.EventSessionInitialized, WireType: ev.Type, Raw: raw}
	case "response.audio.delta":
		return audioEvent(ev.Type, ev.Delta, raw)
	case "response.audio_transcript.delta":
		return provider.Event{Type: provider.EventTranscriptionPartial, Text: ev.Delta, Direction: provider.DirectionOutput, WireType: ev.Type, Raw: raw}
	case "response.audio_transcript.done":
		return provider.Event{Type: provider.EventTranscriptionCompleted, Text: ev.Transcript, Direction: provider.DirectionOutput, WireType: ev.Type, Raw: raw}
	case "conversation.item.input_audio_transcription.completed":
		return provider.Event{Type: provider.EventTranscriptionCompleted, Text: ev.Transcript, Direction: provider.DirectionInput, WireType: ev.Type, Raw: raw}
	case "input_audio_buffer.speech_started":
		return provider.Event{Type: provider.EventUserSpeechDetected, WireType: ev.Type, Raw: raw}
	case "response.done":
		return provider.Event{Type: provider.EventTurnCompleted, WireType: ev.Type, Raw: raw}
	case "session.finished":
		return provider.ErrorEvent("SessionFinished", "provider finished the session", true, raw)
	case "error":
		if ev.Error == nil {
			return provider.ErrorEvent("UnknownError", "provider reported an error", false, raw)
		}
		return provider.ErrorEvent(ev.Error.Code, ev.Error.Message, isCritical(ev.Error.Code), raw)
	default:
		return provider.UnknownEvent(ev.Type, raw)
	}
}

// parseChoice handles the "choices" envelope. Audio wins over text; a finish
// reason ends the turn.
func parseChoice(c choice, raw []byte) provider.Event {
	if c.FinishReason != "" && c.FinishReason != "null" {
		return provider.Event{Type: provider.EventTurnCompleted, WireType: "choices", Raw: raw}
	}
	var text string
	for _, part := range c.Message.Content {
		if part.Audio != nil && part.Audio.Data != "" {
			return audioEvent("choices", part.Audio.Data, raw)
		}
		if part.Text != "" {
			text += part.Text
		}
	}
	if text != "" {
		return provider.Event{Type: provider.EventTranscriptionPartial, Text: text, Direction: provider.DirectionOutput, WireType: "choices", Raw: raw}
	}
	return provider.UnknownEvent("choices", raw)
}

func audioEvent(wireType, payload string, raw []byte) provider.Event {
	ev := provider.Event{
		Type:        provider.EventAudioOutputReady,
		AudioBase64: payload,
		WireType:    wireType,
		Raw:         raw,
	}
	if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil {
		ev.Audio = decoded
	}
	return ev
}

func isCritical(code string) bool {
	switch code {
	case "InvalidApiKey", "Arrearage", "AccessDenied", "InternalError", "SessionTimeout":
		return true
	}
	return false
}

func eventID() string {
	return "event_" + uuid.New().String()[:8]
}

var _ provider.Adapter = (*Adapter)(nil)
