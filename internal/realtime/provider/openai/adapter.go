// Package openai implements the provider adapter for the OpenAI Realtime API.
package openai

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
	// DefaultModel is used when a profile leaves the model empty.
	DefaultModel = "gpt-4o-realtime-preview"
	// DefaultTranscriptionModel transcribes caller audio.
	DefaultTranscriptionModel = "whisper-1"
)

// criticalCodes are provider error codes after which the session cannot continue.
var criticalCodes = map[string]bool{
	"session_expired":         true,
	"invalid_api_key":         true,
	"insufficient_quota":      true,
	"model_not_found":         true,
	"session_expired_timeout": true,
}

// Adapter implements provider.Adapter for OpenAI Realtime.
type Adapter struct{}

// New creates an OpenAI Realtime adapter.
func New() *Adapter {
	return &Adapter{}
}

// ID returns provider.OpenAI.
func (a *Adapter) ID() provider.ID {
	return provider.OpenAI
}

// Supports reports whether the codec can be negotiated. All three formats are.
func (a *Adapter) Supports(codec provider.Codec) bool {
	return codec.Valid()
}

// Endpoint builds the WebSocket URL (with the model query parameter) and
// bearer auth headers.
func (a *Adapter) Endpoint(p provider.Profile) (string, http.Header, error) {
	base, err := provider.ResolveURL(p.ServiceURL, p.Region)
	if err != nil {
		return "", nil, err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", nil, fmt.Errorf("openai: invalid service url: %w", err)
	}
	q := u.Query()
	if q.Get("model") == "" && q.Get("deployment") == "" {
		q.Set("model", modelOrDefault(p.Model))
	}
	u.RawQuery = q.Encode()

	headers := http.Header{}
	if p.APIKey != "" {
		headers.Set("Authorization", "Bearer "+p.APIKey)
		// Azure-hosted deployments authenticate with api-key instead.
		headers.Set("api-key", p.APIKey)
	}
	headers.Set("OpenAI-Beta", "realtime=v1")
	return u.String(), headers, nil
}

// SessionSetup builds the session.update payload.
func (a *Adapter) SessionSetup(p provider.Profile) ([]byte, error) {
	cfg := sessionConfig{
		Modalities:        []string{"text", "audio"},
		Instructions:      p.Instructions,
		Voice:             p.Voice,
		InputAudioFormat:  string(codecOrDefault(p.InputCodec)),
		OutputAudioFormat: string(codecOrDefault(p.OutputCodec)),
		InputAudioTranscription: &transcriptionModel{
			Model:    DefaultTranscriptionModel,
			Language: p.Language,
		},
		TurnDetection: p.TurnDetection,
		Tools:         p.Tools,
	}
	if len(p.Tools) > 0 {
		cfg.ToolChoice = "auto"
	}
	return json.Marshal(sessionUpdate{
		EventID: eventID(),
		Type:    EventTypeSessionUpdate,
		Session: cfg,
	})
}

// AudioAppend builds input_audio_buffer.append. The codec itself is negotiated
// in the session setup, so it only needs validating here.
func (a *Adapter) AudioAppend(audioBase64 string, codec provider.Codec) ([]byte, error) {
	if !a.Supports(codec) {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnsupportedCodec, codec)
	}
	return json.Marshal(audioAppend{
		EventID: eventID(),
		Type:    EventTypeInputAudioBufferAppend,
		Audio:   audioBase64,
	})
}

// UserText builds a conversation.item.create user message.
func (a *Adapter) UserText(text string) ([]byte, error) {
	return json.Marshal(itemCreate{
		EventID: eventID(),
		Type:    EventTypeConversationItemCreate,
		Item: conversationItem{
			Type:    "message",
			Role:    "user",
			Content: []itemContent{{Type: "input_text", Text: text}},
		},
	})
}

// TriggerResponse builds response.create. Text injected via conversation items
// does not start a turn on its own.
func (a *Adapter) TriggerResponse() ([]byte, error) {
	return json.Marshal(responseCreate{
		EventID: eventID(),
		Type:    EventTypeResponseCreate,
	})
}

// Parse maps one server event onto the canonical vocabulary.
func (a *Adapter) Parse(raw []byte) provider.Event {
	var ev serverEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return provider.UnknownEvent("", raw)
	}

	switch ev.Type {
	case EventTypeSessionUpdated:
		return provider.Event{Type: provider.EventSessionInitialized, WireType: ev.Type, Raw: raw}

	case EventTypeResponseAudioDelta:
		out := provider.Event{
			Type:        provider.EventAudioOutputReady,
			AudioBase64: ev.Delta,
			WireType:    ev.Type,
			Raw:         raw,
		}
		if decoded, err := base64.StdEncoding.DecodeString(ev.Delta); err == nil {
			out.Audio = decoded
		}
		return out

	case EventTypeAudioTranscriptDelta:
		return provider.Event{
			Type:      provider.EventTranscriptionPartial,
			Text:      ev.Delta,
			Direction: provider.DirectionOutput,
			WireType:  ev.Type,
			Raw:       raw,
		}

	case EventTypeAudioTranscriptDone:
		return provider.Event{
			Type:      provider.EventTranscriptionCompleted,
			Text:      ev.Transcript,
			Direction: provider.DirectionOutput,
			WireType:  ev.Type,
			Raw:       raw,
		}

	case EventTypeInputTranscriptionDone:
		return provider.Event{
			Type:      provider.EventTranscriptionCompleted,
			Text:      ev.Transcript,
			Direction: provider.DirectionInput,
			WireType:  ev.Type,
			Raw:       raw,
		}

	case EventTypeSpeechStarted:
		return provider.Event{Type: provider.EventUserSpeechDetected, WireType: ev.Type, Raw: raw}

	case EventTypeResponseDone:
		if ev.Response != nil && ev.Response.Status == "failed" && ev.Response.StatusDetails != nil && ev.Response.StatusDetails.Error != nil {
			e := ev.Response.StatusDetails.Error
			return provider.ErrorEvent(e.Code, e.Message, isCritical(e), raw)
		}
		return provider.Event{Type: provider.EventTurnCompleted, WireType: ev.Type, Raw: raw}

	case EventTypeError:
		if ev.Error == nil {
			return provider.ErrorEvent("unknown_error", "provider reported an error", false, raw)
		}
		return provider.ErrorEvent(ev.Error.Code, ev.Error.Message, isCritical(ev.Error), raw)

	case EventTypeInputTranscriptionFault:
		msg := "input transcription failed"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		return provider.ErrorEvent("transcription_failed", msg, false, raw)

	default:
		return provider.UnknownEvent(ev.Type, raw)
	}
}

func isCritical(e *eventError) bool {
	return e.Type == "server_error" || criticalCodes[e.Code]
}

func eventID() string {
	return "evt_" + uuid.New().String()[:12]
}

func modelOrDefault(m string) string {
	if m == "" {
		return DefaultModel
	}
	return m
}

func codecOrDefault(c provider.Codec) provider.Codec {
	if c == "" {
		return provider.CodecPCM16
	}
	return c
}

var _ provider.Adapter = (*Adapter)(nil)
