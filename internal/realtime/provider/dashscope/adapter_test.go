package dashscope

import (
	"encoding/json"
	"errors"
	"testing"

	"ai-realtime-bridge-service/internal/realtime/provider"
)

func TestAdapter_Endpoint_Defaults(t *testing.T) {
	a := New("ws-123")

	url, headers, err := a.Endpoint(provider.Profile{APIKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != DefaultRealtimeURL+"?model="+DefaultModel {
		t.Errorf("unexpected url: %s", url)
	}
	if headers.Get("Authorization") != "bearer key" {
		t.Errorf("unexpected auth header: %s", headers.Get("Authorization"))
	}
	if headers.Get("X-DashScope-WorkSpace") != "ws-123" {
		t.Errorf("unexpected workspace header: %s", headers.Get("X-DashScope-WorkSpace"))
	}

	url, _, err = a.Endpoint(provider.Profile{Region: "ap-southeast-1", Model: "qwen-omni"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != IntlRealtimeURL+"?model=qwen-omni" {
		t.Errorf("expected intl endpoint, got %s", url)
	}
}

func TestAdapter_Codecs(t *testing.T) {
	a := New("")

	if !a.Supports(provider.CodecPCM16) {
		t.Error("expected pcm16 support")
	}
	if a.Supports(provider.CodecG711ULaw) {
		t.Error("expected no g711 support")
	}
	if _, err := a.AudioAppend("AAAA", provider.CodecG711ULaw); !errors.Is(err, provider.ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
	if _, err := a.SessionSetup(provider.Profile{InputCodec: provider.CodecG711ALaw}); !errors.Is(err, provider.ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec from setup, got %v", err)
	}
}

func TestAdapter_SessionSetup_DefaultTurnDetection(t *testing.T) {
	payload, err := New("").SessionSetup(provider.Profile{Instructions: "Be brief."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var msg struct {
		Type    string `json:"type"`
		Session struct {
			Instructions  string         `json:"instructions"`
			TurnDetection map[string]any `json:"turn_detection"`
		} `json:"session"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if msg.Type != "session.update" {
		t.Errorf("expected session.update, got %s", msg.Type)
	}
	if msg.Session.TurnDetection["type"] != "server_vad" {
		t.Errorf("expected server_vad default, got %v", msg.Session.TurnDetection)
	}
	if msg.Session.Instructions != "Be brief." {
		t.Errorf("unexpected instructions: %s", msg.Session.Instructions)
	}
}

func TestAdapter_Parse(t *testing.T) {
	a := New("")

	tests := []struct {
		name     string
		raw      string
		wantType provider.EventType
		wantText string
		wantCrit bool
	}{
		{"session updated", `{"type":"session.updated"}`, provider.EventSessionInitialized, "", false},
		{"audio delta", `{"type":"response.audio.delta","delta":"AAAA"}`, provider.EventAudioOutputReady, "", false},
		{"choices audio", `{"choices":[{"message":{"content":[{"audio":{"data":"AAAA"}}]}}]}`, provider.EventAudioOutputReady, "", false},
		{"choices text", `{"choices":[{"message":{"content":[{"text":"Hi"}]}}]}`, provider.EventTranscriptionPartial, "Hi", false},
		{"choices finish", `{"choices":[{"finish_reason":"stop","message":{"content":[]}}]}`, provider.EventTurnCompleted, "", false},
		{"input transcript", `{"type":"conversation.item.input_audio_transcription.completed","transcript":"Hello"}`, provider.EventTranscriptionCompleted, "Hello", false},
		{"speech", `{"type":"input_audio_buffer.speech_started"}`, provider.EventUserSpeechDetected, "", false},
		{"done", `{"type":"response.done"}`, provider.EventTurnCompleted, "", false},
		{"quota", `{"type":"error","error":{"code":"Arrearage","message":"overdue"}}`, provider.EventError, "", true},
		{"bad param", `{"type":"error","error":{"code":"InvalidParameter","message":"bad"}}`, provider.EventError, "", false},
		{"finished", `{"type":"session.finished"}`, provider.EventError, "", true},
		{"unknown", `{"type":"response.created"}`, provider.EventUnknown, "", false},
		{"malformed", `]`, provider.EventUnknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := a.Parse([]byte(tt.raw))
			if ev.Type != tt.wantType {
				t.Fatalf("type = %s, want %s", ev.Type, tt.wantType)
			}
			if ev.Text != tt.wantText {
				t.Errorf("text = %q, want %q", ev.Text, tt.wantText)
			}
			if ev.Critical != tt.wantCrit {
				t.Errorf("critical = %v, want %v", ev.Critical, tt.wantCrit)
			}
			if tt.wantType == provider.EventAudioOutputReady && len(ev.Audio) != 3 {
				t.Errorf("expected 3 decoded bytes, got %d", len(ev.Audio))
			}
		})
	}
}
