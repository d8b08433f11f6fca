package session

import (
	"encoding/base64"
	"encoding/json"
	"reflect"
	"testing"

	"ai-realtime-bridge-service/internal/realtime/provider"
	"ai-realtime-bridge-service/internal/realtime/provider/dashscope"
	"ai-realtime-bridge-service/internal/realtime/provider/openai"
)

func TestClientText_SendsMessageThenTrigger(t *testing.T) {
	opts := testOptions()
	opts.RecordingEnabled = true
	s, _, fp := liveSession(t, opts)

	s.handleClientMessage([]byte(`{"text":"hello"}`))

	if got, want := fp.sentTypes(), []string{"conversation.item.create", "response.create"}; !reflect.DeepEqual(got, want) {
		t.Errorf("provider received %v, want %v", got, want)
	}
	if n := s.recordingLen(); n != 0 {
		t.Errorf("text must not touch the recording, got %d bytes", n)
	}
}

func TestClientAudio_RecordingExclusivity(t *testing.T) {
	opts := testOptions()
	opts.RecordingEnabled = true
	s, _, fp := liveSession(t, opts)

	s.isAiSpeaking.Store(true)
	s.handleClientMessage([]byte(`{"media":{"payload":"AAAA"}}`))
	if n := s.recordingLen(); n != 0 {
		t.Errorf("audio while AI speaks must not be recorded, got %d bytes", n)
	}
	if n := len(fp.sentTypes()); n != 1 {
		t.Errorf("audio must still be forwarded, got %d messages", n)
	}

	s.isAiSpeaking.Store(false)
	s.handleClientMessage([]byte(`{"media":{"payload":"AAAA"}}`))
	if n := s.recordingLen(); n != 3 {
		t.Errorf("expected 3 recorded bytes, got %d", n)
	}
	if n := len(fp.sentTypes()); n != 2 {
		t.Errorf("expected 2 forwarded frames, got %d", n)
	}
}

func TestClientAudio_ForwardsOriginalPayload(t *testing.T) {
	s, _, fp := liveSession(t, testOptions())

	s.handleClientMessage([]byte(`{"event":"media","media":{"payload":"AQID"}}`))

	fp.mu.Lock()
	last := fp.sent[len(fp.sent)-1]
	fp.mu.Unlock()
	var msg struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}
	if err := json.Unmarshal(last, &msg); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if msg.Type != "input_audio_buffer.append" || msg.Audio != "AQID" {
		t.Errorf("unexpected append: %+v", msg)
	}
}

func TestClientMessages_DroppedShapes(t *testing.T) {
	s, _, fp := liveSession(t, testOptions())

	s.handleClientMessage([]byte(`{"event":"start"}`))
	s.handleClientMessage([]byte(`{"media":`))
	s.handleClientMessage([]byte(`{"media":{"payload":"***"}}`))

	if n := len(fp.sentTypes()); n != 0 {
		t.Errorf("expected nothing forwarded, got %d", n)
	}
}

func TestClientAudio_TranscodesForPCMOnlyProvider(t *testing.T) {
	opts := testOptions()
	opts.Provider = provider.DashScope
	opts.ClientCodec = provider.CodecG711ULaw
	opts.RecordingEnabled = true
	s, _, fp := liveSession(t, opts)

	if !s.codecs.transcode || s.codecs.input != provider.CodecPCM16 {
		t.Fatalf("expected pcm16 negotiation with transcoding, got %+v", s.codecs)
	}

	chunk := base64.StdEncoding.EncodeToString(make([]byte, 1600))
	for i := 0; i < 5; i++ {
		s.handleClientMessage([]byte(`{"media":{"payload":"` + chunk + `"}}`))
	}

	if n := len(fp.sentTypes()); n != 5 {
		t.Fatalf("expected 5 appends, got %d", n)
	}
	if n := s.recordingLen(); n <= 0 || n%2 != 0 {
		t.Errorf("expected PCM16 recording, got %d bytes", n)
	}
}

func TestNegotiateCodecs(t *testing.T) {
	tests := []struct {
		name          string
		adapter       provider.Adapter
		client        provider.Codec
		profileIn     provider.Codec
		profileOut    provider.Codec
		wantInput     provider.Codec
		wantOutput    provider.Codec
		wantTranscode bool
	}{
		{"defaults", openai.New(), "", "", "", provider.CodecPCM16, provider.CodecPCM16, false},
		{"native g711", openai.New(), provider.CodecG711ULaw, "", provider.CodecG711ULaw, provider.CodecG711ULaw, provider.CodecG711ULaw, false},
		{"profile input default", openai.New(), "", provider.CodecG711ALaw, "", provider.CodecG711ALaw, provider.CodecPCM16, false},
		{"pcm only provider", dashscope.New(""), provider.CodecG711ALaw, "", provider.CodecG711ALaw, provider.CodecPCM16, provider.CodecPCM16, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{
				ClientCodec: tt.client,
				Profile:     provider.Profile{InputCodec: tt.profileIn, OutputCodec: tt.profileOut},
			}
			plan, err := negotiateCodecs(tt.adapter, opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if plan.input != tt.wantInput || plan.output != tt.wantOutput || plan.transcode != tt.wantTranscode {
				t.Errorf("plan = %+v", plan)
			}
		})
	}
}
