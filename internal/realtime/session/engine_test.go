package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"ai-realtime-bridge-service/internal/realtime/provider"
	"ai-realtime-bridge-service/internal/realtime/wire"
)

type runResult struct {
	err error
}

func runAsync(ctx context.Context, e *Engine, fc *fakeClient, opts Options) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		done <- runResult{err: e.Run(ctx, fc, opts)}
	}()
	return done
}

func waitRun(t *testing.T, done <-chan runResult) error {
	t.Helper()
	select {
	case r := <-done:
		return r.err
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	return nil
}

func TestEngine_GracefulClientClose(t *testing.T) {
	fc := newFakeClient()
	fp := newFakeProvider()
	cbs := &callbackLog{}

	opts := testOptions()
	opts.RecordingEnabled = true
	opts.IdleFollowUp = &IdleFollowUp{TimeoutSeconds: 30, FollowUpMessage: "Hello?"}
	opts.Callbacks = cbs.callbacks()
	e := testEngine(fp)

	done := runAsync(context.Background(), e, fc, opts)

	fp.push(`{"type":"session.updated"}`)
	fp.push(`{"type":"response.audio.delta","delta":"AAAA"}`)
	fp.push(`{"type":"response.audio_transcript.done","transcript":"Hi, how can I help?"}`)
	fp.push(`{"type":"response.done","response":{"status":"completed"}}`)
	waitFor(t, "turn completion", func() bool { return fc.count(TypeAiTurnCompleted) == 1 })
	if !e.Timers().Active("idle:stream-1") {
		t.Fatal("expected idle timer after the first turn")
	}

	fc.in <- []byte(`{"media":{"payload":"AAAA"}}`)
	fc.in <- []byte(`{"text":"I need help"}`)
	close(fc.in)

	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	closes, reason := fp.closeCount()
	if closes != 1 || reason != "Client disconnected" {
		t.Errorf("provider closes=%d reason=%q", closes, reason)
	}
	if codes := fc.closeCodes(); len(codes) != 1 || codes[0] != 1000 {
		t.Errorf("expected close acknowledgement 1000, got %v", codes)
	}
	if e.Timers().Active("idle:stream-1") {
		t.Error("idle timer should be stopped")
	}
	if got, want := cbs.snapshot(), []string{"ended", "recording", "transcripts"}; !reflect.DeepEqual(got, want) {
		t.Errorf("callback order = %v, want %v", got, want)
	}
	// 3 bytes of AI audio plus 3 bytes of caller audio after the turn ended.
	if len(cbs.wav) != 44+6 {
		t.Errorf("expected 50-byte WAV, got %d", len(cbs.wav))
	}
	if len(cbs.transcripts) != 1 || cbs.transcripts[0].Speaker != "assistant" {
		t.Errorf("unexpected transcripts: %+v", cbs.transcripts)
	}
	types := fp.sentTypes()
	want := []string{"input_audio_buffer.append", "conversation.item.create", "response.create"}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("provider received %v, want %v", types, want)
	}
}

func TestEngine_ProviderConnectionLost(t *testing.T) {
	fc := newFakeClient()
	fp := newFakeProvider()
	cbs := &callbackLog{}
	opts := testOptions()
	opts.Callbacks = cbs.callbacks()

	done := runAsync(context.Background(), testEngine(fp), fc, opts)

	waitFor(t, "connect", fp.IsOpen)
	fp.inbound <- wire.Inbound{State: wire.StateAborted, Err: errors.New("unexpected EOF")}

	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if n := fc.count(TypeClientError); n != 1 {
		t.Errorf("expected 1 ClientError, got %d", n)
	}
	for _, env := range fc.envelopes() {
		if env.Type == TypeClientError && !strings.Contains(string(env.Data), CodeConnectionLost) {
			t.Errorf("expected ConnectionLost code, got %s", env.Data)
		}
	}
	if closes, _ := fp.closeCount(); closes != 1 {
		t.Errorf("expected exactly 1 provider disconnect, got %d", closes)
	}
	if got := cbs.snapshot(); !reflect.DeepEqual(got, []string{"ended"}) {
		t.Errorf("expected only session-ended, got %v", got)
	}
	if codes := fc.closeCodes(); len(codes) != 1 || codes[0] != 1011 {
		t.Errorf("expected 1011 close to client, got %v", codes)
	}
}

func TestEngine_CriticalProviderError(t *testing.T) {
	fc := newFakeClient()
	fp := newFakeProvider()
	cbs := &callbackLog{}
	opts := testOptions()
	opts.Callbacks = cbs.callbacks()

	done := runAsync(context.Background(), testEngine(fp), fc, opts)

	fp.push(`{"type":"error","error":{"type":"invalid_request_error","code":"invalid_api_key","message":"Incorrect API key"}}`)

	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	closes, reason := fp.closeCount()
	if closes != 1 || reason != "Incorrect API key" {
		t.Errorf("provider closes=%d reason=%q", closes, reason)
	}
	if got := cbs.snapshot(); len(got) != 1 || got[0] != "ended" {
		t.Errorf("expected session-ended exactly once, got %v", got)
	}
}

func TestEngine_AbnormalClientDisconnect(t *testing.T) {
	fc := newFakeClient()
	fc.closeCode = 0
	fp := newFakeProvider()

	done := runAsync(context.Background(), testEngine(fp), fc, testOptions())
	waitFor(t, "connect", fp.IsOpen)
	close(fc.in)

	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if _, reason := fp.closeCount(); reason != "Client connection lost" {
		t.Errorf("unexpected reason %q", reason)
	}
	if codes := fc.closeCodes(); len(codes) != 0 {
		t.Errorf("expected no close frame to a vanished client, got %v", codes)
	}
}

func TestEngine_ConnectFailure(t *testing.T) {
	fc := newFakeClient()
	fp := newFakeProvider()
	fp.connectErr = wire.ErrConnect
	cbs := &callbackLog{}
	opts := testOptions()
	opts.Callbacks = cbs.callbacks()

	err := testEngine(fp).Run(context.Background(), fc, opts)
	if !errors.Is(err, ErrProviderConnect) {
		t.Fatalf("expected ErrProviderConnect, got %v", err)
	}
	if got := cbs.snapshot(); !reflect.DeepEqual(got, []string{"ended"}) {
		t.Errorf("expected cleanup to run before returning, got %v", got)
	}
	if n := fc.count(TypeClientError); n != 1 {
		t.Errorf("expected 1 ClientError, got %d", n)
	}
	for _, env := range fc.envelopes() {
		if env.Type == TypeClientError && !strings.Contains(string(env.Data), CodeProviderUnavailable) {
			t.Errorf("expected ProviderUnavailable code, got %s", env.Data)
		}
	}
	if codes := fc.closeCodes(); len(codes) != 1 || codes[0] != 1011 {
		t.Errorf("expected 1011 close to client, got %v", codes)
	}
	if reasons := fc.closeReasons(); len(reasons) != 1 || reasons[0] != reasonProviderUnavailable {
		t.Errorf("expected sanitized close reason, got %q", reasons)
	}
}

func TestEngine_InvalidOptionsFailBeforeConnect(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr error
	}{
		{"unknown provider", func(o *Options) { o.Provider = "acme" }, provider.ErrUnknownProvider},
		{"missing provider", func(o *Options) { o.Provider = "" }, ErrInvalidOptions},
		{"missing service url", func(o *Options) { o.Profile.ServiceURL = "" }, provider.ErrMissingServiceURL},
		{"bad idle policy", func(o *Options) { o.IdleFollowUp = &IdleFollowUp{TimeoutSeconds: 0, FollowUpMessage: "x"} }, ErrInvalidOptions},
		{"bad client codec", func(o *Options) { o.ClientCodec = "opus" }, ErrInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := newFakeProvider()
			opts := testOptions()
			tt.mutate(&opts)

			err := testEngine(fp).Run(context.Background(), newFakeClient(), opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if fp.connects != 0 {
				t.Error("provider socket must not be opened on configuration errors")
			}
		})
	}
}

func TestEngine_CallerCancellation(t *testing.T) {
	fc := newFakeClient()
	fp := newFakeProvider()
	ctx, cancel := context.WithCancel(context.Background())

	done := runAsync(ctx, testEngine(fp), fc, testOptions())
	waitFor(t, "connect", fp.IsOpen)
	cancel()

	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if closes, _ := fp.closeCount(); closes != 1 {
		t.Errorf("expected provider disconnect, got %d", closes)
	}
	if codes := fc.closeCodes(); len(codes) != 1 || codes[0] != 1001 {
		t.Errorf("expected going-away close to client, got %v", codes)
	}
}

func TestSession_TeardownIsIdempotent(t *testing.T) {
	cbs := &callbackLog{}
	opts := testOptions()
	opts.RecordingEnabled = true
	opts.Callbacks = cbs.callbacks()
	s, _, fp := liveSession(t, opts)

	s.handleEvent(provider.Event{Type: provider.EventAudioOutputReady, AudioBase64: "AAAA", Audio: []byte{1, 2, 3}})
	s.handleEvent(provider.Event{Type: provider.EventTranscriptionCompleted, Text: "hello", Direction: provider.DirectionInput})
	s.lifecycle.Abort()

	s.cleanup()
	s.cleanup()
	if err := s.disconnectFromProvider("again"); err != nil {
		t.Errorf("second disconnect should be a no-op, got %v", err)
	}
	if err := s.finalizeRecording(context.Background()); err != nil {
		t.Errorf("second finalize should be a no-op, got %v", err)
	}

	if closes, _ := fp.closeCount(); closes != 1 {
		t.Errorf("expected 1 provider close, got %d", closes)
	}
	if got, want := cbs.snapshot(), []string{"ended", "recording", "transcripts"}; !reflect.DeepEqual(got, want) {
		t.Errorf("callbacks = %v, want %v", got, want)
	}
	if s.State() != StateTerminated {
		t.Errorf("expected TERMINATED, got %s", s.State())
	}
	if err := s.notify(TypeSpeechDetected, nil); err == nil {
		t.Error("writes after teardown should fail")
	}
}

func TestSession_CleanupSurvivesFailingSteps(t *testing.T) {
	cbs := &callbackLog{}
	opts := testOptions()
	opts.RecordingEnabled = true
	opts.Callbacks = cbs.callbacks()
	opts.Callbacks.OnSessionEnded = func(context.Context, string) error {
		panic("sink exploded")
	}
	s, _, _ := liveSession(t, opts)

	s.appendRecording([]byte{1, 2})
	s.enqueueTranscript(Transcript{Speaker: "user", Text: "hi"})
	s.cleanup()

	if got, want := cbs.snapshot(), []string{"recording", "transcripts"}; !reflect.DeepEqual(got, want) {
		t.Errorf("later steps must still run, got %v", got)
	}
}

func TestSession_RecordingDisabled(t *testing.T) {
	cbs := &callbackLog{}
	opts := testOptions()
	opts.Callbacks = cbs.callbacks()
	s, _, _ := liveSession(t, opts)

	s.handleEvent(provider.Event{Type: provider.EventAudioOutputReady, AudioBase64: "AAAA", Audio: []byte{1, 2, 3}})
	s.handleClientMessage([]byte(`{"media":{"payload":"AAAA"}}`))
	if s.recordingLen() != -1 {
		t.Error("no buffer should exist when recording is disabled")
	}
	if err := s.finalizeRecording(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cbs.snapshot()) != 0 {
		t.Error("recording callback must not fire when recording is disabled")
	}
}
