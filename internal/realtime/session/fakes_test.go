package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ai-realtime-bridge-service/internal/realtime/provider"
	"ai-realtime-bridge-service/internal/realtime/provider/dashscope"
	"ai-realtime-bridge-service/internal/realtime/provider/openai"
	"ai-realtime-bridge-service/internal/realtime/timer"
	"ai-realtime-bridge-service/internal/realtime/wire"
)

// fakeClient is an in-memory ClientConn. Closing in ends the read loop with
// a close frame carrying closeCode, or an abnormal EOF when closeCode is 0.
type fakeClient struct {
	in           chan []byte
	closeCode    int
	deadline     chan struct{}
	deadlineOnce sync.Once

	mu       sync.Mutex
	writes   [][]byte
	controls [][]byte
	closed   bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		in:        make(chan []byte, 64),
		closeCode: websocket.CloseNormalClosure,
		deadline:  make(chan struct{}),
	}
}

func (f *fakeClient) ReadMessage() (int, []byte, error) {
	select {
	case m, ok := <-f.in:
		if !ok {
			if f.closeCode == 0 {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, &websocket.CloseError{Code: f.closeCode}
		}
		return websocket.TextMessage, m, nil
	case <-f.deadline:
		return 0, nil, errors.New("i/o timeout")
	}
}

func (f *fakeClient) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("use of closed connection")
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeClient) WriteControl(_ int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, append([]byte(nil), data...))
	return nil
}

func (f *fakeClient) SetReadDeadline(t time.Time) error {
	if !t.After(time.Now()) {
		f.deadlineOnce.Do(func() { close(f.deadline) })
	}
	return nil
}

func (f *fakeClient) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type sentEnvelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"Data"`
	SessionID string          `json:"session_id"`
}

func (f *fakeClient) envelopes() []sentEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEnvelope
	for _, w := range f.writes {
		var e sentEnvelope
		if err := json.Unmarshal(w, &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeClient) count(typ string) int {
	n := 0
	for _, e := range f.envelopes() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// closeCodes returns the status codes of close frames written to the client.
func (f *fakeClient) closeCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, c := range f.controls {
		if len(c) >= 2 {
			out = append(out, int(c[0])<<8|int(c[1]))
		}
	}
	return out
}

// closeReasons returns the reasons of close frames written to the client.
func (f *fakeClient) closeReasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.controls {
		if len(c) >= 2 {
			out = append(out, string(c[2:]))
		}
	}
	return out
}

// fakeProvider is an in-memory ProviderConn.
type fakeProvider struct {
	connectErr error
	inbound    chan wire.Inbound

	mu       sync.Mutex
	open     bool
	connects int
	endpoint string
	sent     [][]byte
	closes   int
	reason   string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{inbound: make(chan wire.Inbound, 64)}
}

func (p *fakeProvider) Connect(_ context.Context, endpoint string, _ http.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	if p.connectErr != nil {
		return p.connectErr
	}
	p.open = true
	p.endpoint = endpoint
	p.inbound <- wire.Inbound{State: wire.StateOpen}
	return nil
}

func (p *fakeProvider) Send(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return wire.ErrNotConnected
	}
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}

func (p *fakeProvider) Inbound() <-chan wire.Inbound { return p.inbound }

func (p *fakeProvider) Close(_ int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	p.reason = reason
	p.open = false
	return nil
}

func (p *fakeProvider) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *fakeProvider) push(raw string) {
	p.inbound <- wire.Inbound{Message: []byte(raw), State: wire.StateOpen}
}

// sentTypes returns the "type" of every message sent, skipping session setup.
func (p *fakeProvider) sentTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.sent {
		var v struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(m, &v)
		if v.Type == "session.update" {
			continue
		}
		out = append(out, v.Type)
	}
	return out
}

func (p *fakeProvider) closeCount() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes, p.reason
}

func testEngine(fp *fakeProvider) *Engine {
	return NewEngine(Config{
		Registry:        provider.NewRegistry(openai.New(), dashscope.New("")),
		Dial:            func(provider.ID) ProviderConn { return fp },
		Timers:          timer.NewManager(),
		DrainTimeout:    500 * time.Millisecond,
		CallbackTimeout: time.Second,
	})
}

func testOptions() Options {
	return Options{
		Provider: provider.OpenAI,
		Profile: provider.Profile{
			ServiceURL: "wss://realtime.example.test/v1/realtime",
			APIKey:     "sk-test",
		},
		StreamID: "stream-1",
	}
}

// liveSession builds a session already wired to an open fake provider.
func liveSession(t *testing.T, opts Options) (*Session, *fakeClient, *fakeProvider) {
	t.Helper()
	fc := newFakeClient()
	fp := newFakeProvider()
	s, err := newSession(context.Background(), testEngine(fp), fc, opts)
	if err != nil {
		t.Fatalf("newSession failed: %v", err)
	}
	if err := s.connectToProvider(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { s.timers.StopAll() })
	return s, fc, fp
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// callbackLog records the order of end-of-session callbacks.
type callbackLog struct {
	mu          sync.Mutex
	calls       []string
	wav         []byte
	transcripts []Transcript
}

func (c *callbackLog) add(name string) {
	c.mu.Lock()
	c.calls = append(c.calls, name)
	c.mu.Unlock()
}

func (c *callbackLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callbackLog) callbacks() Callbacks {
	return Callbacks{
		OnSessionEnded: func(ctx context.Context, id string) error {
			c.add("ended")
			return nil
		},
		OnRecordingComplete: func(ctx context.Context, id string, wav []byte) error {
			c.mu.Lock()
			c.wav = wav
			c.mu.Unlock()
			c.add("recording")
			return nil
		},
		OnTranscriptionsComplete: func(ctx context.Context, id string, ts []Transcript) error {
			c.mu.Lock()
			c.transcripts = ts
			c.mu.Unlock()
			c.add("transcripts")
			return nil
		},
	}
}
