// Package mock provides a simulated realtime provider that speaks the OpenAI
// Realtime wire protocol. It lets the bridge run end to end without cloud
// credentials.
//
// Behavior per connection:
//   - session.created on connect, session.updated for every session.update
//   - after FramesPerUtterance appended audio frames: speech_started, the
//     caller's transcript, then a scripted AI reply
//   - response.create replies to the most recent text item
//   - unknown client events yield a non-critical error
package mock

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Exchange is one simulated caller utterance and the AI reply to it.
type Exchange struct {
	Heard string // caller transcript
	Reply string // AI transcript
}

// DefaultExchanges cycle across connections.
var DefaultExchanges = []Exchange{
	{Heard: "I want to cancel my subscription", Reply: "I can help with that. May I have your account number?"},
	{Heard: "Yes please go ahead", Reply: "Done. Is there anything else?"},
	{Heard: "Can you help me with my account", Reply: "Of course. What seems to be the problem?"},
	{Heard: "I've been waiting for over an hour", Reply: "I'm sorry about the wait. Let's sort this out now."},
	{Heard: "Thank you very much", Reply: "You're welcome. Have a great day!"},
}

// Config tunes the simulation.
type Config struct {
	FramesPerUtterance int           // appended frames that make one caller utterance
	AudioChunks        int           // audio deltas per reply
	ChunkBytes         int           // decoded bytes per audio delta
	Delay              time.Duration // pause between server events
	RequireAuth        bool          // reject connections without an Authorization header
}

// DefaultConfig returns a quick, realistic-enough simulation.
func DefaultConfig() Config {
	return Config{
		FramesPerUtterance: 10,
		AudioChunks:        3,
		ChunkBytes:         4800, // 100ms of pcm16 at 24kHz
		Delay:              20 * time.Millisecond,
		RequireAuth:        true,
	}
}

// Server is an http.Handler that upgrades to the simulated protocol.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu   sync.Mutex
	next int
}

// New creates a simulated provider. Zero numeric fields take their
// DefaultConfig values.
func New(cfg Config) *Server {
	d := DefaultConfig()
	if cfg.FramesPerUtterance <= 0 {
		cfg.FramesPerUtterance = d.FramesPerUtterance
	}
	if cfg.AudioChunks <= 0 {
		cfg.AudioChunks = d.AudioChunks
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = d.ChunkBytes
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles one simulated provider session. A "fail" query parameter
// makes the server report that error code (as critical) after setup.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cfg.RequireAuth && r.Header.Get("Authorization") == "" && r.Header.Get("api-key") == "" {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Mock provider upgrade failed")
		return
	}
	defer conn.Close()

	c := &simSession{
		cfg:      s.cfg,
		ws:       conn,
		exchange: s.nextExchange(),
		failCode: r.URL.Query().Get("fail"),
	}
	c.serve()
}

func (s *Server) nextExchange() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.next % len(DefaultExchanges)
	s.next++
	return idx
}

// simSession is one simulated session. All writes happen on the read goroutine.
type simSession struct {
	cfg      Config
	ws       *websocket.Conn
	exchange int
	failCode string

	frames   int
	lastText string
}

func (c *simSession) serve() {
	c.send(map[string]any{"type": "session.created", "session": map[string]any{"id": "sess_" + shortID()}})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if !gjson.ValidBytes(msg) {
			c.sendError("invalid_request_error", "invalid_json", "message is not valid JSON")
			continue
		}

		switch typ := gjson.GetBytes(msg, "type").Str; typ {
		case "session.update":
			c.send(map[string]any{"type": "session.updated", "session": json.RawMessage(gjson.GetBytes(msg, "session").Raw)})
			if c.failCode != "" {
				c.sendError("invalid_request_error", c.failCode, "simulated failure: "+c.failCode)
			}

		case "input_audio_buffer.append":
			c.frames++
			if c.frames < c.cfg.FramesPerUtterance {
				continue
			}
			c.frames = 0
			ex := DefaultExchanges[c.exchange%len(DefaultExchanges)]
			c.exchange++
			c.send(map[string]any{"type": "input_audio_buffer.speech_started"})
			c.pause()
			c.send(map[string]any{"type": "conversation.item.input_audio_transcription.completed", "transcript": ex.Heard})
			c.respond(ex.Reply)

		case "conversation.item.create":
			c.lastText = gjson.GetBytes(msg, "item.content.0.text").Str
			c.send(map[string]any{"type": "conversation.item.created"})

		case "response.create":
			reply := DefaultExchanges[c.exchange%len(DefaultExchanges)].Reply
			if c.lastText != "" {
				reply = "You said: " + c.lastText
				c.lastText = ""
			}
			c.respond(reply)

		default:
			c.sendError("invalid_request_error", "unknown_event", "unsupported event type "+typ)
		}
	}
}

// respond streams one AI turn: audio deltas, transcript deltas, the final
// transcript and response.done.
func (c *simSession) respond(text string) {
	responseID := "resp_" + shortID()
	c.send(map[string]any{"type": "response.created", "response": map[string]any{"id": responseID}})

	silence := base64.StdEncoding.EncodeToString(make([]byte, c.cfg.ChunkBytes))
	words := strings.Fields(text)
	for i := 0; i < c.cfg.AudioChunks; i++ {
		c.pause()
		c.send(map[string]any{"type": "response.audio.delta", "response_id": responseID, "delta": silence})
		if i < len(words) {
			c.send(map[string]any{"type": "response.audio_transcript.delta", "response_id": responseID, "delta": words[i] + " "})
		}
	}
	c.send(map[string]any{"type": "response.audio_transcript.done", "response_id": responseID, "transcript": text})
	c.send(map[string]any{"type": "response.done", "response": map[string]any{"id": responseID, "status": "completed"}})
}

func (c *simSession) sendError(typ, code, message string) {
	c.send(map[string]any{
		"type":  "error",
		"error": map[string]any{"type": typ, "code": code, "message": message},
	})
}

func (c *simSession) send(ev map[string]any) {
	ev["event_id"] = "event_" + shortID()
	if err := c.ws.WriteJSON(ev); err != nil {
		log.Debug().Err(err).Msg("Mock provider write failed")
	}
}

func (c *simSession) pause() {
	if c.cfg.Delay > 0 {
		time.Sleep(c.cfg.Delay)
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
