// Package wire manages outbound WebSocket connections to realtime providers.
//
// A Client pushes everything it learns from the socket (messages, state
// changes, read errors) onto a single ordered channel consumed by one dispatch
// loop, so there are no callbacks to subscribe or unsubscribe.
package wire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// State is the connection state of a Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateAborted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for CLOSED and ABORTED.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateAborted
}

// Errors returned by Client.
var (
	ErrNotConnected = errors.New("provider connection is not open")
	ErrConnect      = errors.New("provider connection failed")
)

// Inbound is one notification from the provider socket: a message, a state
// change, or both a terminal state and the read error that caused it.
type Inbound struct {
	Message []byte
	State   State
	Err     error
}

// IsMessage reports whether the notification carries a wire message.
func (in Inbound) IsMessage() bool {
	return in.Message != nil
}

// Config tunes a Client.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
	InboundBuffer    int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        4 * 1024 * 1024,
		InboundBuffer:    256,
	}
}

// link is one physical connection. A Client may hold several over its life
// but only one at a time.
type link struct {
	conn     *websocket.Conn
	endpoint string
	inbound  chan Inbound
	done     chan struct{}
	closing  bool
}

// Client owns at most one provider connection at a time.
type Client struct {
	cfg Config

	mu    sync.Mutex
	state State
	link  *link

	// writeMu serializes writers; gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

// NewClient creates an unconnected Client.
func NewClient(cfg Config) *Client {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = DefaultConfig().InboundBuffer
	}
	return &Client{cfg: cfg}
}

// Connect opens a connection to endpoint. If the client is already open to
// the same endpoint it does nothing; an open connection to a different
// endpoint is closed first.
func (c *Client) Connect(ctx context.Context, endpoint string, header http.Header) error {
	c.mu.Lock()
	if c.link != nil && c.state == StateOpen && c.link.endpoint == endpoint {
		c.mu.Unlock()
		return nil
	}
	stale := c.link != nil
	c.mu.Unlock()

	if stale {
		if err := c.Close(websocket.CloseNormalClosure, "reconnecting"); err != nil {
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("Closing previous provider connection failed")
		}
	}

	c.setState(StateConnecting)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		c.setState(StateAborted)
		if resp != nil {
			return fmt.Errorf("%w: %v (http status %d)", ErrConnect, err, resp.StatusCode)
		}
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}

	l := &link{
		conn:     conn,
		endpoint: endpoint,
		inbound:  make(chan Inbound, c.cfg.InboundBuffer),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	c.link = l
	c.state = StateOpen
	c.mu.Unlock()

	l.inbound <- Inbound{State: StateOpen}
	go c.readLoop(l)

	log.Debug().Str("endpoint", endpoint).Msg("Provider connection open")
	return nil
}

// Inbound returns the notification channel of the current connection. It is
// closed after the connection's terminal state has been delivered. Nil if the
// client never connected.
func (c *Client) Inbound() <-chan Inbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return nil
	}
	return c.link.inbound
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen reports whether the connection is open.
func (c *Client) IsOpen() bool {
	return c.State() == StateOpen
}

// Endpoint returns the endpoint of the current connection.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return ""
	}
	return c.link.endpoint
}

// Send writes one text message. The write deadline is the earlier of the
// context deadline and the configured write timeout.
func (c *Client) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	l := c.link
	open := c.state == StateOpen
	c.mu.Unlock()
	if l == nil || !open {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := l.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame with code and reason, then closes the socket.
// Closing an unconnected or already closed client is a no-op.
func (c *Client) Close(code int, reason string) error {
	c.mu.Lock()
	l := c.link
	if l == nil || l.closing {
		c.mu.Unlock()
		return nil
	}
	alreadyDown := c.state.IsTerminal()
	l.closing = true
	c.state = StateClosing
	close(l.done)
	c.mu.Unlock()

	if alreadyDown {
		_ = l.conn.Close()
		c.setState(StateClosed)
		return nil
	}

	c.writeMu.Lock()
	werr := l.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, CloseReason(reason)),
		time.Now().Add(c.cfg.WriteTimeout),
	)
	c.writeMu.Unlock()
	cerr := l.conn.Close()

	c.setState(StateClosed)

	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return werr
	}
	return cerr
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) readLoop(l *link) {
	defer close(l.inbound)

	for {
		_, msg, err := l.conn.ReadMessage()
		if err != nil {
			final := StateAborted
			c.mu.Lock()
			if l.closing {
				final = StateClosed
			} else if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				final = StateClosed
			}
			if c.link == l && !l.closing {
				c.state = final
			}
			closing := l.closing
			c.mu.Unlock()

			if closing {
				return
			}
			// Nobody closed us; make sure the peer-side socket is released.
			_ = l.conn.Close()
			select {
			case l.inbound <- Inbound{State: final, Err: err}:
			case <-l.done:
			}
			return
		}

		select {
		case l.inbound <- Inbound{Message: msg, State: StateOpen}:
		case <-l.done:
			return
		}
	}
}

const maxCloseReason = 120

// CloseReason keeps a close reason within the 123-byte control frame limit
// without splitting a UTF-8 sequence.
func CloseReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	cut := maxCloseReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
