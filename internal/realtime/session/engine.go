// Package session implements the realtime session engine: one Session per
// live conversation, bridging a client WebSocket to a provider WebSocket.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-realtime-bridge-service/internal/observability/metrics"
	"ai-realtime-bridge-service/internal/realtime/provider"
	"ai-realtime-bridge-service/internal/realtime/timer"
	"ai-realtime-bridge-service/internal/realtime/wire"
	"ai-realtime-bridge-service/internal/schema"
)

// Errors returned by Engine.Run.
var (
	ErrProviderConnect = errors.New("provider connection failed")
	ErrInvalidOptions  = errors.New("invalid session options")
)

// ClientConn is the caller-facing socket. *websocket.Conn satisfies it.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ProviderConn is the provider-side socket. *wire.Client satisfies it.
type ProviderConn interface {
	Connect(ctx context.Context, endpoint string, header http.Header) error
	Send(ctx context.Context, data []byte) error
	Inbound() <-chan wire.Inbound
	Close(code int, reason string) error
	IsOpen() bool
}

// Dialer rents an unconnected ProviderConn for a provider.
type Dialer func(id provider.ID) ProviderConn

// Config wires an Engine to its collaborators.
type Config struct {
	Registry *provider.Registry
	Dial     Dialer
	Timers   *timer.Manager
	Metrics  *metrics.Metrics

	Classifier *schema.Classifier

	// ClientWriteTimeout bounds each write to the client socket.
	ClientWriteTimeout time.Duration
	// DrainTimeout bounds how long cleanup waits for the provider dispatch
	// loop to exit.
	DrainTimeout time.Duration
	// CallbackTimeout bounds each end-of-session callback.
	CallbackTimeout time.Duration
}

// Engine runs sessions. It holds no per-session state and is safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine, filling unset collaborators with defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.Registry == nil {
		cfg.Registry = provider.NewRegistry()
	}
	if cfg.Dial == nil {
		sw := wire.NewSwitcher(wire.DefaultConfig())
		cfg.Dial = func(id provider.ID) ProviderConn { return sw.Rent(id) }
	}
	if cfg.Timers == nil {
		cfg.Timers = timer.NewManager()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	if cfg.Classifier == nil {
		cfg.Classifier = schema.New()
	}
	if cfg.ClientWriteTimeout <= 0 {
		cfg.ClientWriteTimeout = 5 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Second
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = 30 * time.Second
	}
	return &Engine{cfg: cfg}
}

// Timers returns the engine's timer registry.
func (e *Engine) Timers() *timer.Manager {
	return e.cfg.Timers
}

// Run owns one conversation from connect to teardown. It blocks until either
// side disconnects, a critical provider error occurs, or ctx is cancelled.
//
// Configuration errors are returned before the provider socket is opened.
// A provider connect failure is returned wrapped in ErrProviderConnect, after
// cleanup has run. Any other ending returns nil.
// reasonProviderUnavailable is the client-facing close reason on connect
// failure. The dial error itself is only logged.
const reasonProviderUnavailable = "Provider unavailable"

func (e *Engine) Run(ctx context.Context, conn ClientConn, opts Options) error {
	s, err := newSession(ctx, e, conn, opts)
	if err != nil {
		return err
	}
	return s.run()
}

func (s *Session) run() error {
	start := time.Now()
	s.metrics.RecordSessionStart()
	s.log.Info().
		Str("clientCodec", string(s.codecs.client)).
		Str("inputCodec", string(s.codecs.input)).
		Str("outputCodec", string(s.codecs.output)).
		Bool("recording", s.opts.RecordingEnabled).
		Msg("Session starting")

	if err := s.connectToProvider(s.ctx); err != nil {
		s.metrics.RecordConnectFailure(string(s.adapter.ID()))
		s.lifecycle.Abort()
		s.log.Error().Err(err).Msg("Provider connection failed")
		s.setProviderFault(reasonProviderUnavailable)
		_ = s.notify(TypeClientError, ClientErrorData{
			Code:    CodeProviderUnavailable,
			Message: "The assistant is unavailable right now",
		})
		s.cleanup()
		s.metrics.RecordSessionEnd("connect_failed", time.Since(start).Seconds())
		return fmt.Errorf("%w: %v", ErrProviderConnect, err)
	}

	s.dispatching.Store(true)
	go s.dispatchLoop()

	s.readClient()
	s.cleanup()

	s.metrics.RecordSessionEnd(s.failureLabel(), time.Since(start).Seconds())
	s.log.Info().
		Int64("rounds", s.Round()).
		Dur("duration", time.Since(start)).
		Msg("Session ended")
	return nil
}
