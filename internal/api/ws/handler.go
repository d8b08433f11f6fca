// Package ws upgrades inbound HTTP requests to client WebSockets and runs one
// realtime session per connection.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ai-realtime-bridge-service/internal/config"
	"ai-realtime-bridge-service/internal/observability/logging"
	"ai-realtime-bridge-service/internal/realtime/session"
	"ai-realtime-bridge-service/internal/realtime/wire"
	"ai-realtime-bridge-service/internal/service/sink"
)

// ProfileSource resolves assistant profiles by name. *config.Profiles
// satisfies it.
type ProfileSource interface {
	Get(name string) (config.Profile, error)
}

// Runner runs one session to completion. *session.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, conn session.ClientConn, opts session.Options) error
}

// CallbackFactory builds per-session callbacks. *sink.Sink satisfies it.
type CallbackFactory interface {
	Callbacks(meta sink.Meta) session.Callbacks
}

// Config tunes the client socket.
type Config struct {
	ReadLimit    int64
	WriteTimeout time.Duration
}

// Handler is the realtime WebSocket endpoint.
type Handler struct {
	profiles  ProfileSource
	runner    Runner
	callbacks CallbackFactory
	cfg       Config
	upgrader  websocket.Upgrader

	// base outlives individual requests; cancelling it ends every session.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewHandler creates the endpoint. callbacks may be nil.
func NewHandler(profiles ProfileSource, runner Runner, callbacks CallbackFactory, cfg Config) *Handler {
	base, cancel := context.WithCancel(context.Background())
	return &Handler{
		profiles:  profiles,
		runner:    runner,
		callbacks: callbacks,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		base:   base,
		cancel: cancel,
	}
}

// Active returns the number of sessions in flight.
func (h *Handler) Active() int64 {
	return h.active.Load()
}

// ServeHTTP resolves the profile, upgrades the connection and blocks until
// the session ends.
//
// Query parameters: profile (optional, falls back to the default profile)
// and stream_id (optional, generated when absent).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithRequest(middleware.GetReqID(r.Context()), r.RemoteAddr)

	if h.base.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	profileName := r.URL.Query().Get("profile")
	profile, err := h.profiles.Get(profileName)
	if err != nil {
		logger.Warn().Err(err).Str("profile", profileName).Msg("Rejecting session")
		if errors.Is(err, config.ErrProfileNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	streamID := r.URL.Query().Get("stream_id")
	if streamID == "" {
		streamID = uuid.NewString()
	}
	opts, err := sessionOptions(profile, streamID)
	if err != nil {
		logger.Error().Err(err).Str("profile", profile.Name).Msg("Invalid profile")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h.callbacks != nil {
		opts.Callbacks = h.callbacks.Callbacks(sink.Meta{
			StreamID: streamID,
			Profile:  profile.Name,
			Provider: profile.Provider,
		})
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	if h.cfg.ReadLimit > 0 {
		conn.SetReadLimit(h.cfg.ReadLimit)
	}
	// The session answers close frames itself during cleanup.
	conn.SetCloseHandler(func(int, string) error { return nil })

	h.wg.Add(1)
	h.active.Add(1)
	defer func() {
		h.active.Add(-1)
		h.wg.Done()
	}()

	logger.Info().Str("profile", profile.Name).Str("provider", profile.Provider).Msg("Client session accepted")

	err = h.runner.Run(h.base, conn, opts)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrProviderConnect):
		logger.Error().Err(err).Str("profile", profile.Name).Msg("Session ended: provider unreachable")
	default:
		// Rejected before the session took ownership of the socket.
		logger.Error().Err(err).Str("profile", profile.Name).Msg("Session rejected")
		h.closeRejected(conn, err)
	}
}

func (h *Handler) closeRejected(conn *websocket.Conn, cause error) {
	reason := wire.CloseReason(cause.Error())
	deadline := time.Now().Add(h.writeTimeout())
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, reason), deadline)
	_ = conn.Close()
}

func (h *Handler) writeTimeout() time.Duration {
	if h.cfg.WriteTimeout > 0 {
		return h.cfg.WriteTimeout
	}
	return 5 * time.Second
}

// Shutdown cancels every live session and waits for their cleanup to finish
// or ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("All realtime sessions drained")
		return nil
	case <-ctx.Done():
		log.Warn().Int64("active", h.active.Load()).Msg("Timed out draining realtime sessions")
		return ctx.Err()
	}
}
