package session

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// connectToProvider opens the provider socket (a no-op if this session is
// already connected to the same endpoint) and sends the session setup.
func (s *Session) connectToProvider(ctx context.Context) error {
	_, header, err := s.adapter.Endpoint(s.profile)
	if err != nil {
		return err
	}

	s.connMu.Lock()
	pc := s.providerConn
	if pc == nil {
		pc = s.dial(s.adapter.ID())
	}
	s.connMu.Unlock()

	if err := pc.Connect(ctx, s.endpoint, header); err != nil {
		return err
	}
	if !pc.IsOpen() {
		_ = pc.Close(websocket.CloseNormalClosure, "not open")
		return fmt.Errorf("provider socket did not reach the open state")
	}

	s.connMu.Lock()
	s.providerConn = pc
	s.inbound = pc.Inbound()
	s.connMu.Unlock()

	if err := s.sendToProvider(ctx, s.setup); err != nil {
		return fmt.Errorf("failed to send session setup: %w", err)
	}

	s.log.Info().Str("endpoint", s.endpoint).Msg("Provider connected")
	return nil
}

// disconnectFromProvider is the single teardown point for the provider side.
// It cancels the session context and closes the provider socket once; later
// calls are no-ops.
func (s *Session) disconnectFromProvider(reason string) error {
	s.cancel()

	s.connMu.Lock()
	pc := s.providerConn
	s.providerConn = nil
	s.connMu.Unlock()

	if pc == nil {
		return nil
	}

	s.log.Info().Str("reason", reason).Msg("Disconnecting provider")
	return pc.Close(websocket.CloseNormalClosure, reason)
}
