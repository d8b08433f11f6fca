package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"ai-realtime-bridge-service/internal/realtime/wire"
)

var errClientGone = errors.New("client socket is closed")

// notify sends an envelope to the client tagged with the stream id.
func (s *Session) notify(typ string, data any) error {
	payload, err := json.Marshal(Envelope{Type: typ, Data: data, SessionID: s.streamID})
	if err != nil {
		return err
	}
	if err := s.writeClient(payload); err != nil {
		s.log.Debug().Err(err).Str("type", typ).Msg("Client notification dropped")
		return err
	}
	return nil
}

func (s *Session) writeClient(payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.clientClosed {
		return errClientGone
	}
	if err := s.client.SetWriteDeadline(time.Now().Add(s.engine.cfg.ClientWriteTimeout)); err != nil {
		return err
	}
	return s.client.WriteMessage(websocket.TextMessage, payload)
}

// closeClient writes a close frame (when code is non-zero) and releases the
// client socket. Later writes fail with errClientGone.
func (s *Session) closeClient(code int, reason string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.clientClosed {
		return nil
	}
	s.clientClosed = true

	var werr error
	if code != 0 {
		werr = s.client.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, wire.CloseReason(reason)),
			time.Now().Add(s.engine.cfg.ClientWriteTimeout),
		)
		if errors.Is(werr, websocket.ErrCloseSent) {
			werr = nil
		}
	}
	cerr := s.client.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func (s *Session) currentProvider() ProviderConn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.providerConn
}

func (s *Session) sendToProvider(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pc := s.currentProvider()
	if pc == nil {
		return wire.ErrNotConnected
	}
	return pc.Send(ctx, payload)
}

// sendUserText injects a user message and then asks the provider to respond.
func (s *Session) sendUserText(ctx context.Context, text string) error {
	msg, err := s.adapter.UserText(text)
	if err != nil {
		return err
	}
	trigger, err := s.adapter.TriggerResponse()
	if err != nil {
		return err
	}

	s.textMu.Lock()
	defer s.textMu.Unlock()
	if err := s.sendToProvider(ctx, msg); err != nil {
		return err
	}
	return s.sendToProvider(ctx, trigger)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
