package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"ai-realtime-bridge-service/internal/schema"
)

// readClient is the client read loop. It returns when the client closes,
// the socket fails, or the session context is cancelled.
func (s *Session) readClient() {
	if err := s.lifecycle.StartReading(); err != nil {
		s.log.Warn().Err(err).Str("state", s.lifecycle.State().String()).Msg("Read loop not started")
		return
	}

	// Unblock ReadMessage when the session is cancelled from elsewhere.
	stop := context.AfterFunc(s.ctx, func() {
		_ = s.client.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		if s.ctx.Err() != nil {
			s.lifecycle.Abort()
			return
		}

		_, msg, err := s.client.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
				s.lifecycle.Close()
				s.markGraceful(ce.Code)
				s.log.Info().Int("code", ce.Code).Str("text", ce.Text).Msg("Client closed")
				return
			}
			s.lifecycle.Abort()
			if s.ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("Client read failed")
			}
			return
		}

		s.handleClientMessage(msg)
	}
}

func (s *Session) handleClientMessage(raw []byte) {
	msg, err := s.classifier.Classify(raw)
	if err != nil {
		s.metrics.RecordClientMessage("malformed")
		s.log.Debug().Err(err).Int("bytes", len(raw)).Msg("Client message dropped")
		return
	}
	s.metrics.RecordClientMessage(msg.Kind.String())

	switch msg.Kind {
	case schema.KindAudio:
		s.handleClientAudio(msg.Value)
	case schema.KindText:
		if err := s.sendUserText(s.ctx, msg.Value); err != nil {
			s.log.Warn().Err(err).Msg("Failed to forward client text")
		}
	default:
		s.log.Debug().Str("raw", truncate(string(raw), maxLoggedRaw)).Msg("Unrecognized client message")
	}
}

func (s *Session) handleClientAudio(payload string) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		s.log.Debug().Err(err).Msg("Client audio is not valid base64")
		return
	}
	s.metrics.RecordAudio("input", len(raw))

	pcm := raw
	if s.inputTranscoder != nil {
		if pcm, err = s.inputTranscoder.Process(raw); err != nil {
			s.log.Warn().Err(err).Msg("Client audio transcoding failed")
			return
		}
	}

	// Caller audio is not recorded while the AI talks, so echoed AI output
	// is not captured twice.
	if s.opts.RecordingEnabled && !s.isAiSpeaking.Load() {
		s.recordInput(pcm)
	}

	if s.codecs.transcode {
		payload = base64.StdEncoding.EncodeToString(pcm)
	}
	msg, err := s.adapter.AudioAppend(payload, s.codecs.input)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to build audio append")
		return
	}
	if err := s.sendToProvider(s.ctx, msg); err != nil && s.ctx.Err() == nil {
		s.log.Debug().Err(err).Msg("Failed to forward client audio")
	}
}

// cleanup tears the session down once, in a fixed order. Each step runs even
// if an earlier one fails.
func (s *Session) cleanup() {
	if err := s.lifecycle.BeginCleanup(); err != nil {
		return
	}

	graceful, code := s.closedGracefully()
	fault := s.fault()

	s.step("client-close", func() error {
		switch {
		case graceful:
			return s.closeClient(code, "")
		case fault != "":
			return s.closeClient(websocket.CloseInternalServerErr, fault)
		case s.parent.Err() != nil:
			return s.closeClient(websocket.CloseGoingAway, "server shutting down")
		default:
			s.log.Warn().Str("state", s.lifecycle.State().String()).Msg("Client disconnected abnormally")
			return s.closeClient(0, "")
		}
	})

	s.step("provider-disconnect", func() error {
		reason := "Client disconnected"
		switch {
		case fault != "":
			reason = fault
		case s.parent.Err() != nil:
			reason = "Session cancelled"
		case !graceful:
			reason = "Client connection lost"
		}
		return s.disconnectFromProvider(reason)
	})

	s.step("dispatch-drain", func() error {
		if !s.dispatching.Load() {
			return nil
		}
		select {
		case <-s.dispatchDone:
			return nil
		case <-time.After(s.engine.cfg.DrainTimeout):
			return errors.New("dispatch loop did not exit in time")
		}
	})

	s.step("idle-timer", func() error {
		s.timers.StopTimer(s.idleTimerKey())
		return nil
	})

	cbCtx, cancel := context.WithTimeout(context.WithoutCancel(s.parent), s.engine.cfg.CallbackTimeout)
	defer cancel()

	s.step("session-ended", func() error {
		if cb := s.opts.Callbacks.OnSessionEnded; cb != nil {
			return cb(cbCtx, s.id)
		}
		return nil
	})

	s.step("recording", func() error {
		return s.finalizeRecording(cbCtx)
	})

	s.step("transcripts", func() error {
		transcripts := s.drainTranscripts()
		if len(transcripts) == 0 {
			return nil
		}
		if cb := s.opts.Callbacks.OnTranscriptionsComplete; cb != nil {
			return cb(cbCtx, s.id, transcripts)
		}
		return nil
	})

	if err := s.lifecycle.Terminate(); err != nil {
		s.log.Warn().Err(err).Msg("Lifecycle terminate failed")
	}
}

// step runs one cleanup step, containing errors and panics.
func (s *Session) step(name string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		s.metrics.RecordCleanupFailure(name)
		s.log.Error().Err(err).Str("step", name).Msg("Cleanup step failed")
	}
}
