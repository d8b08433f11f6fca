package session

import (
	"context"

	"ai-realtime-bridge-service/internal/realtime/provider"
	"ai-realtime-bridge-service/internal/realtime/timer"
	"ai-realtime-bridge-service/internal/realtime/wire"
)

// Error codes the session itself reports to the client.
const (
	// CodeConnectionLost: the provider socket dropped while the session was live.
	CodeConnectionLost = "ConnectionLost"
	// CodeProviderUnavailable: the provider connection could not be opened.
	CodeProviderUnavailable = "ProviderUnavailable"
)

const maxLoggedRaw = 1024

// dispatchLoop is the single consumer of provider notifications, so provider
// events are handled one at a time in wire order.
func (s *Session) dispatchLoop() {
	defer close(s.dispatchDone)

	s.connMu.Lock()
	in := s.inbound
	s.connMu.Unlock()

	for {
		select {
		case <-s.ctx.Done():
			return
		case n, ok := <-in:
			if !ok {
				s.handleProviderGone(wire.StateClosed, nil)
				return
			}
			if n.IsMessage() {
				s.handleEvent(s.adapter.Parse(n.Message))
				continue
			}
			if n.State.IsTerminal() {
				s.handleProviderGone(n.State, n.Err)
				return
			}
		}
	}
}

// handleProviderGone turns an unexpected provider close into a critical
// ConnectionLost error. Closes we initiated are ignored.
func (s *Session) handleProviderGone(state wire.State, err error) {
	if s.ctx.Err() != nil {
		return
	}
	msg := "Provider connection " + state.String()
	if err != nil {
		msg += ": " + err.Error()
	}
	s.log.Warn().Err(err).Str("state", state.String()).Msg("Provider connection lost")
	s.handleEvent(provider.Event{
		Type:         provider.EventError,
		ErrorCode:    CodeConnectionLost,
		ErrorMessage: msg,
		Critical:     true,
	})
}

// handleEvent applies one canonical event to the session.
func (s *Session) handleEvent(ev provider.Event) {
	s.metrics.RecordProviderEvent(string(s.adapter.ID()), ev.Type.String())

	switch ev.Type {
	case provider.EventSessionInitialized:
		s.onSessionInitialized()

	case provider.EventAudioOutputReady:
		s.isAiSpeaking.Store(true)
		s.metrics.RecordAudio("output", len(ev.Audio))
		s.recordOutput(ev.Audio)
		_ = s.notify(TypeResponseAudioDelta, AudioDelta{Base64Payload: ev.AudioBase64})

	case provider.EventTranscriptionPartial:
		if ev.Direction != provider.DirectionOutput {
			return
		}
		_ = s.notify(TypeOutputAudioTranscriptionPartial, TranscriptionData{
			Speaker:    ev.Direction.Speaker(),
			Transcript: ev.Text,
		})

	case provider.EventTranscriptionCompleted:
		s.enqueueTranscript(Transcript{Speaker: ev.Direction.Speaker(), Text: ev.Text})
		typ := TypeInputAudioTranscriptionCompleted
		if ev.Direction == provider.DirectionOutput {
			typ = TypeOutputAudioTranscriptionCompleted
		}
		_ = s.notify(typ, TranscriptionData{Speaker: ev.Direction.Speaker(), Transcript: ev.Text})

	case provider.EventUserSpeechDetected:
		if s.opts.IdleFollowUp != nil {
			s.timers.StopTimer(s.idleTimerKey())
		}
		_ = s.notify(TypeSpeechDetected, nil)

	case provider.EventTurnCompleted:
		round := s.round.Add(1)
		s.isAiSpeaking.Store(false)
		s.metrics.RecordTurn()
		if p := s.opts.IdleFollowUp; p != nil && (p.SkipRounds <= 0 || round > p.SkipRounds) {
			s.armIdleTimer(*p)
		}
		s.log.Debug().Int64("round", round).Msg("AI turn completed")
		_ = s.notify(TypeAiTurnCompleted, nil)

	case provider.EventError:
		s.metrics.RecordProviderError(string(s.adapter.ID()), ev.Critical)
		s.log.Warn().
			Str("code", ev.ErrorCode).
			Str("message", ev.ErrorMessage).
			Bool("critical", ev.Critical).
			Msg("Provider error")
		_ = s.notify(TypeClientError, ClientErrorData{Code: ev.ErrorCode, Message: ev.ErrorMessage})
		if ev.Critical {
			reason := ev.ErrorMessage
			if reason == "" {
				reason = ev.ErrorCode
			}
			s.setProviderFault(reason)
			if err := s.disconnectFromProvider(reason); err != nil {
				s.log.Warn().Err(err).Msg("Provider disconnect after critical error failed")
			}
		}

	default:
		s.log.Debug().
			Str("wireType", ev.WireType).
			Str("raw", truncate(string(ev.Raw), maxLoggedRaw)).
			Msg("Unhandled provider event")
	}
}

func (s *Session) onSessionInitialized() {
	s.readyOnce.Do(func() {
		s.log.Info().Msg("Provider session initialized")
		_ = s.notify(TypeSessionReady, nil)

		if s.opts.Greeting != "" {
			if err := s.sendUserText(s.ctx, s.opts.Greeting); err != nil {
				s.log.Warn().Err(err).Msg("Failed to send greeting")
			}
		}

		if cb := s.opts.Callbacks.OnSessionReady; cb != nil {
			sendText := func(text string) error { return s.sendUserText(s.ctx, text) }
			go func() {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error().Interface("panic", r).Msg("Session-ready callback panicked")
					}
				}()
				cb(s.ctx, s.id, sendText)
			}()
		}
	})
}

func (s *Session) armIdleTimer(p IdleFollowUp) {
	s.timers.StartTimer(s.idleTimerKey(), p.Timeout(), s.idleFollowUp(p))
}

// idleFollowUp sends the follow-up unless the session ends or the timer is
// stopped first, including while the send is in flight.
func (s *Session) idleFollowUp(p IdleFollowUp) timer.Callback {
	return func(timerCtx context.Context) error {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		stop := context.AfterFunc(timerCtx, cancel)
		defer stop()

		if ctx.Err() != nil {
			return nil
		}
		s.log.Info().Int64("round", s.Round()).Msg("Caller idle, sending follow-up")
		s.metrics.RecordIdleFollowUp()
		return s.sendUserText(ctx, p.FollowUpMessage)
	}
}
