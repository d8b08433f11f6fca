package session

import (
	"context"

	"ai-realtime-bridge-service/internal/audio"
)

// recordInput appends caller audio (already PCM16 24 kHz) to the recording.
func (s *Session) recordInput(pcm []byte) {
	s.appendRecording(pcm)
}

// recordOutput appends provider audio, normalizing G.711 output first.
func (s *Session) recordOutput(raw []byte) {
	if len(raw) == 0 || !s.opts.RecordingEnabled {
		return
	}
	pcm := raw
	if s.outputTranscoder != nil {
		var err error
		if pcm, err = s.outputTranscoder.Process(raw); err != nil {
			s.log.Debug().Err(err).Msg("Output audio not recorded")
			return
		}
	}
	s.appendRecording(pcm)
}

func (s *Session) appendRecording(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	s.bufMu.Lock()
	if s.audioBuf != nil {
		s.audioBuf.Write(pcm)
	}
	s.bufMu.Unlock()
}

// recordingLen returns the buffered byte count, or -1 once finalized.
func (s *Session) recordingLen() int {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if s.audioBuf == nil {
		return -1
	}
	return s.audioBuf.Len()
}

// finalizeRecording takes the buffer, wraps it as WAV and hands it to the
// recording callback. Runs at most once; writers racing it see a nil buffer.
func (s *Session) finalizeRecording(ctx context.Context) error {
	var err error
	s.finalizeOnce.Do(func() {
		s.bufMu.Lock()
		buf := s.audioBuf
		s.audioBuf = nil
		s.bufMu.Unlock()

		if buf == nil || buf.Len() == 0 {
			return
		}
		wav := audio.EncodeWAV(buf.Bytes(), audio.RecordingFormat)
		s.metrics.RecordRecording(len(wav))
		s.log.Info().Int("bytes", len(wav)).Msg("Recording finalized")

		if cb := s.opts.Callbacks.OnRecordingComplete; cb != nil {
			err = cb(ctx, s.id, wav)
		}
	})
	return err
}
