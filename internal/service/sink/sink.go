// Package sink turns session lifecycle callbacks into published events and
// stored recordings.
package sink

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"ai-realtime-bridge-service/internal/models"
	"ai-realtime-bridge-service/internal/realtime/session"
)

// Publisher is the subset of events.Publisher used by the sink.
type Publisher interface {
	PublishTranscript(ctx context.Context, key, eventType string, event any) error
	PublishSessionEvent(ctx context.Context, key, eventType string, event any) error
}

// RecordingStore is the subset of storage.S3Store used by the sink.
type RecordingStore interface {
	Bucket() string
	PutRecording(ctx context.Context, sessionID string, wav []byte) (string, error)
}

// Meta describes the session a set of callbacks belongs to.
type Meta struct {
	StreamID string
	Profile  string
	Provider string
}

// Sink builds per-session callbacks. A nil store disables recording upload.
type Sink struct {
	publisher Publisher
	store     RecordingStore
	now       func() time.Time
}

// New creates a Sink.
func New(publisher Publisher, store RecordingStore) *Sink {
	return &Sink{publisher: publisher, store: store, now: time.Now}
}

// Callbacks returns the lifecycle callbacks for one session.
func (k *Sink) Callbacks(meta Meta) session.Callbacks {
	return session.Callbacks{
		OnSessionReady: func(ctx context.Context, sessionID string, _ func(string) error) {
			ev := models.SessionStarted{
				EventType: models.EventSessionStarted,
				SessionID: sessionID,
				StreamID:  meta.StreamID,
				Profile:   meta.Profile,
				Provider:  meta.Provider,
				Timestamp: k.now().UnixMilli(),
			}
			if err := k.publisher.PublishSessionEvent(ctx, sessionID, ev.EventType, ev); err != nil {
				log.Warn().Err(err).Str("sessionId", sessionID).Msg("Publishing session start failed")
			}
		},

		OnSessionEnded: func(ctx context.Context, sessionID string) error {
			ev := models.SessionEnded{
				EventType: models.EventSessionEnded,
				SessionID: sessionID,
				StreamID:  meta.StreamID,
				Profile:   meta.Profile,
				Provider:  meta.Provider,
				Timestamp: k.now().UnixMilli(),
			}
			return k.publisher.PublishSessionEvent(ctx, sessionID, ev.EventType, ev)
		},

		OnRecordingComplete: func(ctx context.Context, sessionID string, wav []byte) error {
			if k.store == nil {
				log.Debug().Str("sessionId", sessionID).Int("bytes", len(wav)).Msg("Recording discarded, no store configured")
				return nil
			}
			key, err := k.store.PutRecording(ctx, sessionID, wav)
			if err != nil {
				return err
			}
			ev := models.RecordingStored{
				EventType: models.EventRecordingStored,
				SessionID: sessionID,
				StreamID:  meta.StreamID,
				Bucket:    k.store.Bucket(),
				Key:       key,
				SizeBytes: len(wav),
				Timestamp: k.now().UnixMilli(),
			}
			return k.publisher.PublishSessionEvent(ctx, sessionID, ev.EventType, ev)
		},

		OnTranscriptionsComplete: func(ctx context.Context, sessionID string, transcripts []session.Transcript) error {
			lines := make([]models.TranscriptLine, len(transcripts))
			for i, t := range transcripts {
				lines[i] = models.TranscriptLine{Speaker: t.Speaker, Text: t.Text}
			}
			ev := models.SessionTranscript{
				EventType: models.EventSessionTranscript,
				SessionID: sessionID,
				StreamID:  meta.StreamID,
				Profile:   meta.Profile,
				Provider:  meta.Provider,
				Timestamp: k.now().UnixMilli(),
				Lines:     lines,
			}
			return k.publisher.PublishTranscript(ctx, sessionID, ev.EventType, ev)
		},
	}
}
