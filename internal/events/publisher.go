// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-realtime-bridge-service/internal/observability/metrics"
)

// Publisher publishes session events to separate Kafka topics: transcripts on
// one, lifecycle events (start, end, recording stored) on the other.
type Publisher struct {
	writerTranscripts *kafka.Writer
	writerSessions    *kafka.Writer
	principal         string
	topicTranscripts  string
	topicSessions     string
	enabled           bool
	metrics           *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicTranscripts string
	TopicSessions    string
	Principal        string
	Enabled          bool
}

// New creates a new Kafka event publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:        cfg.Principal,
			topicTranscripts: cfg.TopicTranscripts,
			topicSessions:    cfg.TopicSessions,
			enabled:          false,
			metrics:          m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscripts", cfg.TopicTranscripts).
		Str("topicSessions", cfg.TopicSessions).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscripts: newWriter(cfg.Brokers, cfg.TopicTranscripts, transport),
		writerSessions:    newWriter(cfg.Brokers, cfg.TopicSessions, transport),
		principal:         cfg.Principal,
		topicTranscripts:  cfg.TopicTranscripts,
		topicSessions:     cfg.TopicSessions,
		enabled:           true,
		metrics:           m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // keyed by session id so one session stays ordered
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Enabled reports whether events actually reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishTranscript publishes a session transcript to the transcripts topic.
func (p *Publisher) PublishTranscript(ctx context.Context, key, eventType string, event any) error {
	return p.publish(ctx, p.writerTranscripts, p.topicTranscripts, eventType, key, event)
}

// PublishSessionEvent publishes a lifecycle event to the sessions topic.
func (p *Publisher) PublishSessionEvent(ctx context.Context, key, eventType string, event any) error {
	return p.publish(ctx, p.writerSessions, p.topicSessions, eventType, key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("eventType", eventType).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscripts != nil {
		if e := p.writerTranscripts.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcripts writer")
			err = e
		}
	}
	if p.writerSessions != nil {
		if e := p.writerSessions.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing sessions writer")
			err = e
		}
	}
	return err
}
