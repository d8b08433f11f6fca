// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_realtime_bridge"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsFailed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Provider metrics
	ProviderConnectFailures *prometheus.CounterVec
	ProviderEvents          *prometheus.CounterVec
	ProviderErrors          *prometheus.CounterVec

	// Client metrics
	ClientMessages *prometheus.CounterVec
	AudioBytes     *prometheus.CounterVec

	// Conversation metrics
	TurnsTotal      prometheus.Counter
	IdleFollowUps   prometheus.Counter
	RecordingsBytes prometheus.Histogram

	// Cleanup metrics
	CleanupStepFailures *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC admin metrics
	GRPCCalls *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of realtime sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active realtime sessions",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended abnormally",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of realtime sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}),

		// Provider metrics
		ProviderConnectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_connect_failures_total",
			Help:      "Total number of failed provider connection attempts",
		}, []string{"provider"}),
		ProviderEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_events_total",
			Help:      "Total number of canonical provider events dispatched",
		}, []string{"provider", "type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total number of provider-reported errors",
		}, []string{"provider", "critical"}),

		// Client metrics
		ClientMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_messages_total",
			Help:      "Total number of client messages by classification",
		}, []string{"kind"}),
		AudioBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total decoded audio bytes relayed",
		}, []string{"direction"}),

		// Conversation metrics
		TurnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of completed AI turns",
		}),
		IdleFollowUps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_followups_total",
			Help:      "Total number of idle follow-up messages sent",
		}),
		RecordingsBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recordings_bytes",
			Help:      "Size of finalized session recordings in bytes",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),

		// Cleanup metrics
		CleanupStepFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_step_failures_total",
			Help:      "Total number of failed session cleanup steps",
		}, []string{"step"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// gRPC admin metrics
		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of admin gRPC calls",
		}, []string{"method", "code"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending. An empty failure reason means
// the session ended normally.
func (m *Metrics) RecordSessionEnd(failureReason string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if failureReason != "" {
		m.SessionsFailed.WithLabelValues(failureReason).Inc()
	}
}

// RecordConnectFailure records a failed provider connection.
func (m *Metrics) RecordConnectFailure(provider string) {
	m.ProviderConnectFailures.WithLabelValues(provider).Inc()
}

// RecordProviderEvent records one dispatched canonical event.
func (m *Metrics) RecordProviderEvent(provider, eventType string) {
	m.ProviderEvents.WithLabelValues(provider, eventType).Inc()
}

// RecordProviderError records a provider-reported error.
func (m *Metrics) RecordProviderError(provider string, critical bool) {
	label := "false"
	if critical {
		label = "true"
	}
	m.ProviderErrors.WithLabelValues(provider, label).Inc()
}

// RecordClientMessage records a classified client message.
func (m *Metrics) RecordClientMessage(kind string) {
	m.ClientMessages.WithLabelValues(kind).Inc()
}

// RecordAudio records decoded audio bytes for a direction (input or output).
func (m *Metrics) RecordAudio(direction string, bytes int) {
	m.AudioBytes.WithLabelValues(direction).Add(float64(bytes))
}

// RecordTurn records a completed AI turn.
func (m *Metrics) RecordTurn() {
	m.TurnsTotal.Inc()
}

// RecordIdleFollowUp records an idle follow-up being sent.
func (m *Metrics) RecordIdleFollowUp() {
	m.IdleFollowUps.Inc()
}

// RecordRecording records the size of a finalized recording.
func (m *Metrics) RecordRecording(bytes int) {
	m.RecordingsBytes.Observe(float64(bytes))
}

// RecordCleanupFailure records a failed cleanup step.
func (m *Metrics) RecordCleanupFailure(step string) {
	m.CleanupStepFailures.WithLabelValues(step).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCCall records an admin gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}
