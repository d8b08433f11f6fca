// Package config loads service configuration from the environment and
// assistant profiles from a YAML file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-wide configuration.
type Config struct {
	Service       ServiceConfig
	Observability ObservabilityConfig
	Profiles      ProfilesConfig
	Provider      ProviderConfig
	Client        ClientConfig
	Kafka         KafkaConfig
	Recording     RecordingConfig
	MockProvider  bool
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	MetricsAddr string
	Env         string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// ProfilesConfig locates the assistant profiles file.
type ProfilesConfig struct {
	File    string
	Default string
}

// ProviderConfig tunes outbound provider sockets.
type ProviderConfig struct {
	HandshakeTimeout   time.Duration
	WriteTimeout       time.Duration
	ReadLimit          int64
	DashScopeWorkspace string
}

// ClientConfig tunes inbound client sockets.
type ClientConfig struct {
	WriteTimeout time.Duration
	ReadLimit    int64
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicTranscripts string
	TopicSessions    string
	Principal        string
}

// RecordingConfig holds S3 recording upload settings.
type RecordingConfig struct {
	S3Enabled       bool
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from environment variables. Invalid values fall
// back to defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-realtime-bridge")

	return &Config{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
			Env:         os.Getenv("ENV"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
		Profiles: ProfilesConfig{
			File:    envOrDefault("PROFILES_FILE", "profiles.yaml"),
			Default: envOrDefault("DEFAULT_PROFILE", "default"),
		},
		Provider: ProviderConfig{
			HandshakeTimeout:   envOrDefaultDuration("PROVIDER_HANDSHAKE_TIMEOUT", 10*time.Second),
			WriteTimeout:       envOrDefaultDuration("PROVIDER_WRITE_TIMEOUT", 5*time.Second),
			ReadLimit:          envOrDefaultInt64("PROVIDER_READ_LIMIT", 4*1024*1024),
			DashScopeWorkspace: os.Getenv("DASHSCOPE_WORKSPACE"),
		},
		Client: ClientConfig{
			WriteTimeout: envOrDefaultDuration("CLIENT_WRITE_TIMEOUT", 5*time.Second),
			ReadLimit:    envOrDefaultInt64("CLIENT_READ_LIMIT", 1024*1024),
		},
		Kafka: KafkaConfig{
			Enabled:          envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:          splitList(os.Getenv("KAFKA_BROKERS")),
			TopicTranscripts: envOrDefault("KAFKA_TOPIC_TRANSCRIPTS", "realtime.session.transcripts"),
			TopicSessions:    envOrDefault("KAFKA_TOPIC_SESSIONS", "realtime.session.events"),
			Principal:        envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Recording: RecordingConfig{
			S3Enabled:       envOrDefaultBool("RECORDING_S3_ENABLED", false),
			Bucket:          os.Getenv("RECORDING_S3_BUCKET"),
			Prefix:          envOrDefault("RECORDING_S3_PREFIX", "recordings"),
			Region:          envOrDefault("RECORDING_S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("RECORDING_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
		MockProvider: envOrDefaultBool("MOCK_PROVIDER_ENABLED", false),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
