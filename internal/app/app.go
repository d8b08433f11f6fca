package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	grpcapi "ai-realtime-bridge-service/internal/api/grpc"
	"ai-realtime-bridge-service/internal/api/ws"
	"ai-realtime-bridge-service/internal/config"
	"ai-realtime-bridge-service/internal/events"
	httpapi "ai-realtime-bridge-service/internal/http"
	"ai-realtime-bridge-service/internal/observability"
	"ai-realtime-bridge-service/internal/observability/logging"
	"ai-realtime-bridge-service/internal/observability/metrics"
	"ai-realtime-bridge-service/internal/realtime/provider"
	"ai-realtime-bridge-service/internal/realtime/provider/dashscope"
	"ai-realtime-bridge-service/internal/realtime/provider/mock"
	"ai-realtime-bridge-service/internal/realtime/provider/openai"
	"ai-realtime-bridge-service/internal/realtime/session"
	"ai-realtime-bridge-service/internal/realtime/wire"
	"ai-realtime-bridge-service/internal/service/sink"
	"ai-realtime-bridge-service/internal/storage"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	publisher *events.Publisher
	engine    *session.Engine
	realtime  *ws.Handler
	handler   http.Handler

	httpServer    *http.Server
	grpcServer    *grpcapi.Server
	metricsServer *observability.Server

	draining atomic.Bool
}

// New constructs the Application: logging, profiles, publishers, the
// session engine and every listener.
func New(cfg *config.Config) (*Application, error) {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg: cfg,
		Logger: logging.WithComponent("application").With().
			Str("service", "ai-realtime-bridge-service").
			Logger(),
	}

	profiles, err := config.LoadProfiles(cfg.Profiles.File, cfg.Profiles.Default)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	a.Logger.Info().Strs("profiles", profiles.Names()).Str("default", cfg.Profiles.Default).Msg("Profiles loaded")

	a.publisher = events.New(&events.Config{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicTranscripts: cfg.Kafka.TopicTranscripts,
		TopicSessions:    cfg.Kafka.TopicSessions,
		Principal:        cfg.Kafka.Principal,
	})

	var recordings sink.RecordingStore
	if store := storage.New(storage.Config{
		Enabled:         cfg.Recording.S3Enabled,
		Bucket:          cfg.Recording.Bucket,
		Prefix:          cfg.Recording.Prefix,
		Region:          cfg.Recording.Region,
		Endpoint:        cfg.Recording.Endpoint,
		AccessKeyID:     cfg.Recording.AccessKeyID,
		SecretAccessKey: cfg.Recording.SecretAccessKey,
	}); store != nil {
		recordings = store
	}

	switcher := wire.NewSwitcher(wire.Config{
		HandshakeTimeout: cfg.Provider.HandshakeTimeout,
		WriteTimeout:     cfg.Provider.WriteTimeout,
		ReadLimit:        cfg.Provider.ReadLimit,
		InboundBuffer:    wire.DefaultConfig().InboundBuffer,
	})

	a.engine = session.NewEngine(session.Config{
		Registry:           provider.NewRegistry(openai.New(), dashscope.New(cfg.Provider.DashScopeWorkspace)),
		Dial:               func(id provider.ID) session.ProviderConn { return switcher.Rent(id) },
		Metrics:            metrics.DefaultMetrics,
		ClientWriteTimeout: cfg.Client.WriteTimeout,
	})

	a.realtime = ws.NewHandler(profiles, a.engine, sink.New(a.publisher, recordings), ws.Config{
		ReadLimit:    cfg.Client.ReadLimit,
		WriteTimeout: cfg.Client.WriteTimeout,
	})

	routes := httpapi.Routes{
		Realtime: a.realtime,
		Ready:    func() bool { return !a.draining.Load() },
	}
	if cfg.MockProvider {
		routes.MockProvider = mock.New(mock.DefaultConfig())
		a.Logger.Warn().Msg("Mock provider mounted at /v1/mock-provider")
	}
	a.handler = httpapi.NewRouter(routes)

	a.httpServer = &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.grpcServer = grpcapi.New(metrics.DefaultMetrics)
	a.metricsServer = observability.NewServer(cfg.Service.MetricsAddr)

	a.Logger.Info().Msg("AI realtime bridge application created")
	return a, nil
}

// Handler returns the HTTP handler serving the public endpoints.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Start opens every listener. It returns once they are bound; serving
// happens in the background.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()

	httpLis, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", ":"+a.Cfg.Service.GRPCPort)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	a.metricsServer.Start()

	go func() {
		a.Logger.Info().Str("addr", httpLis.Addr().String()).Msg("HTTP server started")
		if err := a.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("HTTP server error")
		}
	}()
	go func() {
		if err := a.grpcServer.Serve(grpcLis); err != nil {
			a.Logger.Error().Err(err).Msg("gRPC server error")
		}
	}()

	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("environment", a.Cfg.Service.Env).
		Msg("AI realtime bridge service started")
	return nil
}

// Shutdown drains live sessions, then stops listeners and flushes publishers.
func (a *Application) Shutdown(ctx context.Context) {
	a.Logger.Info().Int64("activeSessions", a.realtime.Active()).Msg("AI realtime bridge service shutting down")

	a.draining.Store(true)
	a.grpcServer.SetNotServing()

	if err := a.realtime.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Realtime sessions did not drain cleanly")
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("HTTP server shutdown failed")
	}
	a.grpcServer.Stop()
	a.engine.Timers().StopAll()

	if err := a.publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Publisher close failed")
	}
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Metrics server shutdown failed")
	}
}
