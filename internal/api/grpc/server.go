// Package grpcapi serves the admin gRPC endpoint: standard health checks and
// reflection for tools like grpcurl.
package grpcapi

import (
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"ai-realtime-bridge-service/internal/observability"
	"ai-realtime-bridge-service/internal/observability/metrics"
)

// ServiceName is the health-checked service name.
const ServiceName = "realtime.bridge"

// Server wraps the admin gRPC server and its health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New creates the admin server with metrics interceptors, health and
// reflection registered. Both "" and ServiceName report SERVING.
func New(m *metrics.Metrics) *Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(g)

	return &Server{grpc: g, health: hs}
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("Admin gRPC server started")
	return s.grpc.Serve(lis)
}

// SetNotServing flips every health status to NOT_SERVING ahead of shutdown.
func (s *Server) SetNotServing() {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Stop marks the server not serving and stops it gracefully.
func (s *Server) Stop() {
	s.SetNotServing()
	s.grpc.GracefulStop()
}
