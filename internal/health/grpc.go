// Package health serves the standard gRPC health protocol for the checkout
// service. The provider service goes NOT_SERVING while its circuit breaker is
// open.
package health

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ProviderService is the health service name tracking the payment provider.
const ProviderService = "paypal.provider"

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ProviderService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{grpcServer: grpcServer, health: hs, logger: logger}
}

// SetServing flips the overall and provider status together.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ProviderService, status)
}

// BreakerChanged is meant for paypal.ClientConfig.OnBreakerChange.
func (s *Server) BreakerChanged(to gobreaker.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if to == gobreaker.StateOpen {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.logger.Info("provider health changed", slog.String("status", status.String()))
	s.health.SetServingStatus(ProviderService, status)
}

func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
