package httpapi

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// GRPCHealth serves the standard gRPC health protocol backed by the same
// readiness probe as /readyz, so orchestrators can probe either plane.
type GRPCHealth struct {
	grpc_health_v1.UnimplementedHealthServer

	readyProbe ReadyProbe
}

// NewGRPCHealth creates the gRPC health service.
func NewGRPCHealth(rp ReadyProbe) *GRPCHealth {
	return &GRPCHealth{readyProbe: rp}
}

// Check evaluates readiness for the requested service.
func (s *GRPCHealth) Check(ctx context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if err := s.readyProbe.Check(ctx); err != nil {
		return &grpc_health_v1.HealthCheckResponse{
			Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING,
		}, nil
	}
	return &grpc_health_v1.HealthCheckResponse{
		Status: grpc_health_v1.HealthCheckResponse_SERVING,
	}, nil
}

// Watch is not supported; probes should poll Check.
func (s *GRPCHealth) Watch(_ *grpc_health_v1.HealthCheckRequest, _ grpc_health_v1.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "watch is not supported")
}
