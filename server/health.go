package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CredentialsService is the gRPC health service name reporting whether a key
// can be handed out.
const CredentialsService = "dialcoach.Credentials"

type healthService struct {
	srv *health.Server
}

func newHealthService(keyConfigured bool) *healthService {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if keyConfigured {
		status = healthpb.HealthCheckResponse_SERVING
	}
	srv.SetServingStatus(CredentialsService, status)
	return &healthService{srv: srv}
}

func (h *healthService) register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

func (h *healthService) shutdown() {
	h.srv.Shutdown()
}
