// Package grpcapi exposes link health over the standard gRPC health
// protocol.  Each serial link is a service named "parkgate.<role>".
package grpcapi

import (
	"log"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const servicePrefix = "parkgate."

// ServiceName returns the health service name for a link role.
func ServiceName(role string) string { return servicePrefix + role }

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *log.Logger

	mu   sync.Mutex
	last map[string]bool
}

// NewServer registers the health service.  Every role starts NOT_SERVING
// until its link reports in; the overall ("") status is SERVING.
func NewServer(roles []string, logger *log.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		logger: logger,
		last:   make(map[string]bool),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, r := range roles {
		s.health.SetServingStatus(ServiceName(r), healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// SetLinkStatus records a link's state.  It matches seriallink.StatusFunc.
func (s *Server) SetLinkStatus(role string, connected bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if connected {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName(role), st)

	s.mu.Lock()
	prev, seen := s.last[role]
	s.last[role] = connected
	s.mu.Unlock()
	if !seen || prev != connected {
		s.logger.Printf("health: %s %s", ServiceName(role), st)
	}
}

// Serve blocks until Stop is called or lis fails.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Printf("gRPC health listening on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Stop flips every service to NOT_SERVING and drains open RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
