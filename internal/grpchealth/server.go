// Package grpchealth serves the standard gRPC health protocol, reporting
// the companion's dependencies as individual services.
package grpchealth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServicePrefix namespaces per-dependency service names, e.g. "companion.redis".
const ServicePrefix = "companion."

// ProbeInterval is how often dependencies are re-checked.
const ProbeInterval = 10 * time.Second

// Check is one dependency probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Server exposes grpc.health.v1.Health. The overall status ("") is SERVING
// only while every check passes.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	checks     []Check
	interval   time.Duration
}

// NewServer creates a health server guarded by apiKey. An empty key
// disables authentication.
func NewServer(apiKey string, checks []Check) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer(
		grpc.UnaryInterceptor(UnaryAuthInterceptor(apiKey)),
		grpc.StreamInterceptor(StreamAuthInterceptor(apiKey)),
	)
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, c := range checks {
		hs.SetServingStatus(ServicePrefix+c.Name, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	return &Server{grpcServer: gs, health: hs, checks: checks, interval: ProbeInterval}
}

// Serve probes dependencies and serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.probe(ctx)
	go s.probeLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting gRPC health server", "addr", lis.Addr().String())
		errCh <- s.grpcServer.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	slog.Info("gRPC health server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *Server) probe(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, c := range s.checks {
		st := healthpb.HealthCheckResponse_SERVING
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.Ping(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("grpchealth: dependency unhealthy", "dependency", c.Name, "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
		}
		s.health.SetServingStatus(ServicePrefix+c.Name, st)
	}
	s.health.SetServingStatus("", overall)
}
