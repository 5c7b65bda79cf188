package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the content hub.
const ServiceName = "contenthub.v1.ContentHub"

// NewGRPCServer creates a gRPC server with standard interceptors and
// registers the health service and reflection. Both the overall status ("")
// and ServiceName start as NOT_SERVING until WatchHealth reports.
func NewGRPCServer(auth *Authenticator) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(auth),
		),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv, hs
}

// WatchHealth pings the store every interval and mirrors the result into
// hs until ctx is done. The first check runs immediately.
func (s *Server) WatchHealth(ctx context.Context, hs *health.Server, interval time.Duration) {
	check := func() {
		st := healthpb.HealthCheckResponse_SERVING
		if _, ok := s.checkDeps(ctx); !ok {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(ServiceName, st)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			check()
		}
	}
}
