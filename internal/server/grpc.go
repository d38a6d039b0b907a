package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Gift-Esethu/Ussd-Server/internal/server/interceptors"
)

// healthCheckMethod is polled by orchestrators and is not logged.
const healthCheckMethod = "/grpc.health.v1.Health/Check"

// NewGRPCServer returns a gRPC server exposing the standard health service backed by healthSrv.
// Reflection is registered so grpcurl and grpc-health-probe can discover it.
func NewGRPCServer(healthSrv *health.Server, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryUnary(),
			interceptors.LoggingUnary(map[string]bool{healthCheckMethod: true}),
		),
	}
	srv := grpc.NewServer(append(base, opts...)...)
	if healthSrv != nil {
		healthpb.RegisterHealthServer(srv, healthSrv)
	}
	reflection.Register(srv)
	return srv
}
