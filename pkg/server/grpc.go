package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName 健康检查里登记的服务名
const ServiceName = "sealdrive.Gateway"

// NewGRPCServer 只承载健康检查 (以及反射，便于 grpcurl 调试)
func NewGRPCServer(log *zap.Logger) (*grpc.Server, *health.Server) {
	if log == nil {
		log = zap.NewNop()
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryRecoveryInterceptor(log), UnaryLoggingInterceptor(log)),
		grpc.ChainStreamInterceptor(StreamRecoveryInterceptor(log), StreamLoggingInterceptor(log)),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv, hs
}
