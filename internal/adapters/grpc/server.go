package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/application"
)

type LinkInternalServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service *application.Service
}

func NewLinkInternalServer(service *application.Service) *LinkInternalServer {
	return &LinkInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *LinkInternalServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *LinkInternalServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	_ = ctx
	_ = req
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func (s *LinkInternalServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	_ = req
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
}
