package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/wyfcoding/quantpricing/pkg/config"
	"github.com/wyfcoding/quantpricing/pkg/metrics"
	"github.com/wyfcoding/quantpricing/pkg/middleware"
	"github.com/wyfcoding/quantpricing/pkg/ratelimit"
)

// ServerOptions gRPC 服务端配置
type ServerOptions struct {
	MaxConcurrentStreams uint32
	Collector            metrics.MetricsCollector
	Limiter              ratelimit.RateLimiter
	RateLimit            config.RateLimitConfig
}

// NewServer 创建 gRPC 服务端，注册定价服务、健康检查与反射
func NewServer(h *GRPCHandler, opts ServerOptions) (*grpc.Server, *health.Server) {
	if opts.Collector == nil {
		opts.Collector = metrics.NopCollector{}
	}

	interceptors := []grpc.UnaryServerInterceptor{
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
		middleware.GRPCMetricsInterceptor(opts.Collector),
	}
	if opts.Limiter != nil && opts.RateLimit.Enabled {
		interceptors = append(interceptors, middleware.GRPCRateLimitInterceptor(opts.Limiter, opts.RateLimit))
	}

	serverOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}
	if opts.MaxConcurrentStreams > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(opts.MaxConcurrentStreams))
	}

	s := grpc.NewServer(serverOpts...)
	RegisterPricingServiceServer(s, h)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s, hs
}
