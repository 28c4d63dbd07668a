package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/quantpricing/internal/pricing/application"
	"github.com/wyfcoding/quantpricing/internal/pricing/domain"
	"github.com/wyfcoding/quantpricing/internal/pricing/infrastructure/messaging"
	grpc_server "github.com/wyfcoding/quantpricing/internal/pricing/interfaces/grpc"
	http_server "github.com/wyfcoding/quantpricing/internal/pricing/interfaces/http"
	"github.com/wyfcoding/quantpricing/pkg/config"
	"github.com/wyfcoding/quantpricing/pkg/logger"
	"github.com/wyfcoding/quantpricing/pkg/metrics"
	"github.com/wyfcoding/quantpricing/pkg/mq"
	"github.com/wyfcoding/quantpricing/pkg/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/pricing/config.toml", "path to config file")
	flag.Parse()

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "pricing: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. Config
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	collector := metrics.NewDefaultMetricsCollector(m)

	// 4. Event publishing
	var publisher domain.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Error(context.Background(), "close kafka producer", "error", err)
			}
		}()
		publisher = messaging.NewKafkaEventPublisher(producer)
	}

	// 5. Application
	engines, err := application.NewPricingEngines(cfg.Engine)
	if err != nil {
		return fmt.Errorf("init engines: %w", err)
	}
	app := application.NewPricingService(engines, publisher, collector)
	limiter := ratelimit.NewLocalRateLimiter()

	// 6. Interfaces
	// gRPC
	grpcSrv, healthSrv := grpc_server.NewServer(grpc_server.NewGRPCHandler(app), grpc_server.ServerOptions{
		MaxConcurrentStreams: uint32(cfg.GRPC.MaxConcurrentStreams),
		Collector:            collector,
		Limiter:              limiter,
		RateLimit:            cfg.RateLimit,
	})

	// HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	opts := http_server.RouterOptions{
		ServiceName: cfg.ServiceName,
		Version:     cfg.Version,
		Collector:   collector,
		Limiter:     limiter,
		RateLimit:   cfg.RateLimit,
	}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
		opts.MetricsHandler = metrics.Handler(reg)
	}
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      http_server.NewRouter(http_server.NewPricingHandler(app), opts),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 7. Start
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		logger.Info(gctx, "gRPC server starting", "addr", addr)
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 8. Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down servers...")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "server exited with error", "error", err)
		return err
	}
	return nil
}
