package middleware_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/quantpricing/pkg/config"
	"github.com/wyfcoding/quantpricing/pkg/logger"
	"github.com/wyfcoding/quantpricing/pkg/metrics"
	"github.com/wyfcoding/quantpricing/pkg/middleware"
	"github.com/wyfcoding/quantpricing/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGinLoggingPropagatesIDs(t *testing.T) {
	r := gin.New()
	r.Use(middleware.GinLoggingMiddleware())

	var seenRequestID, seenTraceID string
	r.GET("/ping", func(c *gin.Context) {
		seenRequestID = logger.RequestID(c.Request.Context())
		seenTraceID = logger.TraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-1")
	req.Header.Set(middleware.HeaderTraceID, "trace-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", seenRequestID)
	assert.Equal(t, "trace-1", seenTraceID)
	assert.Equal(t, "req-1", rec.Header().Get(middleware.HeaderRequestID))

	// 未携带时生成新 id
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, seenTraceID)
}

func TestGinRecovery(t *testing.T) {
	r := gin.New()
	r.Use(middleware.GinLoggingMiddleware(), middleware.GinRecoveryMiddleware())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_id")
}

func TestGinCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(middleware.GinCORSMiddleware())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGinMetricsUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("mwtest")
	require.NoError(t, m.Register(reg))

	r := gin.New()
	r.Use(middleware.GinMetricsMiddleware(metrics.NewDefaultMetricsCollector(m)))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, QPS: 1, Burst: 1}
	r := gin.New()
	r.Use(middleware.RateLimitMiddleware(ratelimit.NewLocalRateLimiter(), cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitDisabled(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RateLimitMiddleware(ratelimit.NewLocalRateLimiter(), config.RateLimitConfig{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 5 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

var unaryInfo = &grpc.UnaryServerInfo{FullMethod: "/quantpricing.v1.PricingService/Price"}

func TestGRPCRecoveryInterceptor(t *testing.T) {
	_, err := middleware.GRPCRecoveryInterceptor()(context.Background(), nil, unaryInfo,
		func(context.Context, any) (any, error) { panic("boom") })
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestGRPCLoggingReadsMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("x-trace-id", "trace-9", "x-request-id", "req-9"))

	var traceID, requestID string
	resp, err := middleware.GRPCLoggingInterceptor()(ctx, "req", unaryInfo,
		func(ctx context.Context, req any) (any, error) {
			traceID = logger.TraceID(ctx)
			requestID = logger.RequestID(ctx)
			return req, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, "trace-9", traceID)
	assert.Equal(t, "req-9", requestID)
}

func TestGRPCMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("grpcmw")
	require.NoError(t, m.Register(reg))
	interceptor := middleware.GRPCMetricsInterceptor(metrics.NewDefaultMetricsCollector(m))

	_, _ = interceptor(context.Background(), nil, unaryInfo,
		func(context.Context, any) (any, error) { return nil, nil })
	_, _ = interceptor(context.Background(), nil, unaryInfo,
		func(context.Context, any) (any, error) { return nil, status.Error(codes.InvalidArgument, "bad") })

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues(unaryInfo.FullMethod, "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues(unaryInfo.FullMethod, "InvalidArgument")))
}

func TestGRPCRateLimitInterceptor(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, QPS: 1, Burst: 1}
	interceptor := middleware.GRPCRateLimitInterceptor(ratelimit.NewLocalRateLimiter(), cfg)
	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("10.1.1.1"), Port: 5000},
	})
	ok := func(context.Context, any) (any, error) { return "ok", nil }

	_, err := interceptor(ctx, nil, unaryInfo, ok)
	require.NoError(t, err)
	_, err = interceptor(ctx, nil, unaryInfo, ok)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}
