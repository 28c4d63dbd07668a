package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/quantpricing/pkg/config"
	"github.com/wyfcoding/quantpricing/pkg/metrics"
	"github.com/wyfcoding/quantpricing/pkg/middleware"
	"github.com/wyfcoding/quantpricing/pkg/ratelimit"
)

// RouterOptions 路由与中间件配置
type RouterOptions struct {
	ServiceName string
	Version     string
	// 指标端点，为空时不注册
	MetricsPath    string
	MetricsHandler http.Handler
	Collector      metrics.MetricsCollector
	Limiter        ratelimit.RateLimiter
	RateLimit      config.RateLimitConfig
}

// NewRouter 创建 gin 引擎：中间件、业务路由、健康检查与指标端点
func NewRouter(h *PricingHandler, opts RouterOptions) *gin.Engine {
	if opts.Collector == nil {
		opts.Collector = metrics.NopCollector{}
	}

	r := gin.New()
	r.Use(
		middleware.GinLoggingMiddleware(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinCORSMiddleware(),
		middleware.GinMetricsMiddleware(opts.Collector),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": opts.ServiceName,
			"version": opts.Version,
		})
	})
	if opts.MetricsPath != "" && opts.MetricsHandler != nil {
		r.GET(opts.MetricsPath, gin.WrapH(opts.MetricsHandler))
	}

	api := r.Group("")
	if opts.Limiter != nil && opts.RateLimit.Enabled {
		api.Use(middleware.RateLimitMiddleware(opts.Limiter, opts.RateLimit))
	}
	h.RegisterRoutes(api)
	return r
}
