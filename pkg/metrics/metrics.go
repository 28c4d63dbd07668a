// Package metrics 提供 Prometheus helper，包含定价服务的 counter/histogram 模板
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/quantpricing/pkg/logger"
)

const namespace = "quant"

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// gRPC 请求计数
	GRPCRequestsTotal *prometheus.CounterVec
	// gRPC 请求耗时
	GRPCRequestDuration *prometheus.HistogramVec

	// 业务指标
	PricingRequestsTotal   *prometheus.CounterVec
	PricingDuration        *prometheus.HistogramVec
	ScenariosGenerated     prometheus.Counter
	ImpliedVolNotConverged prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		// HTTP 指标
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		// gRPC 指标
		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC requests",
		}, []string{"method", "code"}),
		GRPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// 定价指标
		PricingRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "pricing_requests_total",
			Help:      "Total pricing operations by method, option kind and outcome",
		}, []string{"method", "kind", "status"}),
		PricingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "pricing_duration_seconds",
			Help:      "Pricing operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"method"}),
		ScenariosGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "scenarios_generated_total",
			Help:      "Total simulated price paths",
		}),
		ImpliedVolNotConverged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "iv_not_converged_total",
			Help:      "Implied volatility solves that hit the iteration cap",
		}),
	}
}

// Register 注册所有指标，reg 为 nil 时使用默认注册器
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.GRPCRequestDuration,
		m.PricingRequestsTotal,
		m.PricingDuration,
		m.ScenariosGenerated,
		m.ImpliedVolNotConverged,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 Prometheus 抓取端点，g 为 nil 时使用默认收集器
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// MetricsCollector 指标收集器接口
type MetricsCollector interface {
	// 记录 HTTP 请求
	RecordHTTPRequest(method, path string, statusCode int, duration float64)
	// 记录 gRPC 请求
	RecordGRPCRequest(method, code string, duration float64)
	// 记录一次定价操作
	RecordPricing(method, kind, status string, duration float64)
	// 记录模拟路径数
	RecordScenarios(n int)
	// 记录隐含波动率未收敛
	RecordIVNotConverged()
}

// DefaultMetricsCollector 默认指标收集器实现
type DefaultMetricsCollector struct {
	metrics *Metrics
}

// NewDefaultMetricsCollector 创建默认指标收集器
func NewDefaultMetricsCollector(metrics *Metrics) *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		metrics: metrics,
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (dmc *DefaultMetricsCollector) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	dmc.metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	dmc.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordGRPCRequest 记录 gRPC 请求
func (dmc *DefaultMetricsCollector) RecordGRPCRequest(method, code string, duration float64) {
	dmc.metrics.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	dmc.metrics.GRPCRequestDuration.WithLabelValues(method).Observe(duration)
}

// RecordPricing 记录定价操作
func (dmc *DefaultMetricsCollector) RecordPricing(method, kind, status string, duration float64) {
	dmc.metrics.PricingRequestsTotal.WithLabelValues(method, kind, status).Inc()
	dmc.metrics.PricingDuration.WithLabelValues(method).Observe(duration)
}

// RecordScenarios 记录模拟路径数
func (dmc *DefaultMetricsCollector) RecordScenarios(n int) {
	dmc.metrics.ScenariosGenerated.Add(float64(n))
}

// RecordIVNotConverged 记录隐含波动率未收敛
func (dmc *DefaultMetricsCollector) RecordIVNotConverged() {
	dmc.metrics.ImpliedVolNotConverged.Inc()
}

// NopCollector 不记录任何指标，用于测试与关闭指标时
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, float64) {}
func (NopCollector) RecordGRPCRequest(string, string, float64)      {}
func (NopCollector) RecordPricing(string, string, string, float64)  {}
func (NopCollector) RecordScenarios(int)                            {}
func (NopCollector) RecordIVNotConverged()                          {}
