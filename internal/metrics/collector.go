// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。nil 安全：所有记录方法对 nil 接收者是 no-op，
// 便于在不需要指标的测试里直接传 nil。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 生成指标
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	tokensUsed         *prometheus.CounterVec
	streamChunksTotal  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到默认 registry。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of AI generation calls",
		},
		[]string{"provider", "mode", "status"},
	)

	c.generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "AI generation call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "mode"},
	)

	c.tokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total tokens reported by vendors",
		},
		[]string{"provider", "kind"},
	)

	c.streamChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Total stream chunks forwarded to callers",
		},
		[]string{"provider"},
	)

	return c
}

// RecordHTTPRequest 记录一次 HTTP 请求。
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration 记录一次生成调用的结果。mode 为 "sync" 或 "stream"。
func (c *Collector) RecordGeneration(provider, mode, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.generationsTotal.WithLabelValues(provider, mode, status).Inc()
	c.generationDuration.WithLabelValues(provider, mode).Observe(duration.Seconds())
}

// RecordTokens 记录供应商上报的 token 用量。
func (c *Collector) RecordTokens(provider string, prompt, completion int) {
	if c == nil {
		return
	}
	if prompt > 0 {
		c.tokensUsed.WithLabelValues(provider, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		c.tokensUsed.WithLabelValues(provider, "completion").Add(float64(completion))
	}
}

// RecordStreamChunk 记录一个转发给调用方的流式块。
func (c *Collector) RecordStreamChunk(provider string) {
	if c == nil {
		return
	}
	c.streamChunksTotal.WithLabelValues(provider).Inc()
}
