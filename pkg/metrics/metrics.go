// Package metrics 汇总 SealDrive 的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 交易路径标签
const (
	PathSponsored  = "sponsored"
	PathSelfFunded = "self_funded"
	PathGuarded    = "guarded"
)

var (
	// TxTotal 按执行路径与结果统计的交易数
	TxTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sd_tx_total",
			Help: "Transactions attempted, by execution path and result.",
		},
		[]string{"path", "result"},
	)

	// ResolverSource 列表最终来自哪个数据源 (registry / cache_query / cache_signing / empty)
	ResolverSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sd_resolver_source_total",
			Help: "File listings served, by source.",
		},
		[]string{"source"},
	)

	// OpsTotal 用户操作结果
	OpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sd_ops_total",
			Help: "File operations, by operation and result.",
		},
		[]string{"op", "result"},
	)

	// OpDuration 用户操作耗时
	OpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sd_op_duration_seconds",
			Help:    "File operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"op"},
	)

	// CacheErrors 缓存读写失败 (被吞掉的错误)
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sd_cache_errors_total",
			Help: "Listing cache errors that were tolerated.",
		},
		[]string{"op"},
	)
)

// HTTP 网关指标
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sd_http_requests_total",
			Help: "Gateway HTTP requests, by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sd_http_request_duration_seconds",
			Help:    "Gateway HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Result 把 error 归一成标签值
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
