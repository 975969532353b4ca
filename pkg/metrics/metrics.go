package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLM 调用延迟（毫秒）
	LLMCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_latency_ms",
			Help:    "Language model and embedding call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"provider", "operation", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~65s
		},
		[]string{"method", "path", "status"},
	)

	// 里程碑生成计数
	MilestoneGenerationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milestone_generation_count",
			Help: "Total number of milestone plan generations",
		},
		[]string{"mode", "status"}, // mode: generate, regenerate, patch
	)

	// 语义相似度分布
	FidelityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "milestone_fidelity_cosine_similarity",
			Help:    "Cosine similarity between generated plans and their source description",
			Buckets: prometheus.LinearBuckets(-1, 0.1, 21),
		},
	)
)

// RecordLLMCallLatency 记录 LLM 调用延迟
func RecordLLMCallLatency(provider, operation, status string, duration time.Duration) {
	LLMCallLatency.WithLabelValues(provider, operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录一次慢查询
func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
	DBQueryDuration.WithLabelValues("slow", "any").Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementMilestoneGeneration 增加里程碑生成计数
func IncrementMilestoneGeneration(mode, status string) {
	MilestoneGenerationCount.WithLabelValues(mode, status).Inc()
}

// ObserveFidelity 记录相似度得分
func ObserveFidelity(score float64) {
	FidelityScore.Observe(score)
}
