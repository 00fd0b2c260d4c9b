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

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 工作流指标
	workflowsStarted  prometheus.Counter
	workflowsFinished *prometheus.CounterVec
	workflowDuration  *prometheus.HistogramVec
	workflowsInFlight prometheus.Gauge

	// 阶段指标
	stageRunsTotal *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec

	// 内容生成指标
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationTokens   *prometheus.CounterVec

	// 仓库拉取指标
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchedFiles  prometheus.Histogram

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 反馈与数据库
	feedbackRatings   prometheus.Histogram
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，reg 为 nil 时注册到默认 Registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 工作流指标
	c.workflowsStarted = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflows_started_total",
		Help:      "Total number of workflows started",
	})

	c.workflowsFinished = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_finished_total",
			Help:      "Total number of workflows that reached a terminal status",
		},
		[]string{"status"},
	)

	c.workflowDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow wall-clock duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	c.workflowsInFlight = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workflows_in_flight",
		Help:      "Number of workflows currently running",
	})

	// 阶段指标
	c.stageRunsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Total number of stage executions",
		},
		[]string{"stage", "status"},
	)

	c.stageDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// 内容生成指标
	c.generationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of content generation calls",
		},
		[]string{"provider", "task", "status"},
	)

	c.generationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Content generation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "task"},
	)

	c.generationTokens = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Total number of tokens consumed by content generation",
		},
		[]string{"provider", "type"}, // type: prompt, completion
	)

	// 仓库拉取指标
	c.fetchesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repository_fetches_total",
			Help:      "Total number of repository fetches",
		},
		[]string{"status"},
	)

	c.fetchDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "repository_fetch_duration_seconds",
			Help:      "Repository fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	c.fetchedFiles = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "repository_files",
		Help:      "Number of files per fetched repository snapshot",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	// 缓存指标
	c.cacheHits = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 反馈与数据库
	c.feedbackRatings = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "feedback_rating",
		Help:      "Distribution of submitted feedback ratings",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})

	c.dbConnectionsOpen = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求，path 应为路由模板
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🔄 工作流与阶段（workflow.MetricsRecorder）
// =============================================================================

// RecordWorkflowStarted 记录工作流启动
func (c *Collector) RecordWorkflowStarted() {
	c.workflowsStarted.Inc()
	c.workflowsInFlight.Inc()
}

// RecordWorkflowFinished 记录工作流进入终态
func (c *Collector) RecordWorkflowFinished(status string, duration time.Duration) {
	c.workflowsInFlight.Dec()
	c.workflowsFinished.WithLabelValues(status).Inc()
	c.workflowDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStage 记录阶段执行结果
func (c *Collector) RecordStage(stage, status string, duration time.Duration) {
	c.stageRunsTotal.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 内容生成 / 仓库拉取
// =============================================================================

// RecordGeneration 记录一次内容生成调用
func (c *Collector) RecordGeneration(provider, task, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.generationsTotal.WithLabelValues(provider, task, status).Inc()
	c.generationDuration.WithLabelValues(provider, task).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.generationTokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.generationTokens.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}

// RecordFetch 记录一次仓库拉取
func (c *Collector) RecordFetch(source, status string, duration time.Duration, files int) {
	c.fetchesTotal.WithLabelValues(status).Inc()
	c.fetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if status == "success" {
		c.fetchedFiles.Observe(float64(files))
	}
}

// =============================================================================
// 💾 缓存 / 反馈 / 数据库
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordFeedbackRating 记录反馈评分
func (c *Collector) RecordFeedbackRating(rating int) {
	c.feedbackRatings.Observe(float64(rating))
}

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
