package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adautopilot"

// Registry 集中管理排程、平台呼叫、斷路器與通知的 Prometheus 指標。
type Registry struct {
	reg *prometheus.Registry

	JobRuns      *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
	AdapterCalls *prometheus.CounterVec
	BreakerState *prometheus.GaugeVec
	AlertsSent   *prometheus.CounterVec
}

// NewRegistry 建立獨立的 registry，附帶 Go runtime 與 process collector。
func NewRegistry() *Registry {
	r := &Registry{
		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled job executions by job and result.",
			},
			[]string{"job", "result"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of scheduled job executions in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"job"},
		),
		AdapterCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platform_calls_total",
				Help:      "Remote ad platform calls by platform, operation and result.",
			},
			[]string{"platform", "operation", "result"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state per platform (0 closed, 1 half-open, 2 open).",
			},
			[]string{"platform"},
		),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_sent_total",
				Help:      "Alert deliveries by channel, level and result.",
			},
			[]string{"channel", "level", "result"},
		),
	}
	r.reg = prometheus.NewRegistry()
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.JobRuns, r.JobDuration, r.AdapterCalls, r.BreakerState, r.AlertsSent,
	)
	return r
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRun 記錄一次排程工作。
func (r *Registry) ObserveRun(job string, duration time.Duration, err error) {
	r.JobRuns.WithLabelValues(job, result(err)).Inc()
	r.JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// ObserveCall 記錄一次平台 API 呼叫。
func (r *Registry) ObserveCall(platform, operation string, err error) {
	r.AdapterCalls.WithLabelValues(platform, operation, result(err)).Inc()
}

// SetBreakerState 設定斷路器狀態。
func (r *Registry) SetBreakerState(platform string, state float64) {
	r.BreakerState.WithLabelValues(platform).Set(state)
}

// ObserveAlert 記錄一次通知投遞。
func (r *Registry) ObserveAlert(channel, level string, err error) {
	r.AlertsSent.WithLabelValues(channel, level, result(err)).Inc()
}

// Gatherer 供測試讀取指標。
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler 回傳 /metrics 使用的 handler。
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
