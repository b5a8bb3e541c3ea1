// Package metrics 定义 Prometheus 指标
package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReplayItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_replay_items_total",
			Help: "Replayed queries by outcome",
		},
		[]string{"outcome"},
	)

	ReplayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "validator_replay_duration_seconds",
			Help:    "Duration of one streamed chat exchange",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_runs_total",
			Help: "Run executions by terminal status",
		},
		[]string{"status"},
	)

	ValidationWindowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_validation_windows_total",
			Help: "Validation LLM windows by outcome",
		},
		[]string{"criterion", "outcome"},
	)

	LLMReplyKinds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_llm_reply_kind_total",
			Help: "Decoded LLM reply shapes",
		},
		[]string{"kind"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validator_llm_tokens_total",
			Help: "Tokens reported by the LLM provider",
		},
		[]string{"operation", "kind"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "validator_llm_call_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)
)

var registerOnce sync.Once

// Init 注册全部指标
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ReplayItemsTotal,
			ReplayDuration,
			RunsTotal,
			ValidationWindowsTotal,
			LLMReplyKinds,
			LLMTokensTotal,
			LLMDuration,
		)
	})
}

// Handler 暴露 /metrics
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
