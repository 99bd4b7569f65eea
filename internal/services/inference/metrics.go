package inference

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	callLatency *prometheus.HistogramVec
	callErrors  *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		callLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chartsignal",
			Subsystem: "inference",
			Name:      "latency_seconds",
			Help:      "Model server latency by endpoint.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"})
		callErrors = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartsignal",
			Subsystem: "inference",
			Name:      "errors_total",
			Help:      "Failed model server calls by endpoint.",
		}, []string{"endpoint"})
		fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartsignal",
			Subsystem: "inference",
			Name:      "fallbacks_total",
			Help:      "Classifications answered by the local rule ensemble.",
		}, []string{"reason"})
	})
}
