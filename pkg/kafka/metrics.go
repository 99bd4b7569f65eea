package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type kafkaMetrics struct {
	published      *prometheus.CounterVec
	publishedBytes *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec

	queueDepth    *prometheus.GaugeVec
	handleLatency *prometheus.HistogramVec
	failures      *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	km          *kafkaMetrics
)

// metrics registers the collectors on first use so that importing the
// package alone does not touch the default registry.
func metrics() *kafkaMetrics {
	metricsOnce.Do(func() {
		km = &kafkaMetrics{
			published: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "chartsignal_kafka_producer_messages_total",
				Help: "Messages published, by outcome.",
			}, []string{"topic", "compression", "result"}),
			publishedBytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "chartsignal_kafka_producer_bytes_total",
				Help: "Payload bytes handed to the writer.",
			}, []string{"topic", "compression"}),
			publishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "chartsignal_kafka_producer_publish_seconds",
				Help:    "WriteMessages latency.",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			queueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "chartsignal_kafka_consumer_queue_depth",
				Help: "Fetched messages waiting for a worker.",
			}, []string{"topic"}),
			handleLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "chartsignal_kafka_consumer_handle_seconds",
				Help:    "Time per message including retries.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			}, []string{"topic"}),
			failures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "chartsignal_kafka_consumer_failures_total",
				Help: "Messages that failed for good and went to the DLQ.",
			}, []string{"topic"}),
		}
	})
	return km
}

func (m *kafkaMetrics) observePublish(topic, comp string, size int, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(topic, comp, result).Inc()
	m.publishedBytes.WithLabelValues(topic, comp).Add(float64(size))
	m.publishLatency.WithLabelValues(topic).Observe(took.Seconds())
}
