package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stageLatency *prometheus.HistogramVec
	rejections   *prometheus.CounterVec
	predictions  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartsignal_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartsignal_rejections_total",
				Help: "Images rejected before a signal was produced",
			},
			[]string{"reason"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartsignal_predictions_total",
				Help: "Signals produced by direction and source",
			},
			[]string{"direction", "source"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartsignal_cache_lookups_total",
				Help: "Result cache lookups",
			},
			[]string{"hit"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartsignal_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordStage records the latency of one pipeline stage.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordRejection counts an image that failed validation or detection.
func (r *Recorder) RecordRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

// RecordPrediction counts a produced signal.
func (r *Recorder) RecordPrediction(direction, source string) {
	r.predictions.WithLabelValues(direction, source).Inc()
}

// RecordCache counts a result cache lookup.
func (r *Recorder) RecordCache(hit bool) {
	r.cacheLookups.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordStage(string, float64) {}
func (Noop) RecordRejection(string) {}
func (Noop) RecordPrediction(string, string) {}
func (Noop) RecordCache(bool) {}
func (Noop) RecordError(string) {}
