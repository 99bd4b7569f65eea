// Package middleware holds the echo middleware every route shares.
package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "ChartSignal/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	bodySize *prometheus.HistogramVec
}

var (
	httpOnce sync.Once
	hm       *httpMetrics
)

func metrics() *httpMetrics {
	httpOnce.Do(func() {
		hm = &httpMetrics{
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "chartsignal_http_requests_total",
				Help: "HTTP requests by route template and status.",
			}, []string{"route", "method", "status"}),
			duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "chartsignal_http_request_duration_seconds",
				Help:    "HTTP latency by route template and status class.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			}, []string{"route", "method", "class"}),
			inFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "chartsignal_http_in_flight_requests",
				Help: "Requests being served.",
			}),
			bodySize: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "chartsignal_http_request_size_bytes",
				Help:    "Declared request body size; chart uploads dominate.",
				Buckets: prometheus.ExponentialBuckets(1_000, 4, 8),
			}, []string{"route", "method"}),
		}
	})
	return hm
}

// Observe logs and measures every request. Routes are labeled by their echo
// template so "/api/predictions/:id" stays one series. Server errors log at
// error, requests slower than slow at warn and the rest at debug.
func Observe(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	m := metrics()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			took := time.Since(start)
			req, res := c.Request(), c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			m.requests.WithLabelValues(route, req.Method, strconv.Itoa(res.Status)).Inc()
			m.duration.WithLabelValues(route, req.Method, statusClass(res.Status)).Observe(took.Seconds())
			if req.ContentLength > 0 {
				m.bodySize.WithLabelValues(route, req.Method).Observe(float64(req.ContentLength))
			}

			if l == nil {
				return nil
			}
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", route),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				applogger.Int("status", res.Status),
				applogger.Duration("latency", took),
			}
			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && took >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
