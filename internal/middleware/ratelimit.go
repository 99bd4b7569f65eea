package middleware

import (
	"math"
	"strconv"
	"time"

	domrepo "ChartSignal/internal/domain/repository"
	xhttp "ChartSignal/pkg/http"

	"github.com/labstack/echo/v4"
)

// Reserver hands out request tokens per key.
type Reserver interface {
	Reserve(key string) (bool, time.Duration)
}

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c echo.Context) string

// RealIP keys requests by client address.
func RealIP(c echo.Context) string { return c.RealIP() }

type rateLimitConfig struct {
	key     KeyFunc
	metrics domrepo.Metrics
}

type RateLimitOption func(*rateLimitConfig)

func WithKeyFunc(fn KeyFunc) RateLimitOption {
	return func(c *rateLimitConfig) { c.key = fn }
}

func WithRateLimitMetrics(m domrepo.Metrics) RateLimitOption {
	return func(c *rateLimitConfig) { c.metrics = m }
}

// RateLimit rejects requests over budget with 429 and a Retry-After header.
// A nil limiter disables the check.
func RateLimit(l Reserver, opts ...RateLimitOption) echo.MiddlewareFunc {
	cfg := rateLimitConfig{key: RealIP}
	for _, o := range opts {
		o(&cfg)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if l == nil {
			return next
		}
		return func(c echo.Context) error {
			ok, wait := l.Reserve(cfg.key(c))
			if ok {
				return next(c)
			}
			if cfg.metrics != nil {
				cfg.metrics.RecordRejection("rate_limited")
			}
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many analysis requests").
				WithParam("retry_after", secs))
		}
	}
}
