package api

import (
	"context"
	"net/http"
	"time"

	xhttp "ChartSignal/pkg/http"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether a dependency is usable.
type HealthChecker func(ctx context.Context) error

// SystemHandler serves /health, /version and the live prediction feed.
type SystemHandler struct {
	version     string
	environment string
	started     time.Time
	checks      map[string]HealthChecker
	feed        http.Handler
}

func NewSystemHandler(version, environment string, checks map[string]HealthChecker, feed http.Handler) *SystemHandler {
	return &SystemHandler{version: version, environment: environment, started: time.Now(), checks: checks, feed: feed}
}

func (h *SystemHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/version", h.Version)
	if h.feed != nil {
		e.GET("/ws/predictions", echo.WrapHandler(h.feed))
	}
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Uptime string            `json:"uptime"`
}

func (h *SystemHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	rep := healthReport{Status: "ok", Checks: make(map[string]string, len(h.checks)), Uptime: time.Since(h.started).Round(time.Second).String()}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			rep.Status = "degraded"
			rep.Checks[name] = err.Error()
			continue
		}
		rep.Checks[name] = "ok"
	}
	if rep.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, rep)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *SystemHandler) Version(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{
		"version":     h.version,
		"environment": h.environment,
	})
}
