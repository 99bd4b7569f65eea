package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Observe(nil, 0))
	e.GET("/api/predictions/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.POST("/api/analyze", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway) })

	before := testutil.ToFloat64(metrics().requests.WithLabelValues("/api/predictions/:id", "GET", "204"))
	for _, id := range []string{"a", "b", "c"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/predictions/"+id, nil))
	}
	if got := testutil.ToFloat64(metrics().requests.WithLabelValues("/api/predictions/:id", "GET", "204")); got-before != 3 {
		t.Errorf("requests delta=%v, want 3", got-before)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("x"))))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := testutil.ToFloat64(metrics().requests.WithLabelValues("/api/analyze", "POST", "502")); got < 1 {
		t.Errorf("error status not recorded")
	}
}

func TestStatusClass(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 204: "2xx", 404: "4xx", 503: "5xx", 0: "5xx"} {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d)=%s, want %s", code, got, want)
		}
	}
}
