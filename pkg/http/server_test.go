package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applogger "ChartSignal/pkg/logger"

	"github.com/labstack/echo/v4"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

func newTestServer(t *testing.T, h Handler, opts ...ServerOption) *echo.Echo {
	t.Helper()
	s := NewServer(applogger.Nop(), []Handler{h}, opts...)
	return s.Echo()
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var out APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestServerRegistersHandlersAndMetrics(t *testing.T) {
	e := newTestServer(t, routes(func(e *echo.Echo) {
		e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := decodeEnvelope(t, rec); got.Data != "pong" || got.Status != 200 {
		t.Errorf("unexpected envelope %+v", got)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "chartsignal_http_requests_total") {
		t.Errorf("expected request counter in metrics output")
	}
}

func TestServerRecoversPanics(t *testing.T) {
	e := newTestServer(t, routes(func(e *echo.Echo) {
		e.GET("/boom", func(c echo.Context) error { panic("boom") })
	}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestServerCORSPreflight(t *testing.T) {
	e := newTestServer(t, routes(func(e *echo.Echo) {
		e.POST("/api/x", func(c echo.Context) error { return NoContentResponse(c) })
	}), WithCORS("https://app.example"))

	req := httptest.NewRequest(http.MethodOptions, "/api/x", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "https://app.example" {
		t.Errorf("allow-origin=%q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestServerBodyLimit(t *testing.T) {
	e := newTestServer(t, routes(func(e *echo.Echo) {
		e.POST("/upload", func(c echo.Context) error { return NoContentResponse(c) })
	}), WithBodyLimit("1K"))
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 4096)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestAppErrorResponseUsesErrorStatus(t *testing.T) {
	e := echo.New()
	cases := []struct {
		err  error
		want int
	}{
		{UnprocessableError("ERR_NOT_A_CHART", "no grid"), http.StatusUnprocessableEntity},
		{TimeoutError("slow"), http.StatusGatewayTimeout},
		{TooManyRequestsError("slow down"), http.StatusTooManyRequests},
		{NotFoundErrorf("prediction %s not found", "x"), http.StatusNotFound},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := AppErrorResponse(c, tc.err); err != nil {
			t.Fatalf("write: %v", err)
		}
		if rec.Code != tc.want {
			t.Errorf("%v: status=%d want %d", tc.err, rec.Code, tc.want)
		}
		if env := decodeEnvelope(t, rec); env.Status != tc.want {
			t.Errorf("%v: envelope status=%d", tc.err, env.Status)
		}
	}
}

func TestReadAndValidateRequestDefaultsAndErrors(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
		Mode string `json:"mode" default:"fast" validate:"oneof=fast slow"`
	}
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	var ok body
	if verr := ReadAndValidateRequest(e.NewContext(req, httptest.NewRecorder()), &ok); verr != nil {
		t.Fatalf("unexpected errors: %+v", verr)
	}
	if ok.Mode != "fast" {
		t.Errorf("default not applied: %q", ok.Mode)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mode":"warp"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	var bad body
	verr := ReadAndValidateRequest(e.NewContext(req, httptest.NewRecorder()), &bad)
	errs, isList := verr.([]ValidationError)
	if !isList || len(errs) != 2 {
		t.Fatalf("expected 2 validation errors, got %+v", verr)
	}
	fields := map[string]string{}
	for _, fe := range errs {
		fields[fe.Field] = fe.Code
	}
	if fields["name"] != "ERR_REQUIRED" || fields["mode"] != "ERR_ONEOF" {
		t.Errorf("unexpected errors %+v", errs)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" RSI, ,MACD ,")
	if len(got) != 2 || got[0] != "RSI" || got[1] != "MACD" {
		t.Errorf("got %q", got)
	}
	if SplitList("  ") != nil {
		t.Errorf("blank input should yield nil")
	}
}

func TestRegisterRule(t *testing.T) {
	RegisterRule("even_len", "an even number of characters", func(s string) bool { return len(s)%2 == 0 })
	type body struct {
		Code string `json:"code" validate:"even_len"`
	}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"abc"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	var b body
	errs, _ := ReadAndValidateRequest(e.NewContext(req, httptest.NewRecorder()), &b).([]ValidationError)
	if len(errs) != 1 || errs[0].Code != "ERR_EVEN_LEN" || errs[0].Message != "code must be an even number of characters" {
		t.Fatalf("unexpected errors %+v", errs)
	}
}

func TestServerRendersRouterErrorsAsEnvelope(t *testing.T) {
	e := newTestServer(t, routes(func(e *echo.Echo) {}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != http.StatusNotFound || env.RequestID == "" {
		t.Errorf("unexpected envelope %+v", env)
	}
	if statusCode(http.StatusRequestEntityTooLarge) != "ERR_REQUEST_ENTITY_TOO_LARGE" {
		t.Errorf("statusCode(413)=%s", statusCode(http.StatusRequestEntityTooLarge))
	}
}
