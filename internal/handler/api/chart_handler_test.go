package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"ChartSignal/internal/domain/models"
	"ChartSignal/internal/repository"
	"ChartSignal/internal/services/vision/visiontest"
	"ChartSignal/internal/usecase"
	xhttp "ChartSignal/pkg/http"
	applogger "ChartSignal/pkg/logger"
	pkgsqlite "ChartSignal/pkg/sqlite"

	"github.com/labstack/echo/v4"
)

func newTestAPI(t *testing.T, maxBytes int64, mw ...echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	client, err := pkgsqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store, err := repository.NewSQLitePredictionStore(context.Background(), client, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	analyzer := usecase.NewChartAnalyzer(usecase.DefaultStages(), usecase.Backends{}, usecase.NewWorkerPool(2), nil)
	svc := usecase.NewAnalysisService(usecase.AnalysisDeps{Analyzer: analyzer, Store: store},
		usecase.Defaults{Timeframe: "5m", Indicators: []string{"RSI"}, Sensitivity: models.SensitivityMedium, Language: "en"}, maxBytes)

	handlers := []xhttp.Handler{
		NewChartHandler(nil, svc, maxBytes, mw...),
		NewSystemHandler("test", "dev", map[string]HealthChecker{"store": svc.Health}, nil),
	}
	return xhttp.NewServer(applogger.Nop(), handlers).Echo()
}

func multipartImage(t *testing.T, image []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	if image != nil {
		fw, err := w.CreateFormFile("image", "chart.png")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write(image)
	}
	_ = w.Close()
	return body, w.FormDataContentType()
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func postImage(t *testing.T, e *echo.Echo, url string, image []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartImage(t, image, fields)
	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set(echo.HeaderContentType, ct)
	return do(e, req)
}

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v (%s)", err, env.Data)
		}
	}
	return env
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var errs []xhttp.AppError
	decode(t, rec, &errs)
	if len(errs) == 0 {
		t.Fatalf("no errors in %s", rec.Body.String())
	}
	return errs[0].Code
}

func TestAnalyzeThenReadBackAndRate(t *testing.T) {
	e := newTestAPI(t, 0)

	rec := postImage(t, e, "/api/analyze", visiontest.DefaultChartPNG(), map[string]string{
		"user_id":    "42",
		"timeframe":  "15m",
		"indicators": "RSI, MACD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("analyze status=%d body=%s", rec.Code, rec.Body.String())
	}
	var p models.Prediction
	decode(t, rec, &p)
	if p.ID == "" || p.UserID != "42" || p.Result.CandleCount != 15 {
		t.Fatalf("unexpected prediction %+v", p)
	}
	if p.Result.Timeframe != "15m" || len(p.Result.Indicators) != 2 {
		t.Errorf("request settings ignored: %s %v", p.Result.Timeframe, p.Result.Indicators)
	}

	rec = do(e, httptest.NewRequest(http.MethodGet, "/api/predictions/"+p.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status=%d", rec.Code)
	}

	rec = do(e, jsonRequest(http.MethodPost, "/api/predictions/"+p.ID+"/feedback", `{"result":"correct"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("feedback status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(e, jsonRequest(http.MethodPost, "/api/predictions/"+p.ID+"/feedback", `{"result":"incorrect"}`))
	if rec.Code != http.StatusConflict {
		t.Errorf("second feedback status=%d, want 409", rec.Code)
	}

	rec = do(e, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var st models.Statistics
	decode(t, rec, &st)
	if st.TotalPredictions != 1 || st.CorrectPredictions != 1 || st.Accuracy != 100 {
		t.Errorf("unexpected stats %+v", st)
	}

	rec = do(e, httptest.NewRequest(http.MethodGet, "/api/users/42/predictions?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("history status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), p.ID) {
		t.Errorf("history does not list %s: %s", p.ID, rec.Body.String())
	}
}

func TestAnalyzeTextFormat(t *testing.T) {
	e := newTestAPI(t, 0)
	rec := postImage(t, e, "/api/analyze?format=text", visiontest.DefaultChartPNG(), map[string]string{"user_id": "7"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out textResult
	decode(t, rec, &out)
	if out.ID == "" {
		t.Fatal("missing prediction id")
	}
	if !strings.Contains(out.Message, "#"+out.ID) || !strings.Contains(out.Message, "VALID FOR") {
		t.Errorf("unexpected message:\n%s", out.Message)
	}
}

func TestAnalyzeRejections(t *testing.T) {
	e := newTestAPI(t, 1<<20)

	cases := []struct {
		name   string
		image  []byte
		fields map[string]string
		status int
		code   string
	}{
		{"missing image", nil, nil, http.StatusBadRequest, "ERR_REQUIRED"},
		{"garbage bytes", []byte("definitely not a png"), nil, http.StatusBadRequest, "ERR_DECODE"},
		{"blank image", visiontest.PNG(visiontest.Blank(400, 300)), nil, http.StatusUnprocessableEntity, "ERR_NOT_A_CHART"},
		{"too large", bytes.Repeat([]byte{0}, 1<<20+1), nil, http.StatusRequestEntityTooLarge, "ERR_TOO_LARGE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postImage(t, e, "/api/analyze", tc.image, tc.fields)
			if rec.Code != tc.status {
				t.Fatalf("status=%d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if got := errorCode(t, rec); got != tc.code {
				t.Errorf("code=%s, want %s", got, tc.code)
			}
		})
	}

	rec := postImage(t, e, "/api/analyze", visiontest.DefaultChartPNG(), map[string]string{"timeframe": "2h"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid timeframe status=%d, want 400", rec.Code)
	}
}

func TestPredictionNotFound(t *testing.T) {
	e := newTestAPI(t, 0)
	rec := do(e, httptest.NewRequest(http.MethodGet, "/api/predictions/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}
	rec = do(e, jsonRequest(http.MethodPost, "/api/predictions/missing/feedback", `{"result":"partial"}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("feedback status=%d, want 404", rec.Code)
	}
	rec = do(e, jsonRequest(http.MethodPost, "/api/predictions/missing/feedback", `{"result":"maybe"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad verdict status=%d, want 400", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	e := newTestAPI(t, 0)

	rec := do(e, httptest.NewRequest(http.MethodGet, "/api/users/9/settings", nil))
	var us models.UserSettings
	decode(t, rec, &us)
	if rec.Code != http.StatusOK || us.Timeframe != "5m" {
		t.Fatalf("default settings status=%d %+v", rec.Code, us)
	}

	rec = do(e, jsonRequest(http.MethodPut, "/api/users/9/settings",
		`{"timeframe":"1h","indicators":["RSI","ATR"],"sensitivity":"high","language":"en","notifications":false}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(e, httptest.NewRequest(http.MethodGet, "/api/users/9/settings", nil))
	us = models.UserSettings{}
	decode(t, rec, &us)
	if us.Timeframe != "1h" || us.Sensitivity != models.SensitivityHigh || us.Notifications || len(us.Indicators) != 2 {
		t.Errorf("settings not stored: %+v", us)
	}

	rec = do(e, jsonRequest(http.MethodPut, "/api/users/9/settings", `{"timeframe":"7m"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid settings status=%d, want 400", rec.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	e := newTestAPI(t, 0)
	rec := do(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"store":"ok"`) {
		t.Errorf("health status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(e, httptest.NewRequest(http.MethodGet, "/version", nil))
	if !strings.Contains(rec.Body.String(), `"version":"test"`) {
		t.Errorf("version body=%s", rec.Body.String())
	}
}

func TestHealthDegraded(t *testing.T) {
	h := NewSystemHandler("v", "dev", map[string]HealthChecker{
		"kafka": func(context.Context) error { return errors.New("broker down") },
	}, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	rec := do(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "broker down") {
		t.Errorf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAnalyzeMiddlewareOnlyWrapsAnalyze(t *testing.T) {
	blocked := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("slow down"))
		}
	}
	e := newTestAPI(t, 0, blocked)

	rec := postImage(t, e, "/api/analyze", visiontest.DefaultChartPNG(), nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("analyze status=%d, want 429", rec.Code)
	}
	rec = do(e, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("stats status=%d, want 200", rec.Code)
	}
}
