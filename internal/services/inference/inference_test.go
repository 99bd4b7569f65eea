package inference

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ChartSignal/internal/domain/models"
	"ChartSignal/pkg/config"
	applogger "ChartSignal/pkg/logger"
)

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Inference.BaseURL = url
	cfg.Inference.Timeout = time.Second
	cfg.Inference.Retries = 2
	return cfg
}

func TestHTTPPatternRecognizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pattern/predict" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req patternRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Width != 2 || req.Height != 2 || len(req.Pixels) != 4 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"probabilities":{"bullish":2,"bearish":1,"neutral":1,"garbage":9}}`))
	}))
	defer srv.Close()

	r := NewHTTPPatternRecognizer(testConfig(srv.URL))
	got, err := r.Recognize(context.Background(), models.ImageTensor{Width: 2, Height: 2, Data: []float64{0, 1, 0, 1}})
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	want := [3]float64{0.5, 0.25, 0.25}
	for i := range want {
		if math.Abs(got.Probabilities[i]-want[i]) > 1e-9 {
			t.Errorf("slot %d = %v want %v", i, got.Probabilities[i], want[i])
		}
	}
}

func TestHTTPPatternRecognizerRejectsBadTensor(t *testing.T) {
	r := NewHTTPPatternRecognizer(testConfig("http://unused"))
	if _, err := r.Recognize(context.Background(), models.ImageTensor{Width: 3, Height: 3, Data: []float64{1}}); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestHTTPEnsembleClassifierRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		var req ensembleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Names) != 2 || req.Names[0] != "macd" || req.Names[1] != "rsi" || req.Features[1] != 25 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"direction":"down","confidence":1.4}`))
	}))
	defer srv.Close()

	c := NewHTTPEnsembleClassifier(testConfig(srv.URL))
	got, err := c.Classify(context.Background(), models.Features{"rsi": 25, "macd": -0.1})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Direction != models.Down || got.Confidence != 1 {
		t.Errorf("got %+v", got)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls=%d want 2", n)
	}
}

func TestHTTPEnsembleClassifierDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad features", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPEnsembleClassifier(testConfig(srv.URL))
	if _, err := c.Classify(context.Background(), models.Features{"rsi": 50}); err == nil {
		t.Fatalf("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls=%d want 1", n)
	}
}

func TestHTTPEnsembleClassifierUnknownDirection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"direction":"moon","confidence":0.9}`))
	}))
	defer srv.Close()
	if _, err := NewHTTPEnsembleClassifier(testConfig(srv.URL)).Classify(context.Background(), models.Features{}); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}

func TestUnconfiguredBase(t *testing.T) {
	c := NewHTTPEnsembleClassifier(testConfig(""))
	_, err := c.Classify(context.Background(), models.Features{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRuleEnsemble(t *testing.T) {
	tests := []struct {
		name string
		f    models.Features
		dir  models.Direction
		conf float64
	}{
		{"defaults abstain", models.Features{"rsi": 50, "bb_position": 0.5, "stoch_k": 50}, models.Sideways, 0.5},
		{"unanimous up", models.Features{"rsi": 20, "macd_hist": 0.1, "trend_slope": 0.01, "bb_position": 0.1, "stoch_k": 10}, models.Up, 1.0},
		{"two down one up", models.Features{"rsi": 80, "macd_hist": -0.2, "trend_slope": 0.3}, models.Down, 0.6},
		{"tie", models.Features{"rsi": 80, "macd_hist": 0.2}, models.Sideways, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RuleEnsemble{}.Classify(context.Background(), tc.f)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if got.Direction != tc.dir || math.Abs(got.Confidence-tc.conf) > 1e-9 {
				t.Errorf("got %+v want %s %.2f", got, tc.dir, tc.conf)
			}
		})
	}
}

type failingClassifier struct{ err error }

func (f failingClassifier) Classify(context.Context, models.Features) (models.Signal, error) {
	return models.Signal{}, f.err
}

func TestWithFallback(t *testing.T) {
	f := models.Features{"rsi": 10}
	c := WithFallback(failingClassifier{errors.New("down")}, applogger.Nop())
	got, err := c.Classify(context.Background(), f)
	if err != nil || got.Direction != models.Up {
		t.Fatalf("got %+v, %v", got, err)
	}

	got, err = WithFallback(nil, nil).Classify(context.Background(), f)
	if err != nil || got.Direction != models.Up {
		t.Fatalf("nil primary: %+v, %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Classify(ctx, f); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context should not fall back, got %v", err)
	}
}
