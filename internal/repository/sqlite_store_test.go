package repository

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	pkgsqlite "ChartSignal/pkg/sqlite"
)

func newTestStore(t *testing.T) *SQLitePredictionStore {
	t.Helper()
	client, err := pkgsqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, err := NewSQLitePredictionStore(context.Background(), client, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePrediction(user string) *models.Prediction {
	return &models.Prediction{
		UserID: user,
		Result: models.AnalysisResult{
			Direction:   models.Up,
			Confidence:  0.8,
			Source:      models.SourceCombined,
			CandleCount: 15,
			Timeframe:   "5m",
			Indicators:  []string{"RSI"},
			Sensitivity: models.SensitivityMedium,
			Features:    models.Features{"rsi": 55.5},
			TargetLevels: models.TargetLevels{
				TakeProfit: 1.212,
				RiskLevel:  models.RiskLow,
			},
		},
		Message: "hello",
	}
}

func TestSaveAndGetPrediction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := samplePrediction("u1")
	if err := s.SavePrediction(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("id and timestamp should be assigned: %+v", p)
	}

	got, err := s.GetPrediction(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got.Result, p.Result) {
		t.Errorf("result mismatch:\n got %+v\nwant %+v", got.Result, p.Result)
	}
	if got.Message != "hello" || got.Feedback != nil || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("unexpected prediction %+v", got)
	}

	if _, err := s.GetPrediction(ctx, "missing"); !errors.Is(err, domrepo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUserPredictions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		p := samplePrediction("u1")
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SavePrediction(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	other := samplePrediction("u2")
	if err := s.SavePrediction(ctx, other); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.ListUserPredictions(ctx, "u1", time.Time{}, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if !got[0].CreatedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("newest first expected, got %v", got[0].CreatedAt)
	}

	got, err = s.ListUserPredictions(ctx, "u1", base.Add(3*time.Minute), 10)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("since filter: len = %d, want 2", len(got))
	}
}

func TestFeedbackOnceAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, b := samplePrediction("u1"), samplePrediction("u2")
	for _, p := range []*models.Prediction{a, b} {
		if err := s.EnsureUser(ctx, p.UserID); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if err := s.SavePrediction(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := s.EnsureUser(ctx, "u1"); err != nil {
		t.Fatalf("ensure twice: %v", err)
	}

	if err := s.SaveFeedback(ctx, a.ID, models.FeedbackCorrect); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if err := s.SaveFeedback(ctx, a.ID, models.FeedbackIncorrect); !errors.Is(err, domrepo.ErrFeedbackExists) {
		t.Errorf("second feedback: %v", err)
	}
	if err := s.SaveFeedback(ctx, b.ID, models.FeedbackPartial); err != nil {
		t.Fatalf("feedback b: %v", err)
	}
	if err := s.SaveFeedback(ctx, "nope", models.FeedbackCorrect); !errors.Is(err, domrepo.ErrNotFound) {
		t.Errorf("missing prediction: %v", err)
	}
	if err := s.SaveFeedback(ctx, b.ID, "great"); err == nil {
		t.Errorf("invalid verdict should fail")
	}

	got, _ := s.GetPrediction(ctx, a.ID)
	if got.Feedback == nil || *got.Feedback != models.FeedbackCorrect {
		t.Errorf("feedback not stored: %+v", got.Feedback)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementDaily(ctx); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := models.Statistics{TotalPredictions: 2, CorrectPredictions: 1, Accuracy: 50, TotalUsers: 2, DailyRequests: 3}
	if *st != want {
		t.Errorf("stats = %+v, want %+v", *st, want)
	}

	if err := s.ResetDaily(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	st, _ = s.Stats(ctx)
	if st.DailyRequests != 0 {
		t.Errorf("daily not reset: %d", st.DailyRequests)
	}
}

func TestConcurrentFeedbackSavesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := samplePrediction("u1")
	if err := s.SavePrediction(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	const posts = 8
	errs := make(chan error, posts)
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.SaveFeedback(ctx, p.ID, models.FeedbackCorrect)
		}()
	}
	wg.Wait()
	close(errs)

	saved := 0
	for err := range errs {
		switch {
		case err == nil:
			saved++
		case errors.Is(err, domrepo.ErrFeedbackExists):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if saved != 1 {
		t.Fatalf("feedback saved %d times, want 1", saved)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.CorrectPredictions != 1 {
		t.Errorf("correct = %d, want 1", st.CorrectPredictions)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSettings(ctx, "u1"); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.EnsureUser(ctx, "u1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	us, err := s.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if us.Timeframe != "" || len(us.Indicators) != 0 || !us.Notifications {
		t.Errorf("fresh user should have empty settings: %+v", us)
	}

	in := &models.UserSettings{UserID: "u1", Timeframe: "1h", Indicators: []string{"RSI", "MACD"},
		Sensitivity: models.SensitivityHigh, Language: "en", Notifications: false}
	if err := s.SaveSettings(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	us, err = s.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(us, in) {
		t.Errorf("got %+v, want %+v", us, in)
	}
}
