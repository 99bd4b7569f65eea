package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
)

type memStore struct {
	mu       sync.Mutex
	preds    map[string]*models.Prediction
	settings map[string]*models.UserSettings
	users    map[string]bool
	daily    int64
	correct  int64
}

func newMemStore() *memStore {
	return &memStore{
		preds:    map[string]*models.Prediction{},
		settings: map[string]*models.UserSettings{},
		users:    map[string]bool{},
	}
}

func (m *memStore) SavePrediction(_ context.Context, p *models.Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.preds[p.ID] = &cp
	return nil
}

func (m *memStore) GetPrediction(_ context.Context, id string) (*models.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.preds[id]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListUserPredictions(_ context.Context, userID string, since time.Time, limit int) ([]*models.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Prediction
	for _, p := range m.preds {
		if p.UserID == userID && !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SaveFeedback(_ context.Context, id string, r models.FeedbackResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.preds[id]
	if !ok {
		return domrepo.ErrNotFound
	}
	if p.Feedback != nil {
		return domrepo.ErrFeedbackExists
	}
	p.Feedback = &r
	if r == models.FeedbackCorrect {
		m.correct++
	}
	return nil
}

func (m *memStore) EnsureUser(_ context.Context, userID string) error {
	m.mu.Lock()
	m.users[userID] = true
	m.mu.Unlock()
	return nil
}

func (m *memStore) GetSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) SaveSettings(_ context.Context, s *models.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settings[s.UserID] = &cp
	m.users[s.UserID] = true
	return nil
}

func (m *memStore) Stats(context.Context) (*models.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.Statistics{
		TotalPredictions:   int64(len(m.preds)),
		CorrectPredictions: m.correct,
		TotalUsers:         int64(len(m.users)),
		DailyRequests:      m.daily,
	}, nil
}

func (m *memStore) IncrementDaily(context.Context) error {
	m.mu.Lock()
	m.daily++
	m.mu.Unlock()
	return nil
}

func (m *memStore) ResetDaily(context.Context) error { m.daily = 0; return nil }
func (m *memStore) Health(context.Context) error     { return nil }
func (m *memStore) Close() error                     { return nil }

type recordingPublisher struct {
	mu       sync.Mutex
	preds    []*models.PredictionEvent
	feedback []*models.FeedbackEvent
	results  []*models.AnalysisJobResult
}

func (r *recordingPublisher) PublishPrediction(_ context.Context, e *models.PredictionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preds = append(r.preds, e)
	return nil
}

func (r *recordingPublisher) PublishFeedback(_ context.Context, e *models.FeedbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, e)
	return nil
}

func (r *recordingPublisher) PublishJobResult(_ context.Context, res *models.AnalysisJobResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type countingMetrics struct {
	mu         sync.Mutex
	hits       int
	misses     int
	rejections map[string]int
}

func (c *countingMetrics) RecordStage(string, float64)     {}
func (c *countingMetrics) RecordPrediction(string, string) {}
func (c *countingMetrics) RecordError(string)              {}

func (c *countingMetrics) RecordRejection(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejections == nil {
		c.rejections = map[string]int{}
	}
	c.rejections[reason]++
}

func (c *countingMetrics) RecordCache(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]models.AnalysisResult
}

func (c *mapCache) Get(_ context.Context, key string) (*models.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[key]
	if !ok {
		return nil, false
	}
	return &r, true
}

func (c *mapCache) Set(_ context.Context, key string, r *models.AnalysisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]models.AnalysisResult{}
	}
	c.m[key] = *r
	return nil
}

type feedRecorder struct {
	mu  sync.Mutex
	got []*models.Prediction
}

func (f *feedRecorder) Broadcast(p *models.Prediction) {
	f.mu.Lock()
	f.got = append(f.got, p)
	f.mu.Unlock()
}

type fixedPattern struct {
	probs [3]float64
	err   error
	delay time.Duration
}

func (f fixedPattern) Recognize(ctx context.Context, t models.ImageTensor) (models.PatternSignal, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.PatternSignal{}, ctx.Err()
		}
	}
	if t.Width == 0 || len(t.Data) != t.Width*t.Height {
		return models.PatternSignal{}, errors.New("empty tensor")
	}
	return models.PatternSignal{Probabilities: f.probs}, f.err
}

type fixedEnsemble struct {
	sig models.Signal
	err error
}

func (f fixedEnsemble) Classify(context.Context, models.Features) (models.Signal, error) {
	return f.sig, f.err
}

var (
	_ domrepo.PredictionStore = (*memStore)(nil)
	_ domrepo.EventPublisher  = (*recordingPublisher)(nil)
	_ domrepo.Metrics         = (*countingMetrics)(nil)
	_ domrepo.ResultCache     = (*mapCache)(nil)
)
