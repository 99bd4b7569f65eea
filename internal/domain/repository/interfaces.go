package repository

import (
	"context"
	"errors"
	"time"

	"ChartSignal/internal/domain/models"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrFeedbackExists is returned when a prediction was already rated.
var ErrFeedbackExists = errors.New("feedback already recorded")

// PredictionStore persists predictions, user settings and counters.
type PredictionStore interface {
	SavePrediction(ctx context.Context, p *models.Prediction) error
	GetPrediction(ctx context.Context, id string) (*models.Prediction, error)
	ListUserPredictions(ctx context.Context, userID string, since time.Time, limit int) ([]*models.Prediction, error)
	SaveFeedback(ctx context.Context, id string, result models.FeedbackResult) error

	EnsureUser(ctx context.Context, userID string) error
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	SaveSettings(ctx context.Context, s *models.UserSettings) error

	Stats(ctx context.Context) (*models.Statistics, error)
	IncrementDaily(ctx context.Context) error
	ResetDaily(ctx context.Context) error

	Health(ctx context.Context) error
	Close() error
}

// EventPublisher emits prediction lifecycle events.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, e *models.PredictionEvent) error
	PublishFeedback(ctx context.Context, e *models.FeedbackEvent) error
	PublishJobResult(ctx context.Context, r *models.AnalysisJobResult) error
	Close() error
}

// AnalyticsSink is an append-only log of predictions and feedback.
type AnalyticsSink interface {
	RecordPrediction(ctx context.Context, p *models.Prediction) error
	RecordFeedback(ctx context.Context, e *models.FeedbackEvent) error
}

// ResultCache stores analysis results keyed by input fingerprint.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.AnalysisResult, bool)
	Set(ctx context.Context, key string, r *models.AnalysisResult) error
}

// UploadStore keeps raw uploaded images.
type UploadStore interface {
	Save(ctx context.Context, data []byte) (string, error)
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}

// Broadcaster fans predictions out to live subscribers.
type Broadcaster interface {
	Broadcast(p *models.Prediction)
}

// Metrics records pipeline and service metrics.
type Metrics interface {
	RecordStage(stage string, seconds float64)
	RecordRejection(reason string)
	RecordPrediction(direction string, source string)
	RecordCache(hit bool)
	RecordError(kind string)
}
