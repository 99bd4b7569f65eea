package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	"ChartSignal/internal/services/report"
	applogger "ChartSignal/pkg/logger"
	"ChartSignal/pkg/metrics"
	"ChartSignal/pkg/util"

	"github.com/google/uuid"
)

// ErrImageTooLarge rejects uploads above the configured size.
var ErrImageTooLarge = errors.New("image too large")

// Defaults fill settings that neither the request nor the user's profile set.
type Defaults struct {
	Timeframe   string
	Indicators  []string
	Sensitivity models.Sensitivity
	Language    string
}

// AnalysisDeps groups the collaborators of AnalysisService. Optional ones may be nil.
type AnalysisDeps struct {
	Analyzer  *ChartAnalyzer
	Store     domrepo.PredictionStore
	Formatter *report.Formatter
	Publisher domrepo.EventPublisher
	Sink      domrepo.AnalyticsSink
	Cache     domrepo.ResultCache
	Uploads   domrepo.UploadStore
	Feed      domrepo.Broadcaster
	Metrics   domrepo.Metrics
	Logger    *applogger.Logger
}

// AnalysisService owns the prediction lifecycle around the analyzer.
type AnalysisService struct {
	AnalysisDeps
	defaults      Defaults
	maxImageBytes int64
}

func NewAnalysisService(deps AnalysisDeps, defaults Defaults, maxImageBytes int64) *AnalysisService {
	if deps.Logger == nil {
		deps.Logger = applogger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Formatter == nil {
		deps.Formatter = report.NewFormatter(defaults.Language)
	}
	return &AnalysisService{AnalysisDeps: deps, defaults: defaults, maxImageBytes: maxImageBytes}
}

// AnalyzeInput is one analysis request. Empty settings fields are resolved
// from the user's stored settings, then from the defaults.
type AnalyzeInput struct {
	UserID   string
	Image    []byte
	Settings models.AnalysisSettings
}

// Analyze runs the pipeline, stores the prediction and fans it out.
func (s *AnalysisService) Analyze(ctx context.Context, in AnalyzeInput) (*models.Prediction, error) {
	if s.maxImageBytes > 0 && int64(len(in.Image)) > s.maxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(in.Image), s.maxImageBytes)
	}
	if in.UserID != "" {
		if err := s.Store.EnsureUser(ctx, in.UserID); err != nil {
			return nil, err
		}
	}
	settings, lang := s.resolve(ctx, in.UserID, in.Settings)

	res, err := s.analyze(ctx, in.Image, settings)
	if err != nil {
		return nil, err
	}

	p := &models.Prediction{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		CreatedAt: time.Now().UTC(),
		Result:    *res,
	}
	p.Message = s.Formatter.RenderIn(lang, p.ID, res)

	if s.Uploads != nil {
		if path, err := s.Uploads.Save(ctx, in.Image); err != nil {
			s.Logger.Warn("save upload failed", applogger.Error(err))
		} else {
			s.Logger.Debug("upload saved", applogger.String("path", path), applogger.String("prediction_id", p.ID))
		}
	}

	if err := s.Store.SavePrediction(ctx, p); err != nil {
		s.Metrics.RecordError("store")
		return nil, fmt.Errorf("save prediction: %w", err)
	}
	if err := s.Store.IncrementDaily(ctx); err != nil {
		s.Logger.Warn("increment daily counter failed", applogger.Error(err))
	}

	s.fanOut(ctx, p)
	return p, nil
}

// analyze consults the result cache before running the pipeline.
func (s *AnalysisService) analyze(ctx context.Context, image []byte, settings models.AnalysisSettings) (*models.AnalysisResult, error) {
	key := CacheKey(image, settings)
	if s.Cache != nil {
		if r, ok := s.Cache.Get(ctx, key); ok {
			s.Metrics.RecordCache(true)
			return r, nil
		}
		s.Metrics.RecordCache(false)
	}

	res, err := s.Analyzer.Analyze(ctx, image, settings)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, res); err != nil {
			s.Logger.Warn("cache result failed", applogger.Error(err))
		}
	}
	return res, nil
}

// CacheKey fingerprints the image bytes together with the settings that change the result.
func CacheKey(image []byte, s models.AnalysisSettings) string {
	return util.Fingerprint(
		image,
		[]byte(s.Timeframe),
		[]byte(s.Sensitivity),
		[]byte(strings.ToUpper(strings.Join(s.Indicators, ","))),
	)
}

func (s *AnalysisService) fanOut(ctx context.Context, p *models.Prediction) {
	if s.Publisher != nil {
		e := &models.PredictionEvent{
			ID:          p.ID,
			UserID:      p.UserID,
			Direction:   p.Result.Direction,
			Confidence:  p.Result.Confidence,
			Timeframe:   p.Result.Timeframe,
			RiskLevel:   p.Result.RiskLevel,
			Features:    p.Result.Features,
			CreatedAt:   p.CreatedAt,
			CandleCount: p.Result.CandleCount,
		}
		if err := s.Publisher.PublishPrediction(ctx, e); err != nil {
			s.Metrics.RecordError("publish")
			s.Logger.Warn("publish prediction failed", applogger.String("prediction_id", p.ID), applogger.Error(err))
		}
	}
	if s.Sink != nil {
		if err := s.Sink.RecordPrediction(ctx, p); err != nil {
			s.Metrics.RecordError("analytics")
			s.Logger.Warn("analytics sink failed", applogger.String("prediction_id", p.ID), applogger.Error(err))
		}
	}
	if s.Feed != nil {
		s.Feed.Broadcast(p)
	}
}

// resolve layers request settings over stored settings over defaults.
func (s *AnalysisService) resolve(ctx context.Context, userID string, req models.AnalysisSettings) (models.AnalysisSettings, string) {
	stored := &models.UserSettings{}
	if userID != "" {
		us, err := s.Store.GetSettings(ctx, userID)
		switch {
		case err == nil:
			stored = us
		case !errors.Is(err, domrepo.ErrNotFound):
			s.Logger.Warn("read user settings failed", applogger.String("user_id", userID), applogger.Error(err))
		}
	}

	out := models.AnalysisSettings{
		Timeframe:   firstNonEmpty(req.Timeframe, stored.Timeframe, s.defaults.Timeframe),
		Sensitivity: models.Sensitivity(firstNonEmpty(string(req.Sensitivity), string(stored.Sensitivity), string(s.defaults.Sensitivity))),
		Indicators:  req.Indicators,
	}
	if len(out.Indicators) == 0 {
		out.Indicators = stored.Indicators
	}
	if len(out.Indicators) == 0 {
		out.Indicators = s.defaults.Indicators
	}
	return out, firstNonEmpty(stored.Language, s.defaults.Language)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetPrediction returns a stored prediction.
func (s *AnalysisService) GetPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	return s.Store.GetPrediction(ctx, id)
}

// SubmitFeedback records the user's verdict once and publishes it.
func (s *AnalysisService) SubmitFeedback(ctx context.Context, id string, result models.FeedbackResult) (*models.FeedbackEvent, error) {
	if err := s.Store.SaveFeedback(ctx, id, result); err != nil {
		return nil, err
	}
	e := &models.FeedbackEvent{PredictionID: id, Result: result, At: time.Now().UTC()}
	if s.Publisher != nil {
		if err := s.Publisher.PublishFeedback(ctx, e); err != nil {
			s.Logger.Warn("publish feedback failed", applogger.String("prediction_id", id), applogger.Error(err))
		}
	}
	if s.Sink != nil {
		if err := s.Sink.RecordFeedback(ctx, e); err != nil {
			s.Logger.Warn("analytics feedback failed", applogger.String("prediction_id", id), applogger.Error(err))
		}
	}
	return e, nil
}

// History lists the user's newest predictions.
func (s *AnalysisService) History(ctx context.Context, userID string, since time.Time, limit int) ([]*models.Prediction, error) {
	return s.Store.ListUserPredictions(ctx, userID, since, limit)
}

// Settings returns the user's effective settings: stored values with defaults filled in.
func (s *AnalysisService) Settings(ctx context.Context, userID string) (*models.UserSettings, error) {
	us, err := s.Store.GetSettings(ctx, userID)
	if errors.Is(err, domrepo.ErrNotFound) {
		us, err = &models.UserSettings{UserID: userID, Notifications: true}, nil
	}
	if err != nil {
		return nil, err
	}
	us.Timeframe = firstNonEmpty(us.Timeframe, s.defaults.Timeframe)
	us.Sensitivity = models.Sensitivity(firstNonEmpty(string(us.Sensitivity), string(s.defaults.Sensitivity)))
	us.Language = firstNonEmpty(us.Language, s.defaults.Language)
	if len(us.Indicators) == 0 {
		us.Indicators = append([]string(nil), s.defaults.Indicators...)
	}
	return us, nil
}

// UpdateSettings stores the user's settings.
func (s *AnalysisService) UpdateSettings(ctx context.Context, us *models.UserSettings) error {
	return s.Store.SaveSettings(ctx, us)
}

func (s *AnalysisService) Stats(ctx context.Context) (*models.Statistics, error) {
	return s.Store.Stats(ctx)
}

func (s *AnalysisService) Health(ctx context.Context) error {
	return s.Store.Health(ctx)
}

// ErrorCode maps pipeline and service errors to stable client codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrDecode):
		return "ERR_DECODE"
	case errors.Is(err, models.ErrNotAChart):
		return "ERR_NOT_A_CHART"
	case errors.Is(err, models.ErrInsufficientCandles):
		return "ERR_INSUFFICIENT_CANDLES"
	case errors.Is(err, ErrImageTooLarge):
		return "ERR_IMAGE_TOO_LARGE"
	case errors.Is(err, context.DeadlineExceeded):
		return "ERR_TIMEOUT"
	case errors.Is(err, domrepo.ErrNotFound):
		return "ERR_NOT_FOUND"
	case errors.Is(err, domrepo.ErrFeedbackExists):
		return "ERR_FEEDBACK_EXISTS"
	}
	return "ERR_INTERNAL"
}

// IsRejection reports whether err is a verdict about the input rather than a failure.
func IsRejection(err error) bool {
	return errors.Is(err, models.ErrDecode) ||
		errors.Is(err, models.ErrNotAChart) ||
		errors.Is(err, models.ErrInsufficientCandles) ||
		errors.Is(err, ErrImageTooLarge)
}
