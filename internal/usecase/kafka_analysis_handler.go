package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	applogger "ChartSignal/pkg/logger"
	pkgkafka "ChartSignal/pkg/kafka"

	"github.com/google/uuid"
)

// KafkaAnalysisHandler consumes async analysis jobs and publishes their results.
type KafkaAnalysisHandler struct {
	topic   string
	svc     *AnalysisService
	pub     domrepo.EventPublisher
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewKafkaAnalysisHandler(topic string, svc *AnalysisService, pub domrepo.EventPublisher, metrics domrepo.Metrics, l *applogger.Logger) *KafkaAnalysisHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaAnalysisHandler{topic: topic, svc: svc, pub: pub, metrics: metrics, l: l}
}

func (h *KafkaAnalysisHandler) Topic() string { return h.topic }

// incoming message schema: {request_id, user_id, image_base64, settings}
func (h *KafkaAnalysisHandler) Handle(ctx context.Context, b []byte) error {
	var job models.AnalysisJob
	if err := json.Unmarshal(b, &job); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode job: %w", err))
	}
	if job.RequestID == "" {
		job.RequestID = pkgkafka.RequestIDFrom(ctx)
	}
	if job.RequestID == "" {
		job.RequestID = uuid.NewString()
	}
	ctx = pkgkafka.WithRequestID(ctx, job.RequestID)

	image, err := decodeImage(job.ImageBase64)
	if err == nil {
		err = checkJobSettings(job.Settings)
	}
	if err != nil {
		h.metrics.RecordError("consumer_image")
		return h.reply(ctx, &models.AnalysisJobResult{
			RequestID: job.RequestID,
			Error:     err.Error(),
			ErrorCode: "ERR_BAD_PAYLOAD",
		})
	}

	start := time.Now()
	p, err := h.svc.Analyze(ctx, AnalyzeInput{UserID: job.UserID, Image: image, Settings: job.Settings})
	h.metrics.RecordStage("async_job", time.Since(start).Seconds())
	if err != nil {
		if !IsRejection(err) {
			// Transient failures go back to the consumer for retry.
			return err
		}
		return h.reply(ctx, &models.AnalysisJobResult{
			RequestID: job.RequestID,
			Error:     err.Error(),
			ErrorCode: ErrorCode(err),
		})
	}
	return h.reply(ctx, &models.AnalysisJobResult{
		RequestID:    job.RequestID,
		PredictionID: p.ID,
		Result:       &p.Result,
	})
}

func (h *KafkaAnalysisHandler) reply(ctx context.Context, r *models.AnalysisJobResult) error {
	if err := h.pub.PublishJobResult(ctx, r); err != nil {
		return fmt.Errorf("publish job result: %w", err)
	}
	if r.Error != "" {
		h.l.Info("async analysis rejected",
			applogger.String("request_id", r.RequestID),
			applogger.String("code", r.ErrorCode),
		)
	}
	return nil
}

// decodeImage accepts standard or URL-safe base64, with or without a data: URI prefix.
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("image_base64 is empty")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("image_base64 is not valid base64")
}

var _ pkgkafka.MessageHandler = (*KafkaAnalysisHandler)(nil)

// checkJobSettings rejects values the HTTP API would refuse at validation.
// Empty fields are resolved from the user's stored settings later.
func checkJobSettings(s models.AnalysisSettings) error {
	if s.Timeframe != "" && !domrepo.IsValidTimeframe(domrepo.Timeframe(s.Timeframe)) {
		return fmt.Errorf("unsupported timeframe %q", s.Timeframe)
	}
	if s.Sensitivity != "" && !s.Sensitivity.Valid() {
		return fmt.Errorf("unsupported sensitivity %q", s.Sensitivity)
	}
	return nil
}
