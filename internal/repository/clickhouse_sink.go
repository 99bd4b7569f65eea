package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	pkgch "ChartSignal/pkg/clickhouse"
	applogger "ChartSignal/pkg/logger"
)

// AnalyticsSchema creates the append-only retraining logs.
var AnalyticsSchema = []string{
	`CREATE TABLE IF NOT EXISTS predictions_log (
		ts            DateTime64(3),
		prediction_id String,
		user_id       String,
		direction     LowCardinality(String),
		confidence    Float64,
		signal_source LowCardinality(String),
		timeframe     LowCardinality(String),
		sensitivity   LowCardinality(String),
		indicators    Array(String),
		candle_count  UInt32,
		take_profit   Float64,
		stop_loss     Float64,
		risk_score    Float64,
		risk_level    LowCardinality(String),
		features      String
	) ENGINE = MergeTree ORDER BY (ts, prediction_id)`,
	`CREATE TABLE IF NOT EXISTS feedback_log (
		ts            DateTime64(3),
		prediction_id String,
		result        LowCardinality(String)
	) ENGINE = MergeTree ORDER BY (ts, prediction_id)`,
}

const (
	insertPredictionLog = `INSERT INTO predictions_log (ts, prediction_id, user_id, direction, confidence, signal_source, timeframe, sensitivity, indicators, candle_count, take_profit, stop_loss, risk_score, risk_level, features) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertFeedbackLog   = `INSERT INTO feedback_log (ts, prediction_id, result) VALUES (?, ?, ?)`
)

// batchInserter is the subset of the ClickHouse client the sink needs.
type batchInserter interface {
	InsertBatch(ctx context.Context, query string, rows [][]any) error
}

// ClickHouseSink implements AnalyticsSink backed by ClickHouse.
type ClickHouseSink struct {
	ch batchInserter
	l  *applogger.Logger
}

// NewClickHouseSink creates the log tables and returns the sink.
func NewClickHouseSink(ctx context.Context, ch *pkgch.Client, l *applogger.Logger) (*ClickHouseSink, error) {
	if err := ch.InitSchema(ctx, AnalyticsSchema); err != nil {
		return nil, err
	}
	return newClickHouseSink(ch, l), nil
}

func newClickHouseSink(ch batchInserter, l *applogger.Logger) *ClickHouseSink {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseSink{ch: ch, l: l}
}

func (s *ClickHouseSink) RecordPrediction(ctx context.Context, p *models.Prediction) error {
	start := time.Now()
	features, err := json.Marshal(p.Result.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	r := p.Result
	indicators := r.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	row := []any{
		p.CreatedAt, p.ID, p.UserID, string(r.Direction), r.Confidence, string(r.Source),
		r.Timeframe, string(r.Sensitivity), indicators, uint32(r.CandleCount),
		r.TakeProfit, r.StopLoss, r.RiskScore, string(r.RiskLevel), string(features),
	}
	if err := s.ch.InsertBatch(ctx, insertPredictionLog, [][]any{row}); err != nil {
		s.l.Error("clickhouse predictions_log insert error",
			applogger.String("prediction_id", p.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("record prediction: %w", err)
	}
	s.l.Debug("clickhouse predictions_log ok",
		applogger.String("prediction_id", p.ID),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *ClickHouseSink) RecordFeedback(ctx context.Context, e *models.FeedbackEvent) error {
	row := []any{e.At, e.PredictionID, strings.ToLower(string(e.Result))}
	if err := s.ch.InsertBatch(ctx, insertFeedbackLog, [][]any{row}); err != nil {
		s.l.Error("clickhouse feedback_log insert error",
			applogger.String("prediction_id", e.PredictionID),
			applogger.Error(err),
		)
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

var _ domrepo.AnalyticsSink = (*ClickHouseSink)(nil)
