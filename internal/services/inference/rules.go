package inference

import (
	"context"
	"errors"
	"math"

	"ChartSignal/internal/domain/models"
	domsvc "ChartSignal/internal/domain/service"
	applogger "ChartSignal/pkg/logger"
)

// vote is one indicator's opinion: +1 up, -1 down, 0 abstain.
type vote func(models.Features) int

var votes = []vote{
	func(f models.Features) int { return band(f, "rsi", 30, 70) },
	func(f models.Features) int { return sign(f, "macd_hist") },
	func(f models.Features) int { return sign(f, "trend_slope") },
	func(f models.Features) int { return band(f, "bb_position", 0.2, 0.8) },
	func(f models.Features) int { return band(f, "stoch_k", 20, 80) },
}

// band votes up when the value is oversold (below lo) and down when overbought (above hi).
func band(f models.Features, key string, lo, hi float64) int {
	v, ok := f.Get(key)
	switch {
	case !ok:
		return 0
	case v < lo:
		return 1
	case v > hi:
		return -1
	}
	return 0
}

func sign(f models.Features, key string) int {
	v, ok := f.Get(key)
	switch {
	case !ok:
		return 0
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// RuleEnsemble is the deterministic local classifier used when the model
// server is unavailable. Five indicators vote; confidence grows with the
// margin from 0.5 (no margin) to 1.0 (unanimous).
type RuleEnsemble struct{}

func (RuleEnsemble) Classify(_ context.Context, f models.Features) (models.Signal, error) {
	net := 0
	for _, v := range votes {
		net += v(f)
	}
	s := models.Signal{
		Direction:  models.Sideways,
		Confidence: 0.5 + 0.5*math.Abs(float64(net))/float64(len(votes)),
	}
	switch {
	case net > 0:
		s.Direction = models.Up
	case net < 0:
		s.Direction = models.Down
	}
	return s, nil
}

// FallbackClassifier tries the primary classifier and answers with the
// rule ensemble when it is missing or fails.
type FallbackClassifier struct {
	primary  domsvc.EnsembleClassifier
	fallback RuleEnsemble
	log      *applogger.Logger
}

// WithFallback wraps primary. A nil primary always uses the rules.
func WithFallback(primary domsvc.EnsembleClassifier, l *applogger.Logger) *FallbackClassifier {
	if l == nil {
		l = applogger.Nop()
	}
	initMetrics()
	return &FallbackClassifier{primary: primary, log: l}
}

func (c *FallbackClassifier) Classify(ctx context.Context, f models.Features) (models.Signal, error) {
	if c.primary == nil {
		fallbacks.WithLabelValues("unconfigured").Inc()
		return c.fallback.Classify(ctx, f)
	}
	s, err := c.primary.Classify(ctx, f)
	if err == nil {
		return s, nil
	}
	if ctx.Err() != nil {
		return models.Signal{}, ctx.Err()
	}
	reason := "error"
	if errors.Is(err, ErrNotConfigured) {
		reason = "unconfigured"
	}
	fallbacks.WithLabelValues(reason).Inc()
	c.log.Warn("ensemble classifier degraded, using rule ensemble", applogger.Error(err))
	return c.fallback.Classify(ctx, f)
}

var (
	_ domsvc.EnsembleClassifier = RuleEnsemble{}
	_ domsvc.EnsembleClassifier = (*FallbackClassifier)(nil)
)
