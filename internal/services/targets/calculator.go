// Package targets derives take-profit, stop-loss and risk advice from a signal.
package targets

import (
	"ChartSignal/internal/domain/models"
	"ChartSignal/internal/domain/repository"
)

const (
	// DefaultReferencePrice anchors support and resistance. It is an index level, not a currency.
	DefaultReferencePrice = 100.0

	defaultVolatility = 0.01
	baseVolume        = 2.0
)

// Calculator turns a direction and confidence into a trade plan.
type Calculator struct {
	reference float64
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithReferencePrice overrides the price level the bands are drawn around.
func WithReferencePrice(p float64) Option {
	return func(c *Calculator) {
		if p > 0 {
			c.reference = p
		}
	}
}

func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{reference: DefaultReferencePrice}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Calculate computes the levels. Percent magnitudes scale with the timeframe
// multiplier and with (1 + volatility), where volatility is atr_pct/100.
func (c *Calculator) Calculate(dir models.Direction, conf float64, f models.Features, timeframe string) models.TargetLevels {
	m := repository.Timeframe(timeframe).Multiplier()
	atrPct, hasATR := f.Get("atr_pct")
	vol := defaultVolatility
	if hasATR {
		vol = atrPct / 100
	}
	scale := 1 + vol

	var tp, sl, below, above float64
	switch dir {
	case models.Up:
		tp = 1.5 * m * conf
		sl = 0.8 * m * (1 - 0.5*conf)
		below, above = 0.01*m, 0.02*m
	case models.Down:
		tp = 1.5 * m * conf
		sl = 0.8 * m * (1 - 0.5*conf)
		below, above = 0.02*m, 0.01*m
	default:
		tp = 0.5 * m
		sl = 0.3 * m
		band := vol * m
		below, above = band, band
	}

	support := c.reference * (1 - below*scale)
	resistance := c.reference * (1 + above*scale)
	score := RiskScore(conf, vol)
	return models.TargetLevels{
		TakeProfit:           tp * scale,
		StopLoss:             sl * scale,
		Support:              support,
		Resistance:           resistance,
		Pivot:                (support + resistance) / 2,
		RiskScore:            score,
		RiskLevel:            RiskBand(score),
		VolumeRecommendation: VolumeRecommendation(conf, vol, f),
	}
}

// RiskScore grows as confidence falls and volatility rises.
func RiskScore(conf, vol float64) float64 {
	return (1-conf)*5 + vol*10
}

// RiskBand buckets a risk score at 2, 3, 4 and 5.
func RiskBand(score float64) models.RiskLevel {
	switch {
	case score < 2:
		return models.RiskLow
	case score < 3:
		return models.RiskMediumLow
	case score < 4:
		return models.RiskMedium
	case score < 5:
		return models.RiskMediumHigh
	}
	return models.RiskHigh
}

// VolumeRecommendation is the suggested position size in percent of capital.
func VolumeRecommendation(conf, vol float64, f models.Features) float64 {
	v := baseVolume * conf
	if rsi, ok := f.Get("rsi"); ok && (rsi > 70 || rsi < 30) {
		v *= 0.5
	}
	if vol > 0.03 {
		v *= 0.7
	}
	return v
}
