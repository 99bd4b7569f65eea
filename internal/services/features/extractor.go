package features

import (
	"math"

	"ChartSignal/internal/domain/models"
)

const (
	basicMinBars      = 20
	trendMinBars      = 20
	volatilityWindow  = 20
	volatilityMinBars = volatilityWindow + 1

	// BarsPerYear annualizes realized volatility.
	BarsPerYear = 252
)

// Defaults returns the keys every feature vector carries.
func Defaults() models.Features {
	return models.Features{
		"rsi":              50,
		"macd":             0,
		"price_change_pct": 0,
		"trend_slope":      0,
		"bb_position":      0.5,
		"atr_pct":          1.0,
		"stoch_k":          50,
	}
}

// Extractor computes feature vectors from reconstructed bars.
type Extractor struct {
	barsPerYear float64
}

func NewExtractor() *Extractor {
	return &Extractor{barsPerYear: BarsPerYear}
}

// Extract computes the default, basic and selected indicator features. An
// empty selection means every indicator. Keys whose history is too short are
// omitted, never filled with NaN.
func (e *Extractor) Extract(bars []models.OHLCBar, selection []Indicator) models.Features {
	f := Defaults()
	if len(bars) == 0 {
		return f
	}
	if len(selection) == 0 {
		selection = AllIndicators
	}
	s := newSeries(bars)
	n := s.len()

	if n >= basicMinBars {
		basic(s, f)
	}
	for _, ind := range selection {
		if n >= ind.MinBars() {
			compute(ind, s, f)
		}
	}
	patterns(s, f)
	if n >= trendMinBars {
		trend(s, f)
	}
	if n >= volatilityMinBars {
		vol := RealizedVolatility(ComputeLogReturns(bars), volatilityWindow, e.barsPerYear)
		put(f, "volatility", vol)
	}
	return f
}

// Extract runs a default Extractor.
func Extract(bars []models.OHLCBar, selection []Indicator) models.Features {
	return NewExtractor().Extract(bars, selection)
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(bars)-1, or nil if insufficient data.
func ComputeLogReturns(bars []models.OHLCBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		cur := bars[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the last window
// returns using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	// annualize
	return math.Sqrt(variance * barsPerYear)
}
