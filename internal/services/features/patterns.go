package features

import (
	"math"

	"ChartSignal/internal/domain/models"
	"github.com/markcheno/go-talib"
)

// patterns flags a doji or hammer on the last bar.
func patterns(s *series, f map[string]float64) {
	i := s.len() - 1
	o, h, l, c := s.open[i], s.high[i], s.low[i], s.close[i]
	body := math.Abs(c - o)
	rng := h - l

	doji := rng > 0 && body/rng < 0.1
	f["is_doji"] = boolFloat(doji)

	lower := math.Min(o, c) - l
	upper := h - math.Max(o, c)
	hammer := 0.0
	if lower > 2*body && upper < 0.3*body {
		hammer = 1
		if s.colors[i] == models.Bearish {
			hammer = -1
		}
	}
	f["hammer"] = hammer
}

// trend fits a 20-bar regression line to closes.
func trend(s *series, f map[string]float64) {
	const period = 20
	closes := tail(s.close, period)
	slope := last(talib.LinearRegSlope(closes, period))
	put(f, "trend_slope", slope)
	if m := mean(closes); m != 0 {
		put(f, "trend_strength", math.Abs(slope)/m)
	}
}

// basic emits change, momentum and 20-bar range features.
func basic(s *series, f map[string]float64) {
	n := s.len()
	c, prev := s.close[n-1], s.close[n-2]
	change := c - prev
	put(f, "price_change", change)
	if prev != 0 {
		put(f, "price_change_pct", change/prev*100)
	}
	put(f, "momentum_5", c-s.close[n-6])
	put(f, "momentum_10", c-s.close[n-11])

	high := last(talib.Max(s.high, 20))
	low := last(talib.Min(s.low, 20))
	put(f, "high_20", high)
	put(f, "low_20", low)
	if low != 0 {
		put(f, "range_20_pct", (high-low)/low*100)
	}
}
