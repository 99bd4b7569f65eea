package features

import (
	"math"

	"ChartSignal/internal/domain/models"
)

type series struct {
	open   []float64
	high   []float64
	low    []float64
	close  []float64
	colors []models.CandleColor
}

func newSeries(bars []models.OHLCBar) *series {
	s := &series{
		open:   make([]float64, len(bars)),
		high:   make([]float64, len(bars)),
		low:    make([]float64, len(bars)),
		close:  make([]float64, len(bars)),
		colors: make([]models.CandleColor, len(bars)),
	}
	for i, b := range bars {
		s.open[i] = b.Open
		s.high[i] = b.High
		s.low[i] = b.Low
		s.close[i] = b.Close
		s.colors[i] = b.Color
	}
	return s
}

func (s *series) len() int { return len(s.close) }

func (s *series) lastClose() float64 { return s.close[len(s.close)-1] }

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func tail(xs []float64, n int) []float64 {
	if n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// put stores v under key unless it is NaN or infinite.
func put(f map[string]float64, key string, v float64) {
	if finite(v) {
		f[key] = v
	}
}
