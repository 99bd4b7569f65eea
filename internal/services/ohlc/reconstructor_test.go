package ohlc

import (
	"math"
	"testing"

	"ChartSignal/internal/domain/models"
)

func TestBullishAndBearishBodies(t *testing.T) {
	r := NewReconstructor(100)
	bull := r.Bar(models.CandleRegion{X: 0, Y: 10, W: 5, H: 20, Color: models.Bullish})
	if !near(bull.High, 0.9) || !near(bull.Low, 0.7) {
		t.Fatalf("bull wicks %+v", bull)
	}
	if !near(bull.Open, 0.74) || !near(bull.Close, 0.86) {
		t.Errorf("bull body %+v", bull)
	}

	bear := r.Bar(models.CandleRegion{X: 0, Y: 10, W: 5, H: 20, Color: models.Bearish})
	if !near(bear.Open, 0.86) || !near(bear.Close, 0.74) {
		t.Errorf("bear body %+v", bear)
	}

	unknown := r.Bar(models.CandleRegion{X: 0, Y: 10, W: 5, H: 20, Color: models.Unknown})
	if unknown.Open != bear.Open || unknown.Close != bear.Close {
		t.Errorf("unknown should use bearish geometry: %+v", unknown)
	}

	// Monochrome themes classify every candle as unknown.
	mono := NewReconstructor(100).Bar(models.CandleRegion{Y: 0, H: 100, Color: models.Unknown})
	if !near(mono.Open, 0.8) || !near(mono.Close, 0.2) {
		t.Errorf("unknown full-height body: open=%v close=%v, want 0.8 and 0.2", mono.Open, mono.Close)
	}
}

func TestBarsBracketBody(t *testing.T) {
	var candles []models.CandleRegion
	colors := []models.CandleColor{models.Bullish, models.Bearish, models.Unknown}
	for i := 0; i < 30; i++ {
		candles = append(candles, models.CandleRegion{
			X: i * 7, Y: (i * 37) % 250, W: 4 + i%5, H: 9 + (i*13)%40, Color: colors[i%3],
		})
	}
	bars := Reconstruct(candles, 300)
	if len(bars) != len(candles) {
		t.Fatalf("expected %d bars, got %d", len(candles), len(bars))
	}
	for i, b := range bars {
		if b.High < math.Max(b.Open, b.Close) || b.Low > math.Min(b.Open, b.Close) {
			t.Errorf("bar %d breaks high/low bracket: %+v", i, b)
		}
		if b.Color != candles[i].Color {
			t.Errorf("bar %d color %s want %s", i, b.Color, candles[i].Color)
		}
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
