// Package ohlc turns detected candle geometry into normalized price bars.
package ohlc

import "ChartSignal/internal/domain/models"

const (
	bodyTopOffset    = 0.2
	bodyBottomOffset = 0.8
)

// Reconstructor maps pixel rows to relative prices: 1 at the top edge, 0 at the bottom.
// No axis calibration is attempted, so bars are comparable only within one image.
type Reconstructor struct {
	height float64
}

// NewReconstructor returns a reconstructor for an image of the given pixel height.
func NewReconstructor(imageHeight int) *Reconstructor {
	if imageHeight <= 0 {
		imageHeight = 1
	}
	return &Reconstructor{height: float64(imageHeight)}
}

func (r *Reconstructor) price(y float64) float64 {
	return 1 - y/r.height
}

// Bar converts one candle region.
func (r *Reconstructor) Bar(c models.CandleRegion) models.OHLCBar {
	top := float64(c.Y)
	h := float64(c.H)
	high := r.price(top)
	low := r.price(top + h)
	bodyTop := r.price(top + bodyTopOffset*h)
	bodyBottom := r.price(top + bodyBottomOffset*h)

	bar := models.OHLCBar{High: high, Low: low, Color: c.Color}
	// Only a confirmed bullish candle closes high; unknown reads as bearish.
	if c.Color == models.Bullish {
		bar.Open, bar.Close = bodyBottom, bodyTop
	} else {
		bar.Open, bar.Close = bodyTop, bodyBottom
	}
	return bar
}

// Reconstruct converts candles in order.
func (r *Reconstructor) Reconstruct(candles []models.CandleRegion) []models.OHLCBar {
	bars := make([]models.OHLCBar, len(candles))
	for i, c := range candles {
		bars[i] = r.Bar(c)
	}
	return bars
}

// Reconstruct is a shorthand for NewReconstructor(imageHeight).Reconstruct(candles).
func Reconstruct(candles []models.CandleRegion, imageHeight int) []models.OHLCBar {
	return NewReconstructor(imageHeight).Reconstruct(candles)
}
