package models

// CandleColor is the color class sampled at a candle's center pixel.
type CandleColor string

const (
	Bullish CandleColor = "bullish"
	Bearish CandleColor = "bearish"
	Unknown CandleColor = "unknown"
)

// CandleRegion is one candle-shaped component found in a chart image.
// Coordinates are pixels with the origin at the top-left corner.
type CandleRegion struct {
	X, Y    int
	W, H    int
	CenterX int
	CenterY int
	Color   CandleColor
	Area    float64
}

// AspectRatio returns height over width.
func (c CandleRegion) AspectRatio() float64 {
	if c.W == 0 {
		return 0
	}
	return float64(c.H) / float64(c.W)
}

// OHLCBar is a reconstructed bar in normalized price units (0 = bottom edge, 1 = top edge).
type OHLCBar struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	Color CandleColor
}

// ImageTensor is a row-major single channel image scaled to [0,1].
type ImageTensor struct {
	Width  int
	Height int
	Data   []float64
}
