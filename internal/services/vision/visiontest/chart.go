// Package visiontest draws synthetic chart images for tests.
package visiontest

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

var (
	Green = color.RGBA{R: 0, G: 180, B: 0, A: 255}
	Red   = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	Grid  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Candle is one filled rectangle on a synthetic chart.
type Candle struct {
	X, Y    int
	W, H    int
	Bullish bool
}

// Candles returns n alternating green/red 10x20 candles on a 24px pitch,
// drifting upward so consecutive bodies do not line up.
func Candles(n int) []Candle {
	out := make([]Candle, n)
	for i := range out {
		out[i] = Candle{
			X:       20 + i*24,
			Y:       150 - 4*i + 10*(i%2),
			W:       10,
			H:       20,
			Bullish: i%2 == 0,
		}
	}
	return out
}

// Chart paints candles on a white w x h canvas. With grid set it adds two
// full-width horizontal rules and two vertical rules that stop short of
// them, so no rule encloses the candles.
func Chart(w, h int, candles []Candle, grid bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: White}, image.Point{}, draw.Src)
	if grid {
		for _, y := range []int{8, h - 8} {
			fill(img, image.Rect(0, y, w, y+1), Grid)
		}
		for _, x := range []int{6, w - 6} {
			fill(img, image.Rect(x, 30, x+1, h-29), Grid)
		}
	}
	for _, c := range candles {
		col := Red
		if c.Bullish {
			col = Green
		}
		fill(img, image.Rect(c.X, c.Y, c.X+c.W, c.Y+c.H), col)
	}
	return img
}

// Blank returns a plain white canvas.
func Blank(w, h int) *image.RGBA {
	return Chart(w, h, nil, false)
}

// PNG encodes img.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// DefaultChartPNG is the 400x300 chart with 15 candles and a grid.
func DefaultChartPNG() []byte {
	return PNG(Chart(400, 300, Candles(15), true))
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}
