package vision

import (
	"image"
	"math"
)

// GrayMatrix is a single channel float image, row-major.
type GrayMatrix struct {
	Width  int
	Height int
	Pix    []float64
}

// NewGrayMatrix allocates a zeroed w x h matrix.
func NewGrayMatrix(w, h int) *GrayMatrix {
	return &GrayMatrix{Width: w, Height: h, Pix: make([]float64, w*h)}
}

func (m *GrayMatrix) At(x, y int) float64 { return m.Pix[y*m.Width+x] }

func (m *GrayMatrix) Set(x, y int, v float64) { m.Pix[y*m.Width+x] = v }

// ToGray8 maps [0,1] values back to 8-bit intensities.
func (m *GrayMatrix) ToGray8() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		g.Pix[i] = clamp8(math.Round(v * 255))
	}
	return g
}

// normalize rescales 8-bit intensities to [0,1].
func normalize(g *image.Gray) *GrayMatrix {
	b := g.Bounds()
	m := NewGrayMatrix(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+m.Width]
		for x, v := range row {
			m.Pix[y*m.Width+x] = float64(v) / 255
		}
	}
	return m
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

// reflect101 mirrors i into [0,n) without repeating the edge pixel (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func replicate(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
