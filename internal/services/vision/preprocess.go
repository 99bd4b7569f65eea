package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"ChartSignal/internal/domain/models"
)

// Preprocessed is a decoded chart: denoised grayscale in [0,1] plus the untouched color image.
type Preprocessed struct {
	Gray  *GrayMatrix
	Color *image.RGBA
}

// Bounds returns the shared image rectangle.
func (p *Preprocessed) Bounds() image.Rectangle { return p.Color.Bounds() }

// DefaultMaxPixels caps decoded canvases at 16 MP.
const DefaultMaxPixels = 16_000_000

// PreprocessConfig holds bilateral filter parameters and the decode size cap.
type PreprocessConfig struct {
	BilateralDiameter int
	SigmaColor        float64
	SigmaSpace        float64
	MaxPixels         int
}

func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{BilateralDiameter: 9, SigmaColor: 75, SigmaSpace: 75, MaxPixels: DefaultMaxPixels}
}

// Preprocessor turns raw image bytes into Preprocessed matrices.
type Preprocessor struct {
	cfg PreprocessConfig
}

func NewPreprocessor(cfg PreprocessConfig) *Preprocessor {
	if cfg.BilateralDiameter <= 0 && cfg.SigmaSpace <= 0 {
		cfg = DefaultPreprocessConfig()
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Preprocessor{cfg: cfg}
}

// Decode parses JPEG, PNG, GIF, BMP or WebP bytes into an RGBA image anchored at (0,0).
// The header is read first; canvases above maxPixels are refused before any
// pixel buffer is allocated. maxPixels <= 0 disables the cap.
func Decode(data []byte, maxPixels int) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, &models.DecodeError{Err: errors.New("empty buffer")}
	}
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &models.DecodeError{Err: err}
	}
	if maxPixels > 0 && int64(hdr.Width)*int64(hdr.Height) > int64(maxPixels) {
		return nil, &models.DecodeError{
			Err: fmt.Errorf("image %dx%d exceeds %d pixels", hdr.Width, hdr.Height, maxPixels),
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &models.DecodeError{Err: err}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, &models.DecodeError{Err: errors.New("empty image")}
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}

// Preprocess decodes data, then applies grayscale, histogram equalization and the bilateral filter.
func (p *Preprocessor) Preprocess(data []byte) (*Preprocessed, error) {
	color, err := Decode(data, p.cfg.MaxPixels)
	if err != nil {
		return nil, err
	}
	return p.FromImage(color), nil
}

// FromImage runs the filter chain on an already decoded image.
func (p *Preprocessor) FromImage(color *image.RGBA) *Preprocessed {
	gray := Grayscale(color)
	EqualizeHist(gray)
	gray = BilateralFilter(gray, p.cfg.BilateralDiameter, p.cfg.SigmaColor, p.cfg.SigmaSpace)
	return &Preprocessed{Gray: normalize(gray), Color: color}
}

// Grayscale converts with ITU-R 601 luma weights in 14-bit fixed point.
func Grayscale(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := (y+b.Min.Y-src.Rect.Min.Y)*src.Stride + (b.Min.X-src.Rect.Min.X)*4
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			r, g, bl := uint32(src.Pix[si]), uint32(src.Pix[si+1]), uint32(src.Pix[si+2])
			dst.Pix[di+x] = uint8((r*4899 + g*9617 + bl*1868 + 8192) >> 14)
			si += 4
		}
	}
	return dst
}

// EqualizeHist spreads the intensity histogram of g in place.
func EqualizeHist(g *image.Gray) {
	var hist [256]int
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	total := w * h
	first := 0
	for first < 255 && hist[first] == 0 {
		first++
	}

	var lut [256]uint8
	if hist[first] == total {
		for i := range lut {
			lut[i] = uint8(first)
		}
	} else {
		scale := 255.0 / float64(total-hist[first])
		sum := 0
		for i := first + 1; i < 256; i++ {
			sum += hist[i]
			lut[i] = clamp8(math.RoundToEven(float64(sum) * scale))
		}
	}

	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			row[x] = lut[v]
		}
	}
}

type kernelTap struct {
	dx, dy int
	w      float64
}

// BilateralFilter is an edge preserving smoothing over a circular window of diameter d.
func BilateralFilter(src *image.Gray, d int, sigmaColor, sigmaSpace float64) *image.Gray {
	if sigmaColor <= 0 {
		sigmaColor = 1
	}
	if sigmaSpace <= 0 {
		sigmaSpace = 1
	}
	radius := d / 2
	if d <= 0 {
		radius = int(math.Round(sigmaSpace * 1.5))
	}
	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)

	var colorW [256]float64
	for i := range colorW {
		colorW[i] = math.Exp(float64(i*i) * colorCoeff)
	}
	taps := make([]kernelTap, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r := math.Sqrt(float64(dx*dx + dy*dy))
			if r > float64(radius) {
				continue
			}
			taps = append(taps, kernelTap{dx: dx, dy: dy, w: math.Exp(r * r * spaceCoeff)})
		}
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := int(src.Pix[y*src.Stride+x])
			var sum, wsum float64
			for _, t := range taps {
				nx := reflect101(x+t.dx, w)
				ny := reflect101(y+t.dy, h)
				v := int(src.Pix[ny*src.Stride+nx])
				diff := v - c
				if diff < 0 {
					diff = -diff
				}
				wt := t.w * colorW[diff]
				sum += wt * float64(v)
				wsum += wt
			}
			dst.Pix[y*dst.Stride+x] = clamp8(math.Round(sum / wsum))
		}
	}
	return dst
}

// PrepareForModel resizes gray to a size x size tensor for the pattern model.
func PrepareForModel(gray *GrayMatrix, size int) models.ImageTensor {
	if size <= 0 {
		size = 64
	}
	src := gray.ToGray8()
	dst := image.NewGray(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	data := make([]float64, size*size)
	for i, v := range dst.Pix {
		data[i] = float64(v) / 255
	}
	return models.ImageTensor{Width: size, Height: size, Data: data}
}
