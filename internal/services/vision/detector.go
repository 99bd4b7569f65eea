package vision

import (
	"image"
	"image/color"
	"sort"

	"ChartSignal/internal/domain/models"
)

// ColorThresholds classify a candle by channel dominance.
type ColorThresholds struct {
	// MinChannel is the value the dominant channel must exceed.
	MinChannel uint8
}

// Classify returns bullish for green-dominant, bearish for red-dominant, unknown otherwise.
func (t ColorThresholds) Classify(c color.RGBA) models.CandleColor {
	switch {
	case c.G > c.R && c.G > c.B && c.G > t.MinChannel:
		return models.Bullish
	case c.R > c.G && c.R > c.B && c.R > t.MinChannel:
		return models.Bearish
	default:
		return models.Unknown
	}
}

// DetectorConfig holds candle geometry filters.
type DetectorConfig struct {
	BinaryThreshold uint8
	MinArea         float64
	MaxArea         float64
	MinAspect       float64
	Colors          ColorThresholds
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BinaryThreshold: 127,
		MinArea:         50,
		MaxArea:         500,
		MinAspect:       1.5,
		Colors:          ColorThresholds{MinChannel: 100},
	}
}

// CandleDetector finds candle bodies in a preprocessed chart.
type CandleDetector struct {
	cfg DetectorConfig
}

func NewCandleDetector(cfg DetectorConfig) *CandleDetector {
	return &CandleDetector{cfg: cfg}
}

// Detect returns candle regions ordered left to right.
func (d *CandleDetector) Detect(p *Preprocessed) []models.CandleRegion {
	bin := InverseThreshold(p.Gray, d.cfg.BinaryThreshold)
	return d.Select(ExternalContours(bin), p.Color)
}

// Select filters contours by area and aspect, samples their center color and sorts by x.
func (d *CandleDetector) Select(contours []Contour, img *image.RGBA) []models.CandleRegion {
	regions := make([]models.CandleRegion, 0, len(contours))
	for _, c := range contours {
		if c.Area < d.cfg.MinArea || c.Area > d.cfg.MaxArea {
			continue
		}
		r := models.CandleRegion{
			X:    c.Bounds.Min.X,
			Y:    c.Bounds.Min.Y,
			W:    c.Bounds.Dx(),
			H:    c.Bounds.Dy(),
			Area: c.Area,
		}
		if r.AspectRatio() <= d.cfg.MinAspect {
			continue
		}
		r.CenterX = r.X + r.W/2
		r.CenterY = r.Y + r.H/2
		r.Color = models.Unknown
		if img != nil && image.Pt(r.CenterX, r.CenterY).In(img.Bounds()) {
			r.Color = d.cfg.Colors.Classify(img.RGBAAt(r.CenterX, r.CenterY))
		}
		regions = append(regions, r)
	}
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].X < regions[j].X })
	return regions
}
