package vision

import (
	"math"

	"ChartSignal/internal/domain/models"
)

// ValidatorConfig controls grid line detection.
type ValidatorConfig struct {
	CannyLow       float64
	CannyHigh      float64
	Hough          HoughConfig
	AngleTolerance float64
	MinHorizontal  int
	MinVertical    int
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		CannyLow:       50,
		CannyHigh:      150,
		Hough:          DefaultHoughConfig(),
		AngleTolerance: 10,
		MinHorizontal:  2,
		MinVertical:    2,
	}
}

// ValidationReport summarizes the line census of one image.
type ValidationReport struct {
	Segments   int  `json:"segments"`
	Horizontal int  `json:"horizontal"`
	Vertical   int  `json:"vertical"`
	IsChart    bool `json:"is_chart"`
}

// Err returns a NotAChartError when the image failed validation.
func (r ValidationReport) Err() error {
	if r.IsChart {
		return nil
	}
	return &models.NotAChartError{Horizontal: r.Horizontal, Vertical: r.Vertical}
}

// ChartValidator decides whether an image looks like a price chart by
// counting near-horizontal and near-vertical line segments.
type ChartValidator struct {
	cfg ValidatorConfig
}

func NewChartValidator(cfg ValidatorConfig) *ChartValidator {
	return &ChartValidator{cfg: cfg}
}

// Validate runs Canny and Hough on the preprocessed grayscale image. The
// error is a *models.NotAChartError when the grid census falls short.
func (v *ChartValidator) Validate(gray *GrayMatrix) (ValidationReport, error) {
	edges := Canny(gray.ToGray8(), v.cfg.CannyLow, v.cfg.CannyHigh)
	segments := HoughLinesP(edges, v.cfg.Hough)
	report := v.Classify(segments)
	return report, report.Err()
}

// Classify buckets segments by orientation, ignoring their direction of travel.
func (v *ChartValidator) Classify(segments []Segment) ValidationReport {
	report := ValidationReport{Segments: len(segments)}
	tol := v.cfg.AngleTolerance
	for _, s := range segments {
		a := math.Abs(s.Angle())
		switch {
		case a < tol || a > 180-tol:
			report.Horizontal++
		case math.Abs(a-90) < tol:
			report.Vertical++
		}
	}
	report.IsChart = report.Horizontal >= v.cfg.MinHorizontal && report.Vertical >= v.cfg.MinVertical
	return report
}
