package inference

import (
	"context"
	"errors"
	"fmt"
	"math"

	"ChartSignal/internal/domain/models"
	domsvc "ChartSignal/internal/domain/service"
	"ChartSignal/pkg/config"
	xhttp "ChartSignal/pkg/http"
)

// HTTPPatternRecognizer asks the model server to classify the chart tensor.
type HTTPPatternRecognizer struct{ base *HTTPServiceBase }

func NewHTTPPatternRecognizer(cfg *config.Config, opts ...xhttp.ClientOption) *HTTPPatternRecognizer {
	return &HTTPPatternRecognizer{base: NewHTTPServiceBase(cfg, opts...)}
}

type patternRequest struct {
	Model  string    `json:"model,omitempty"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Pixels []float64 `json:"pixels"`
}

type patternResponse struct {
	Probabilities map[string]float64 `json:"probabilities"`
}

func (r *HTTPPatternRecognizer) Recognize(ctx context.Context, tensor models.ImageTensor) (models.PatternSignal, error) {
	var out models.PatternSignal
	if len(tensor.Data) != tensor.Width*tensor.Height || len(tensor.Data) == 0 {
		return out, fmt.Errorf("pattern: tensor %dx%d has %d values", tensor.Width, tensor.Height, len(tensor.Data))
	}

	var pr patternResponse
	req := patternRequest{Model: r.base.model, Width: tensor.Width, Height: tensor.Height, Pixels: tensor.Data}
	if err := r.base.PostJSONWithRetry(ctx, "/pattern/predict", req, &pr); err != nil {
		return out, fmt.Errorf("pattern predict: %w", err)
	}
	return toPatternSignal(pr.Probabilities)
}

// toPatternSignal maps labels onto the UP/DOWN/SIDEWAYS slots and
// renormalizes, since model servers do not always return a softmax.
func toPatternSignal(probs map[string]float64) (models.PatternSignal, error) {
	var out models.PatternSignal
	var total float64
	for label, p := range probs {
		d, ok := models.ParseDirection(label)
		if !ok || p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		out.Probabilities[d.Index()] += p
		total += p
	}
	if total <= 0 {
		return models.PatternSignal{}, errors.New("pattern: response has no usable probabilities")
	}
	for i := range out.Probabilities {
		out.Probabilities[i] /= total
	}
	return out, nil
}

var _ domsvc.PatternRecognizer = (*HTTPPatternRecognizer)(nil)
