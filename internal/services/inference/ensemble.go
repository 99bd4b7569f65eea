package inference

import (
	"context"
	"fmt"
	"math"
	"sort"

	"ChartSignal/internal/domain/models"
	domsvc "ChartSignal/internal/domain/service"
	"ChartSignal/pkg/config"
	xhttp "ChartSignal/pkg/http"
)

// HTTPEnsembleClassifier sends the feature vector to the model server.
type HTTPEnsembleClassifier struct{ base *HTTPServiceBase }

func NewHTTPEnsembleClassifier(cfg *config.Config, opts ...xhttp.ClientOption) *HTTPEnsembleClassifier {
	return &HTTPEnsembleClassifier{base: NewHTTPServiceBase(cfg, opts...)}
}

type ensembleRequest struct {
	Model    string    `json:"model,omitempty"`
	Names    []string  `json:"names"`
	Features []float64 `json:"features"`
}

type ensembleResponse struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

func (e *HTTPEnsembleClassifier) Classify(ctx context.Context, f models.Features) (models.Signal, error) {
	var er ensembleResponse
	if err := e.base.PostJSONWithRetry(ctx, "/ensemble/predict", newEnsembleRequest(e.base.model, f), &er); err != nil {
		return models.Signal{}, fmt.Errorf("ensemble predict: %w", err)
	}
	d, ok := models.ParseDirection(er.Direction)
	if !ok {
		return models.Signal{}, fmt.Errorf("ensemble predict: unknown direction %q", er.Direction)
	}
	if math.IsNaN(er.Confidence) {
		return models.Signal{}, fmt.Errorf("ensemble predict: confidence is NaN")
	}
	return models.Signal{Direction: d, Confidence: math.Max(0, math.Min(1, er.Confidence))}, nil
}

// newEnsembleRequest flattens features in name order so the server sees a stable column layout.
func newEnsembleRequest(model string, f models.Features) ensembleRequest {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	vals := make([]float64, len(names))
	for i, k := range names {
		vals[i] = f[k]
	}
	return ensembleRequest{Model: model, Names: names, Features: vals}
}

var _ domsvc.EnsembleClassifier = (*HTTPEnsembleClassifier)(nil)
