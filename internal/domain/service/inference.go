package service

import (
	"context"

	"ChartSignal/internal/domain/models"
)

// PatternRecognizer classifies a chart image tensor into a direction distribution.
type PatternRecognizer interface {
	Recognize(ctx context.Context, tensor models.ImageTensor) (models.PatternSignal, error)
}

// EnsembleClassifier predicts a direction from a feature vector.
type EnsembleClassifier interface {
	Classify(ctx context.Context, features models.Features) (models.Signal, error)
}
