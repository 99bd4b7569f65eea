// Package signal merges the pattern model and ensemble outputs into one call.
package signal

import "ChartSignal/internal/domain/models"

// Weights are the pattern and ensemble shares for one sensitivity.
type Weights struct {
	Pattern  float64
	Ensemble float64
}

var sensitivityWeights = map[models.Sensitivity]Weights{
	models.SensitivityLow:    {Pattern: 0.3, Ensemble: 0.7},
	models.SensitivityMedium: {Pattern: 0.5, Ensemble: 0.5},
	models.SensitivityHigh:   {Pattern: 0.7, Ensemble: 0.3},
}

// WeightsFor returns the weights for s; unknown values fall back to medium.
func WeightsFor(s models.Sensitivity) Weights {
	if w, ok := sensitivityWeights[s]; ok {
		return w
	}
	return sensitivityWeights[models.SensitivityMedium]
}

// Combined is the merged signal with the raw accumulator behind it.
type Combined struct {
	models.Signal
	Accumulator [3]float64
	Source      models.SignalSource
}

// Option configures a Combiner.
type Option func(*Combiner)

// WithClampConfidence caps the combined confidence at 1.
func WithClampConfidence(on bool) Option {
	return func(c *Combiner) { c.clamp = on }
}

// Combiner is stateless apart from its options.
type Combiner struct {
	clamp bool
}

func NewCombiner(opts ...Option) *Combiner {
	c := &Combiner{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Combine weights each available signal into its direction slot and takes the
// arg-max, breaking ties toward UP, then DOWN, then SIDEWAYS. The confidence
// is the raw slot value and is not renormalized. With one signal missing the
// other passes through; with both missing the call is SIDEWAYS at 0.5.
func (c *Combiner) Combine(pattern, ensemble *models.Signal, s models.Sensitivity) Combined {
	switch {
	case pattern == nil && ensemble == nil:
		return Combined{
			Signal: models.Signal{Direction: models.Sideways, Confidence: 0.5},
			Source: models.SourceNeutral,
		}
	case pattern == nil:
		return c.passThrough(*ensemble, models.SourceEnsembleOnly)
	case ensemble == nil:
		return c.passThrough(*pattern, models.SourcePatternOnly)
	}

	w := WeightsFor(s)
	var acc [3]float64
	add(&acc, *pattern, w.Pattern)
	add(&acc, *ensemble, w.Ensemble)

	best := 0
	for i := 1; i < len(acc); i++ {
		if acc[i] > acc[best] {
			best = i
		}
	}
	return Combined{
		Signal:      models.Signal{Direction: models.Directions[best], Confidence: c.confidence(acc[best])},
		Accumulator: acc,
		Source:      models.SourceCombined,
	}
}

func (c *Combiner) passThrough(sig models.Signal, src models.SignalSource) Combined {
	out := Combined{Signal: sig, Source: src}
	if i := sig.Direction.Index(); i >= 0 {
		out.Accumulator[i] = sig.Confidence
	}
	out.Confidence = c.confidence(sig.Confidence)
	return out
}

func (c *Combiner) confidence(v float64) float64 {
	if c.clamp && v > 1 {
		return 1
	}
	return v
}

func add(acc *[3]float64, sig models.Signal, weight float64) {
	i := sig.Direction.Index()
	if i < 0 {
		i = models.Sideways.Index()
	}
	acc[i] += sig.Confidence * weight
}
