package models

import "strings"

// Direction is the categorical price call.
type Direction string

const (
	Up       Direction = "UP"
	Down     Direction = "DOWN"
	Sideways Direction = "SIDEWAYS"
)

// Directions lists the accumulator slot order.
var Directions = [3]Direction{Up, Down, Sideways}

// Index returns the accumulator slot of d, or -1.
func (d Direction) Index() int {
	for i, x := range Directions {
		if x == d {
			return i
		}
	}
	return -1
}

// ParseDirection normalizes a model label ("up", "Bullish", "DOWN"...).
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP", "BULLISH", "BUY":
		return Up, true
	case "DOWN", "BEARISH", "SELL":
		return Down, true
	case "SIDEWAYS", "NEUTRAL", "FLAT", "HOLD":
		return Sideways, true
	}
	return "", false
}

// Signal is a direction with a confidence.
type Signal struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
}

// PatternSignal is the categorical distribution returned by the pattern model.
type PatternSignal struct {
	Probabilities [3]float64 // indexed like Directions
}

// Top returns the most probable direction; ties go to the lower slot.
func (p PatternSignal) Top() Signal {
	best := 0
	for i := 1; i < len(p.Probabilities); i++ {
		if p.Probabilities[i] > p.Probabilities[best] {
			best = i
		}
	}
	return Signal{Direction: Directions[best], Confidence: p.Probabilities[best]}
}

// Sensitivity weights the pattern signal against the ensemble signal.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Valid reports whether s is one of low, medium or high.
func (s Sensitivity) Valid() bool {
	return s == SensitivityLow || s == SensitivityMedium || s == SensitivityHigh
}

// RiskLevel is one of five ordered risk bands.
type RiskLevel string

const (
	RiskLow        RiskLevel = "Low"
	RiskMediumLow  RiskLevel = "Medium-Low"
	RiskMedium     RiskLevel = "Medium"
	RiskMediumHigh RiskLevel = "Medium-High"
	RiskHigh       RiskLevel = "High"
)

// TargetLevels is the trade plan derived from a signal. Percent fields are percentages.
type TargetLevels struct {
	TakeProfit           float64   `json:"take_profit"`
	StopLoss             float64   `json:"stop_loss"`
	Support              float64   `json:"support"`
	Resistance           float64   `json:"resistance"`
	Pivot                float64   `json:"pivot"`
	RiskScore            float64   `json:"risk_score"`
	RiskLevel            RiskLevel `json:"risk_level"`
	VolumeRecommendation float64   `json:"volume_recommendation"`
}

// Features maps feature names to values.
type Features map[string]float64

// Get returns the value for key and whether it was computed.
func (f Features) Get(key string) (float64, bool) {
	v, ok := f[key]
	return v, ok
}

// GetOr returns the value for key or def.
func (f Features) GetOr(key string, def float64) float64 {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}
