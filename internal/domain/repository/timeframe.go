package repository

// Timeframe is the chart bar duration selected by the user.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

type timeframeSpec struct {
	multiplier  float64
	expiration  int // minutes a prediction stays relevant
	nextAnalyze int // minutes until a fresh chart is worth analyzing
}

var timeframes = map[Timeframe]timeframeSpec{
	TF1m:  {0.5, 5, 1},
	TF5m:  {1.0, 15, 5},
	TF15m: {1.5, 45, 15},
	TF30m: {2.0, 90, 30},
	TF1h:  {2.5, 180, 60},
	TF4h:  {3.0, 720, 240},
	TF1d:  {4.0, 1440, 1440},
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframes[tf]
	return ok
}

// Multiplier scales target magnitudes with bar duration. Unknown codes get 1.0.
func (tf Timeframe) Multiplier() float64 {
	if s, ok := timeframes[tf]; ok {
		return s.multiplier
	}
	return 1.0
}

// ExpirationMinutes is how long a prediction on tf stays actionable.
func (tf Timeframe) ExpirationMinutes() int {
	if s, ok := timeframes[tf]; ok {
		return s.expiration
	}
	return 15
}

// NextAnalysisMinutes is the suggested delay before re-analyzing.
func (tf Timeframe) NextAnalysisMinutes() int {
	if s, ok := timeframes[tf]; ok {
		return s.nextAnalyze
	}
	return 5
}
