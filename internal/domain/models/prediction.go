package models

import "time"

// AnalysisSettings is the per-request pipeline configuration.
type AnalysisSettings struct {
	Timeframe   string      `json:"timeframe"`
	Indicators  []string    `json:"indicators"`
	Sensitivity Sensitivity `json:"sensitivity"`
}

// SignalSource tells which inference outputs contributed to the final call.
type SignalSource string

const (
	SourceCombined     SignalSource = "combined"
	SourcePatternOnly  SignalSource = "pattern_only"
	SourceEnsembleOnly SignalSource = "ensemble_only"
	SourceNeutral      SignalSource = "neutral"
)

// AnalysisResult is the pipeline output handed to persistence and presentation.
type AnalysisResult struct {
	Direction   Direction    `json:"direction"`
	Confidence  float64      `json:"confidence"`
	Source      SignalSource `json:"signal_source"`
	CandleCount int          `json:"candle_count"`
	TargetLevels
	Timeframe   string      `json:"timeframe"`
	Indicators  []string    `json:"indicators"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Features    Features    `json:"features"`
}

// Prediction is a persisted analysis result.
type Prediction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	Result    AnalysisResult  `json:"result"`
	Feedback  *FeedbackResult `json:"feedback,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// FeedbackResult is the user's verdict on a prediction.
type FeedbackResult string

const (
	FeedbackCorrect   FeedbackResult = "correct"
	FeedbackIncorrect FeedbackResult = "incorrect"
	FeedbackPartial   FeedbackResult = "partial"
)

// Valid reports whether f is a known verdict.
func (f FeedbackResult) Valid() bool {
	switch f {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackPartial:
		return true
	}
	return false
}

// UserSettings are the stored preferences of one user.
type UserSettings struct {
	UserID        string      `json:"user_id"`
	Timeframe     string      `json:"timeframe"`
	Indicators    []string    `json:"indicators"`
	Sensitivity   Sensitivity `json:"sensitivity"`
	Language      string      `json:"language"`
	Notifications bool        `json:"notifications"`
}

// Statistics aggregates service-wide counters.
type Statistics struct {
	TotalPredictions   int64   `json:"total_predictions"`
	CorrectPredictions int64   `json:"correct_predictions"`
	Accuracy           float64 `json:"accuracy"`
	TotalUsers         int64   `json:"total_users"`
	DailyRequests      int64   `json:"daily_requests"`
}

// PredictionEvent is published for every stored prediction.
type PredictionEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Direction   Direction `json:"direction"`
	Confidence  float64   `json:"confidence"`
	Timeframe   string    `json:"timeframe"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Features    Features  `json:"features"`
	CreatedAt   time.Time `json:"created_at"`
	CandleCount int       `json:"candle_count"`
}

// FeedbackEvent is published when a user rates a prediction.
type FeedbackEvent struct {
	PredictionID string         `json:"prediction_id"`
	Result       FeedbackResult `json:"result"`
	At           time.Time      `json:"at"`
}
