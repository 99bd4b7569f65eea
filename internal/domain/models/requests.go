package models

// Requests for the HTTP and async endpoints.

type AnalyzeRequest struct {
	UserID      string `query:"user_id" form:"user_id" json:"user_id"`
	Timeframe   string `query:"timeframe" form:"timeframe" json:"timeframe" validate:"omitempty,timeframe"`
	Sensitivity string `query:"sensitivity" form:"sensitivity" json:"sensitivity" validate:"omitempty,oneof=low medium high"`
	Indicators  string `query:"indicators" form:"indicators" json:"indicators" validate:"omitempty,max=200"`
	Format      string `query:"format" json:"format" default:"json" validate:"oneof=json text"`
}

type FeedbackRequest struct {
	ID     string `param:"id" validate:"required"`
	Result string `json:"result" validate:"required,oneof=correct incorrect partial"`
}

type SettingsRequest struct {
	UserID        string   `param:"user_id" validate:"required"`
	Timeframe     string   `json:"timeframe" default:"5m" validate:"timeframe"`
	Indicators    []string `json:"indicators" validate:"max=8,dive,required"`
	Sensitivity   string   `json:"sensitivity" default:"medium" validate:"oneof=low medium high"`
	Language      string   `json:"language" default:"ru" validate:"oneof=ru en es zh"`
	Notifications *bool    `json:"notifications"`
}

type HistoryRequest struct {
	UserID string `param:"user_id" validate:"required"`
	Since  string `query:"since"`
	Limit  int    `query:"limit" default:"10" validate:"gte=1,lte=100"`
}

// AnalysisJob is the payload of an async analysis request message.
type AnalysisJob struct {
	RequestID   string           `json:"request_id"`
	UserID      string           `json:"user_id"`
	ImageBase64 string           `json:"image_base64"`
	Settings    AnalysisSettings `json:"settings"`
}

// AnalysisJobResult is published for every processed AnalysisJob.
type AnalysisJobResult struct {
	RequestID    string          `json:"request_id"`
	PredictionID string          `json:"prediction_id,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
}
