package api

import (
	"io"
	"net/http"
	"time"

	"ChartSignal/internal/domain/models"
	"ChartSignal/internal/usecase"
	xhttp "ChartSignal/pkg/http"
	applogger "ChartSignal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ChartHandler serves analysis, predictions, feedback, history, settings and stats.
type ChartHandler struct {
	logger        *applogger.Logger
	svc           *usecase.AnalysisService
	maxImageBytes int64
	analyzeMW     []echo.MiddlewareFunc
}

// NewChartHandler wires the handler. analyzeMW wraps POST /api/analyze only.
func NewChartHandler(logger *applogger.Logger, svc *usecase.AnalysisService, maxImageBytes int64, analyzeMW ...echo.MiddlewareFunc) *ChartHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &ChartHandler{logger: logger, svc: svc, maxImageBytes: maxImageBytes, analyzeMW: analyzeMW}
}

func (h *ChartHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/analyze", h.Analyze, h.analyzeMW...)
	g.GET("/predictions/:id", h.GetPrediction)
	g.POST("/predictions/:id/feedback", h.Feedback)
	g.GET("/users/:user_id/predictions", h.History)
	g.GET("/users/:user_id/settings", h.GetSettings)
	g.PUT("/users/:user_id/settings", h.PutSettings)
	g.GET("/stats", h.Stats)
}

func (h *ChartHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

type textResult struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Analyze accepts a multipart upload with the chart in field "image".
func (h *ChartHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{Format: c.QueryParam("format")}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_REQUIRED", "image", "image file is required", http.StatusBadRequest))
	}
	if h.maxImageBytes > 0 && fh.Size > h.maxImageBytes {
		return xhttp.AppErrorResponse(c, xhttp.PayloadTooLargeError("image exceeds the size limit").
			WithParam("limit", h.maxImageBytes))
	}
	f, err := fh.Open()
	if err != nil {
		return h.fail(c, "analyze.open", err)
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		return h.fail(c, "analyze.read", err)
	}

	p, err := h.svc.Analyze(c.Request().Context(), usecase.AnalyzeInput{
		UserID: req.UserID,
		Image:  image,
		Settings: models.AnalysisSettings{
			Timeframe:   req.Timeframe,
			Indicators:  xhttp.SplitList(req.Indicators),
			Sensitivity: models.Sensitivity(req.Sensitivity),
		},
	})
	if err != nil {
		return h.fail(c, "analyze", err)
	}

	if req.Format == "text" {
		return xhttp.CreatedResponse(c, textResult{ID: p.ID, Message: p.Message})
	}
	return xhttp.CreatedResponse(c, p)
}

func (h *ChartHandler) GetPrediction(c echo.Context) error {
	p, err := h.svc.GetPrediction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get_prediction", err)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *ChartHandler) Feedback(c echo.Context) error {
	req := &models.FeedbackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	e, err := h.svc.SubmitFeedback(c.Request().Context(), req.ID, models.FeedbackResult(req.Result))
	if err != nil {
		return h.fail(c, "feedback", err)
	}
	return xhttp.CreatedResponse(c, e)
}

func (h *ChartHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since := xhttp.ParseTimeDefault(req.Since, time.Time{})
	rows, err := h.svc.History(c.Request().Context(), req.UserID, since, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ChartHandler) GetSettings(c echo.Context) error {
	us, err := h.svc.Settings(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return h.fail(c, "get_settings", err)
	}
	return xhttp.SuccessResponse(c, us)
}

func (h *ChartHandler) PutSettings(c echo.Context) error {
	req := &models.SettingsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	notify := true
	if req.Notifications != nil {
		notify = *req.Notifications
	}
	us := &models.UserSettings{
		UserID:        req.UserID,
		Timeframe:     req.Timeframe,
		Indicators:    req.Indicators,
		Sensitivity:   models.Sensitivity(req.Sensitivity),
		Language:      req.Language,
		Notifications: notify,
	}
	if err := h.svc.UpdateSettings(c.Request().Context(), us); err != nil {
		return h.fail(c, "put_settings", err)
	}
	return xhttp.SuccessResponse(c, us)
}

func (h *ChartHandler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return h.fail(c, "stats", err)
	}
	return xhttp.SuccessResponse(c, st)
}
