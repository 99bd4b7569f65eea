package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler is a route group mounted by NewServer.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// APIResponse is the body of every JSON reply. RequestID echoes the
// X-Request-ID header so a client can quote it when reporting a bad signal.
type APIResponse struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse wraps a page of rows.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

// DataResponse writes data at statusCode inside the envelope.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:    statusCode,
		Message:   http.StatusText(statusCode),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		Data:      data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusCreated, data)
}

func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return SuccessResponse(c, &ListDataResponse{Rows: rows, Total: total})
}

// BadRequestResponse writes the validation errors from ReadAndValidateRequest.
func BadRequestResponse(c echo.Context, verr interface{}) error {
	return DataResponse(c, http.StatusBadRequest, verr)
}

// AppErrorResponse writes err at its own status. Anything that is not an
// AppError is reported as a bare 500 so internals do not leak.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("internal error")
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
