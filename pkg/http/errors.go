package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows the HTTP status and stable code it is
// reported with. Err stays server side.
type AppError struct {
	Status  int                    `json:"-"`
	Code    string                 `json:"code"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Err     error                  `json:"-"`
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Status: status, Code: code, Field: field, Message: message}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// WithParam attaches a machine readable detail, e.g. the limit that was hit.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = map[string]interface{}{}
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError { return status(http.StatusNotFound, "ERR_NOT_FOUND", message) }
func ConflictError(message string) *AppError { return status(http.StatusConflict, "ERR_CONFLICT", message) }
func InternalError(message string) *AppError {
	return status(http.StatusInternalServerError, "ERR_INTERNAL", message)
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NotFoundError(fmt.Sprintf(format, a...))
}

// PayloadTooLargeError is always about the uploaded image.
func PayloadTooLargeError(message string) *AppError {
	e := status(http.StatusRequestEntityTooLarge, "ERR_TOO_LARGE", message)
	e.Field = "image"
	return e
}

// UnprocessableError reports input that parsed but cannot be analyzed; code
// names the reason.
func UnprocessableError(code, message string) *AppError {
	return status(http.StatusUnprocessableEntity, code, message)
}

func TooManyRequestsError(message string) *AppError {
	return status(http.StatusTooManyRequests, "ERR_RATE_LIMITED", message)
}

func TimeoutError(message string) *AppError {
	return status(http.StatusGatewayTimeout, "ERR_TIMEOUT", message)
}

func status(code int, name, message string) *AppError {
	return &AppError{Status: code, Code: name, Message: message}
}
