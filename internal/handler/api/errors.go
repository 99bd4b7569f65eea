package api

import (
	"context"
	"errors"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	"ChartSignal/internal/usecase"
	xhttp "ChartSignal/pkg/http"
)

// toAppError maps use case errors onto HTTP errors. Unknown errors become 500.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var nac *models.NotAChartError
	var ic *models.InsufficientCandlesError
	switch {
	case errors.Is(err, models.ErrDecode):
		return xhttp.NewAppError("ERR_DECODE", "image", "image could not be decoded", 400).WithError(err)
	case errors.As(err, &nac):
		return xhttp.UnprocessableError("ERR_NOT_A_CHART", "image does not look like a price chart").
			WithParam("horizontal_lines", nac.Horizontal).
			WithParam("vertical_lines", nac.Vertical).
			WithError(err)
	case errors.As(err, &ic):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_CANDLES", "not enough candles detected").
			WithParam("found", ic.Found).
			WithParam("required", ic.Required).
			WithError(err)
	case errors.Is(err, usecase.ErrImageTooLarge):
		return xhttp.PayloadTooLargeError("image exceeds the size limit").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.TimeoutError("analysis timed out").WithError(err)
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundError("prediction not found").WithError(err)
	case errors.Is(err, domrepo.ErrFeedbackExists):
		return xhttp.ConflictError("feedback already recorded").WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}
