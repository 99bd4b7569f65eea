package models

import (
	"errors"
	"fmt"
)

var (
	ErrDecode              = errors.New("image decode failed")
	ErrNotAChart           = errors.New("image is not a chart")
	ErrInsufficientCandles = errors.New("not enough candles detected")
)

// DecodeError reports bytes that are not a supported raster image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrDecode, e.Err)
	}
	return ErrDecode.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NotAChartError reports an image without enough grid lines.
type NotAChartError struct {
	Horizontal int
	Vertical   int
}

func (e *NotAChartError) Error() string {
	return fmt.Sprintf("%v: found %d horizontal and %d vertical lines", ErrNotAChart, e.Horizontal, e.Vertical)
}

func (e *NotAChartError) Is(target error) bool { return target == ErrNotAChart }

// InsufficientCandlesError reports a detection with too few candles to analyze.
type InsufficientCandlesError struct {
	Found    int
	Required int
}

func (e *InsufficientCandlesError) Error() string {
	return fmt.Sprintf("%v: found %d, need at least %d", ErrInsufficientCandles, e.Found, e.Required)
}

func (e *InsufficientCandlesError) Is(target error) bool { return target == ErrInsufficientCandles }
