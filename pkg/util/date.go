package util

import (
	"strconv"
	"time"
)

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly}

// ParseTime accepts RFC3339 (with or without fraction), "2006-01-02 15:04:05",
// a bare date, or positive unix seconds. Layouts without a zone are UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), true
	}
	return time.Time{}, false
}
