package http

import (
	"strings"
	"time"

	"ChartSignal/pkg/util"
)

// ParseTimeDefault parses a query time with util.ParseTime, or returns def.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := util.ParseTime(s); ok {
		return t
	}
	return def
}

// SplitList splits a comma separated form value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
