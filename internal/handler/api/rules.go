package api

import (
	domrepo "ChartSignal/internal/domain/repository"
	xhttp "ChartSignal/pkg/http"
)

func init() {
	xhttp.RegisterRule("timeframe", "a supported timeframe (1m 5m 15m 30m 1h 4h 1d)", func(s string) bool {
		return domrepo.IsValidTimeframe(domrepo.Timeframe(s))
	})
}
