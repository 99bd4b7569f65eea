package features

import (
	"fmt"
	"strings"
)

// Indicator is one selectable technical indicator.
type Indicator int

const (
	RSI Indicator = iota
	MACD
	SMA
	EMA
	Bollinger
	Stochastic
	Ichimoku
	ATR
)

// AllIndicators lists every indicator in evaluation order.
var AllIndicators = []Indicator{RSI, MACD, SMA, EMA, Bollinger, Stochastic, Ichimoku, ATR}

func (i Indicator) String() string {
	switch i {
	case RSI:
		return "RSI"
	case MACD:
		return "MACD"
	case SMA:
		return "SMA"
	case EMA:
		return "EMA"
	case Bollinger:
		return "Bollinger"
	case Stochastic:
		return "Stochastic"
	case Ichimoku:
		return "Ichimoku"
	case ATR:
		return "ATR"
	}
	return fmt.Sprintf("Indicator(%d)", int(i))
}

// MinBars is the history an indicator needs before it emits keys.
func (i Indicator) MinBars() int {
	switch i {
	case RSI, Stochastic, ATR:
		return 14
	case MACD:
		return 26
	case SMA, EMA:
		return 50
	case Bollinger:
		return 20
	case Ichimoku:
		return 52
	}
	return 0
}

// ParseIndicator accepts canonical names, case-insensitively, plus BB, STOCH and ICHI.
func ParseIndicator(s string) (Indicator, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RSI":
		return RSI, true
	case "MACD":
		return MACD, true
	case "SMA":
		return SMA, true
	case "EMA":
		return EMA, true
	case "BOLLINGER", "BB":
		return Bollinger, true
	case "STOCHASTIC", "STOCH":
		return Stochastic, true
	case "ICHIMOKU", "ICHI":
		return Ichimoku, true
	case "ATR":
		return ATR, true
	}
	return 0, false
}

// ParseIndicators parses names, dropping duplicates. Unknown names are
// skipped and reported together in the error; the known ones are still returned.
func ParseIndicators(names []string) ([]Indicator, error) {
	out := make([]Indicator, 0, len(names))
	seen := make(map[Indicator]bool, len(names))
	var unknown []string
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		ind, ok := ParseIndicator(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		if !seen[ind] {
			seen[ind] = true
			out = append(out, ind)
		}
	}
	if len(unknown) > 0 {
		return out, fmt.Errorf("unknown indicators: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// Names returns canonical names for inds.
func Names(inds []Indicator) []string {
	out := make([]string, len(inds))
	for i, ind := range inds {
		out[i] = ind.String()
	}
	return out
}
