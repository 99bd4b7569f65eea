package features

import (
	"math"

	"github.com/markcheno/go-talib"
)

const (
	stochOverbought = 80
	stochOversold   = 20
)

// compute dispatches one indicator. Callers check MinBars first.
func compute(ind Indicator, s *series, f map[string]float64) {
	switch ind {
	case RSI:
		put(f, "rsi", RSIValue(s.close, 14))
	case MACD:
		line, sig, hist := MACDValue(s.close, 12, 26, 9)
		put(f, "macd", line)
		put(f, "macd_signal", sig)
		put(f, "macd_hist", hist)
	case SMA:
		crossover(f, "sma_20", "sma_50", "sma_cross", talib.Sma(s.close, 20), talib.Sma(s.close, 50))
	case EMA:
		crossover(f, "ema_12", "ema_26", "ema_cross", talib.Ema(s.close, 12), talib.Ema(s.close, 26))
	case Bollinger:
		bollinger(s, f)
	case Stochastic:
		stochastic(s, f)
	case Ichimoku:
		ichimoku(s, f)
	case ATR:
		atr(s, f)
	}
}

// crossover stores the last fast and slow averages and the sign of their spread.
func crossover(f map[string]float64, fastKey, slowKey, crossKey string, fastSeries, slowSeries []float64) {
	fast, slow := last(fastSeries), last(slowSeries)
	put(f, fastKey, fast)
	put(f, slowKey, slow)
	put(f, crossKey, sign(fast-slow))
}

func bollinger(s *series, f map[string]float64) {
	upperS, middleS, lowerS := talib.BBands(s.close, 20, 2, 2, talib.SMA)
	upper, middle, lower := last(upperS), last(middleS), last(lowerS)
	put(f, "bb_upper", upper)
	put(f, "bb_middle", middle)
	put(f, "bb_lower", lower)
	if middle != 0 {
		put(f, "bb_width", (upper-lower)/middle)
	}
	if upper > lower {
		put(f, "bb_position", (s.lastClose()-lower)/(upper-lower))
	} else {
		put(f, "bb_position", 0.5)
	}
}

// stochastic emits the 14-bar %K and its 3-bar simple average %D.
func stochastic(s *series, f map[string]float64) {
	const period = 14
	hh := talib.Max(s.high, period)
	ll := talib.Min(s.low, period)
	var ks []float64
	for i := period - 1; i < s.len(); i++ {
		k := 50.0
		if rng := hh[i] - ll[i]; rng > 0 {
			k = (s.close[i] - ll[i]) / rng * 100
		}
		ks = append(ks, k)
	}
	k := last(ks)
	put(f, "stoch_k", k)
	put(f, "stoch_d", mean(tail(ks, 3)))
	put(f, "stoch_overbought", boolFloat(k > stochOverbought))
	put(f, "stoch_oversold", boolFloat(k < stochOversold))
}

func ichimoku(s *series, f map[string]float64) {
	mid := func(period int) float64 {
		return (last(talib.Max(s.high, period)) + last(talib.Min(s.low, period))) / 2
	}
	tenkan := mid(9)
	kijun := mid(26)
	spanA := (tenkan + kijun) / 2
	spanB := mid(52)
	put(f, "tenkan", tenkan)
	put(f, "kijun", kijun)
	put(f, "senkou_a", spanA)
	put(f, "senkou_b", spanB)

	c := s.lastClose()
	pos := 0.0
	switch {
	case c > math.Max(spanA, spanB):
		pos = 1
	case c < math.Min(spanA, spanB):
		pos = -1
	}
	put(f, "cloud_position", pos)
}

// atr is the simple mean of the last 14 true ranges; the first bar uses high-low.
func atr(s *series, f map[string]float64) {
	const period = 14
	tr := talib.TRange(s.high, s.low, s.close)
	if len(tr) > 0 {
		tr[0] = s.high[0] - s.low[0]
	}
	v := mean(tail(tr, period))
	put(f, "atr", v)
	if c := s.lastClose(); c > 0 {
		put(f, "atr_pct", v/c*100)
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
