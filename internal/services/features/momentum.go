package features

// RSIValue is Wilder's relative strength index of closes. The seed averages
// the first min(period, n-1) changes; later changes are smoothed with 1/period.
// A series with no movement reads 50.
func RSIValue(closes []float64, period int) float64 {
	if len(closes) < 2 || period <= 0 {
		return 50
	}
	deltas := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		deltas[i-1] = closes[i] - closes[i-1]
	}
	seed := period
	if seed > len(deltas) {
		seed = len(deltas)
	}
	var up, down float64
	for _, d := range deltas[:seed] {
		if d >= 0 {
			up += d
		} else {
			down -= d
		}
	}
	up /= float64(seed)
	down /= float64(seed)

	p := float64(period)
	for _, d := range deltas[seed:] {
		if d >= 0 {
			up = (up*(p-1) + d) / p
			down = down * (p - 1) / p
		} else {
			up = up * (p - 1) / p
			down = (down*(p-1) - d) / p
		}
	}
	switch {
	case down == 0 && up == 0:
		return 50
	case down == 0:
		return 100
	}
	return 100 - 100/(1+up/down)
}

// emaSeries is an exponential average seeded with the first value.
func emaSeries(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	alpha := 2 / float64(period+1)
	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = data[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// MACDValue returns the last MACD line, signal and histogram values.
func MACDValue(closes []float64, fast, slow, signal int) (line, sig, hist float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	ef := emaSeries(closes, fast)
	es := emaSeries(closes, slow)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = ef[i] - es[i]
	}
	sigs := emaSeries(macd, signal)
	line = last(macd)
	sig = last(sigs)
	return line, sig, line - sig
}
