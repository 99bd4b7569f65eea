package targets

import (
	"math"
	"testing"

	"ChartSignal/internal/domain/models"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

func TestUpOnFiveMinutesWithoutATR(t *testing.T) {
	lv := NewCalculator().Calculate(models.Up, 0.8, models.Features{"rsi": 50}, "5m")
	if !approx(lv.TakeProfit, 1.212) || !approx(lv.StopLoss, 0.4848) {
		t.Fatalf("tp/sl %v/%v", lv.TakeProfit, lv.StopLoss)
	}
	if !approx(lv.Support, 98.99) || !approx(lv.Resistance, 102.02) {
		t.Errorf("levels %v/%v", lv.Support, lv.Resistance)
	}
	if !(lv.Support <= lv.Pivot && lv.Pivot <= lv.Resistance) {
		t.Errorf("pivot outside band: %+v", lv)
	}
	if !approx(lv.VolumeRecommendation, 1.6) {
		t.Errorf("volume %v", lv.VolumeRecommendation)
	}
}

func TestDownMirrorsBand(t *testing.T) {
	c := NewCalculator()
	up := c.Calculate(models.Up, 0.7, models.Features{}, "1h")
	down := c.Calculate(models.Down, 0.7, models.Features{}, "1h")
	if up.TakeProfit != down.TakeProfit || up.StopLoss != down.StopLoss {
		t.Errorf("up and down should share tp/sl")
	}
	if !approx(100-down.Support, up.Resistance-100) || !approx(down.Resistance-100, 100-up.Support) {
		t.Errorf("band not mirrored: up %+v down %+v", up, down)
	}
}

func TestSidewaysUsesATRBand(t *testing.T) {
	lv := NewCalculator().Calculate(models.Sideways, 0.5, models.Features{"atr_pct": 2}, "15m")
	// m = 1.5, vol = 0.02
	if !approx(lv.TakeProfit, 0.5*1.5*1.02) || !approx(lv.StopLoss, 0.3*1.5*1.02) {
		t.Errorf("tp/sl %v/%v", lv.TakeProfit, lv.StopLoss)
	}
	band := 0.02 * 1.5 * 1.02 * 100
	if !approx(lv.Resistance-100, band) || !approx(100-lv.Support, band) {
		t.Errorf("band %v/%v want %v", lv.Support, lv.Resistance, band)
	}
	if !approx(lv.Pivot, 100) {
		t.Errorf("symmetric band pivot %v", lv.Pivot)
	}
}

func TestUnknownTimeframeUsesUnitMultiplier(t *testing.T) {
	c := NewCalculator()
	a := c.Calculate(models.Up, 0.6, models.Features{}, "3w")
	b := c.Calculate(models.Up, 0.6, models.Features{}, "5m")
	if a != b {
		t.Errorf("unknown timeframe differs from 5m: %+v vs %+v", a, b)
	}
}

func TestRiskBands(t *testing.T) {
	cases := []struct {
		conf, vol float64
		want      models.RiskLevel
	}{
		{0.9, 0.01, models.RiskLow},
		{0.3, 0.05, models.RiskMediumHigh},
		{0.5, 0.01, models.RiskMediumLow},
		{0.3, 0.01, models.RiskMedium},
		{0.0, 0.05, models.RiskHigh},
	}
	for _, tc := range cases {
		if got := RiskBand(RiskScore(tc.conf, tc.vol)); got != tc.want {
			t.Errorf("conf %v vol %v: got %s want %s", tc.conf, tc.vol, got, tc.want)
		}
	}
	if s := RiskScore(0.3, 0.05); !approx(s, 4.0) {
		t.Errorf("score %v", s)
	}
}

func TestRiskBandIsMonotonic(t *testing.T) {
	order := map[models.RiskLevel]int{
		models.RiskLow: 0, models.RiskMediumLow: 1, models.RiskMedium: 2, models.RiskMediumHigh: 3, models.RiskHigh: 4,
	}
	prev := -1
	for s := 0.0; s <= 7; s += 0.05 {
		cur := order[RiskBand(s)]
		if cur < prev {
			t.Fatalf("band dropped at %v", s)
		}
		prev = cur
	}
}

func TestVolumeRecommendationDamping(t *testing.T) {
	if v := VolumeRecommendation(0.8, 0.01, models.Features{"rsi": 75}); !approx(v, 0.8) {
		t.Errorf("overbought volume %v", v)
	}
	if v := VolumeRecommendation(0.8, 0.05, models.Features{"rsi": 20}); !approx(v, 0.56) {
		t.Errorf("oversold volatile volume %v", v)
	}
	if v := VolumeRecommendation(0.5, 0.02, models.Features{}); !approx(v, 1.0) {
		t.Errorf("plain volume %v", v)
	}
}

func TestReferencePriceOption(t *testing.T) {
	lv := NewCalculator(WithReferencePrice(50)).Calculate(models.Up, 0.8, models.Features{}, "5m")
	if !approx(lv.Support, 49.495) || !approx(lv.Resistance, 51.01) {
		t.Errorf("levels around 50: %v %v", lv.Support, lv.Resistance)
	}
}
