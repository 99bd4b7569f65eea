// Package report renders analysis results as user-facing text messages.
package report

import (
	"fmt"
	"strings"

	"ChartSignal/internal/domain/models"
	"ChartSignal/internal/domain/repository"

	"github.com/shopspring/decimal"
)

var directionEmoji = map[models.Direction]string{
	models.Up:       "📈",
	models.Down:     "📉",
	models.Sideways: "➡️",
}

var riskEmoji = map[models.RiskLevel]string{
	models.RiskLow:        "🟢",
	models.RiskMediumLow:  "🟡",
	models.RiskMedium:     "🟠",
	models.RiskMediumHigh: "🔴",
	models.RiskHigh:       "⛔",
}

// RiskEmoji returns the marker for a risk band, 🟡 for unknown bands.
func RiskEmoji(l models.RiskLevel) string {
	if e, ok := riskEmoji[l]; ok {
		return e
	}
	return "🟡"
}

// labels is one language's wording.
type labels struct {
	title, params, timeframe, indicators, model, sensitivity       string
	prediction, direction, probability, target, stop, volume        string
	deposit, risks, riskLevel, volatility, levels                   string
	volHigh, volMedium, volLow                                      string
	expires, minutes, next, note                                    string
}

var languages = map[string]labels{
	"en": {
		title: "CHART ANALYSIS", params: "PARAMETERS", timeframe: "Timeframe", indicators: "Indicators",
		model: "Model", sensitivity: "Sensitivity",
		prediction: "PREDICTION", direction: "Direction", probability: "Probability",
		target: "Take profit", stop: "Stop loss", volume: "Recommended volume", deposit: "of deposit",
		risks: "RISKS", riskLevel: "Risk level", volatility: "Volatility", levels: "TECHNICAL LEVELS",
		volHigh: "High", volMedium: "Medium", volLow: "Low",
		expires: "VALID FOR", minutes: "min", next: "NEXT ANALYSIS IN",
		note: "Automated analysis. Always do your own research before trading.",
	},
	"ru": {
		title: "АНАЛИЗ ГРАФИКА", params: "ПАРАМЕТРЫ", timeframe: "Таймфрейм", indicators: "Индикаторы",
		model: "Модель", sensitivity: "Чувствительность",
		prediction: "ПРЕДСКАЗАНИЕ", direction: "Направление", probability: "Вероятность",
		target: "Целевой уровень", stop: "Стоп-лосс", volume: "Рекомендуемый объем", deposit: "от депозита",
		risks: "РИСКИ", riskLevel: "Уровень риска", volatility: "Волатильность", levels: "ТЕХНИЧЕСКИЕ УРОВНИ",
		volHigh: "Высокая", volMedium: "Средняя", volLow: "Низкая",
		expires: "СРОК ДЕЙСТВИЯ", minutes: "мин", next: "СЛЕДУЮЩИЙ АНАЛИЗ ЧЕРЕЗ",
		note: "Это автоматический анализ. Всегда проводите собственный анализ перед принятием торговых решений.",
	},
}

// Formatter renders results in one default language.
type Formatter struct {
	lang string
}

// NewFormatter returns a formatter; unknown languages fall back to English.
func NewFormatter(lang string) *Formatter {
	if _, ok := languages[lang]; !ok {
		lang = "en"
	}
	return &Formatter{lang: lang}
}

// Render formats r for the formatter's language. An empty id renders as #NEW.
func (f *Formatter) Render(id string, r *models.AnalysisResult) string {
	return f.RenderIn(f.lang, id, r)
}

// RenderIn formats r for lang, falling back to the formatter's language.
func (f *Formatter) RenderIn(lang, id string, r *models.AnalysisResult) string {
	l, ok := languages[lang]
	if !ok {
		l = languages[f.lang]
	}
	if id == "" {
		id = "NEW"
	}
	tf := repository.Timeframe(r.Timeframe)
	indicators := strings.Join(r.Indicators, ", ")
	if indicators == "" {
		indicators = "-"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 %s #%s\n\n", l.title, id)

	fmt.Fprintf(&b, "📊 %s:\n", l.params)
	fmt.Fprintf(&b, "• %s: %s\n", l.timeframe, r.Timeframe)
	fmt.Fprintf(&b, "• %s: %s\n", l.indicators, indicators)
	fmt.Fprintf(&b, "• %s: %s\n", l.model, sourceLabel(r.Source))
	fmt.Fprintf(&b, "• %s: %s\n\n", l.sensitivity, capitalize(string(r.Sensitivity)))

	fmt.Fprintf(&b, "📈 %s:\n", l.prediction)
	fmt.Fprintf(&b, "• %s: %s %s\n", l.direction, r.Direction, directionEmoji[r.Direction])
	fmt.Fprintf(&b, "• %s: %s%%\n", l.probability, Percent(r.Confidence))
	fmt.Fprintf(&b, "• %s: +%s%%\n", l.target, Round2(r.TakeProfit))
	fmt.Fprintf(&b, "• %s: -%s%%\n", l.stop, Round2(r.StopLoss))
	fmt.Fprintf(&b, "• %s: %s%% %s\n\n", l.volume, Round2(r.VolumeRecommendation), l.deposit)

	fmt.Fprintf(&b, "⚠️ %s:\n", l.risks)
	fmt.Fprintf(&b, "• %s: %s %s (%s)\n", l.riskLevel, RiskEmoji(r.RiskLevel), r.RiskLevel, Round2(r.RiskScore))
	fmt.Fprintf(&b, "• %s: %s\n\n", l.volatility, volatilityLabel(l, r.Features))

	fmt.Fprintf(&b, "📊 %s:\n", l.levels)
	fmt.Fprintf(&b, "• Support: %s\n", Round2(r.Support))
	fmt.Fprintf(&b, "• Resistance: %s\n", Round2(r.Resistance))
	fmt.Fprintf(&b, "• Pivot: %s\n\n", Round2(r.Pivot))

	fmt.Fprintf(&b, "⏰ %s: %d %s\n", l.expires, tf.ExpirationMinutes(), l.minutes)
	fmt.Fprintf(&b, "🔄 %s: %d %s\n\n", l.next, tf.NextAnalysisMinutes(), l.minutes)
	fmt.Fprintf(&b, "📝 %s", l.note)
	return b.String()
}

// Round2 renders v with exactly two decimals, rounding half away from zero.
func Round2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Percent renders a [0,1] ratio as a percentage with one decimal.
func Percent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func volatilityLabel(l labels, f models.Features) string {
	atr := f.GetOr("atr_pct", 1)
	switch {
	case atr > 2:
		return l.volHigh
	case atr > 1:
		return l.volMedium
	}
	return l.volLow
}

func sourceLabel(s models.SignalSource) string {
	switch s {
	case models.SourceCombined:
		return "CNN + Ensemble"
	case models.SourcePatternOnly:
		return "CNN"
	case models.SourceEnsembleOnly:
		return "Ensemble"
	}
	return "Neutral"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
