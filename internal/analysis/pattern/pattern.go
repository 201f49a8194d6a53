package pattern

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"hdytrend/internal/analysis/indicator"
	"hdytrend/internal/market"
)

// DefaultLookback 是趋势拟合默认使用的最近 bar 数。
const DefaultLookback = 60

// Trend 概括最近一段收盘价的方向与波动。
type Trend struct {
	Lookback      int     `json:"lookback" yaml:"lookback"`
	Slope         float64 `json:"slope" yaml:"slope"`
	AngleDeg      float64 `json:"angle_deg" yaml:"angle_deg"`
	DeviationPct  float64 `json:"deviation_pct" yaml:"deviation_pct"`
	VolatilityPct float64 `json:"volatility_pct" yaml:"volatility_pct"`
	Bias          string  `json:"bias" yaml:"bias"`
	Summary       string  `json:"summary" yaml:"summary"`
}

// Analyze 对最近 lookback 根 bar 的收盘价做线性回归，并用日收益率标准差衡量波动。
func Analyze(bars []market.Bar, lookback int) Trend {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if v, ok := b.Value(market.FieldClose); ok {
			closes = append(closes, v)
		}
	}
	if len(closes) < 2 {
		return Trend{Lookback: len(closes), Bias: "balanced", Summary: "数据不足，无趋势"}
	}
	slope, intercept := fitLine(closes)
	last := closes[len(closes)-1]
	ref := intercept + slope*float64(len(closes)-1)
	t := Trend{
		Lookback: len(closes),
		Slope:    indicator.Round(slope, 6),
		AngleDeg: indicator.Round(math.Atan(slope)*180/math.Pi, 2),
		Bias:     classifySlope(slope, closes),
	}
	if ref != 0 {
		t.DeviationPct = indicator.Round((last-ref)/ref*100, 2)
	}
	t.VolatilityPct = indicator.Round(returnVolatility(closes)*100, 2)
	t.Summary = fmt.Sprintf("线性回归斜率=%.6f(%.2f°)，收盘价较基线偏移%.2f%%，日波动%.2f%%",
		t.Slope, t.AngleDeg, t.DeviationPct, t.VolatilityPct)
	return t
}

func fitLine(series []float64) (slope, intercept float64) {
	if len(series) == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(series))
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, series[len(series)-1]
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return
}

// classifySlope 按斜率相对均价的比例判断方向，避免价格量级影响阈值。
func classifySlope(slope float64, closes []float64) string {
	mean, err := stats.Mean(closes)
	if err != nil || mean == 0 {
		return "balanced"
	}
	rel := slope / math.Abs(mean)
	const threshold = 0.0001
	switch {
	case rel > threshold:
		return "bullish"
	case rel < -threshold:
		return "bearish"
	default:
		return "balanced"
	}
}

func returnVolatility(closes []float64) float64 {
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, closes[i]/closes[i-1]-1)
	}
	if len(rets) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(rets)
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	return sd
}
