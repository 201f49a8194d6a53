// Package analysis joins synced bars, indicators and the backtest into the
// per-symbol report consumed by the display layer.
package analysis

import (
	"hdytrend/internal/analysis/indicator"
	"hdytrend/internal/market"
)

// 收盘价均线的固定周期。
var closeWindows = [...]int{5, 10, 20, 60}

// EnrichedBar 把 bar 与同一下标上的全部指标放在一条记录里。
type EnrichedBar struct {
	market.Bar `yaml:",inline"`

	MA5           indicator.Value `json:"ma5" yaml:"ma5"`
	MA10          indicator.Value `json:"ma10" yaml:"ma10"`
	MA20          indicator.Value `json:"ma20" yaml:"ma20"`
	MA60          indicator.Value `json:"ma60" yaml:"ma60"`
	VolumeMAShort indicator.Value `json:"volume_ma_short" yaml:"volume_ma_short"`
	VolumeMALong  indicator.Value `json:"volume_ma_long" yaml:"volume_ma_long"`
	HDY           float64         `json:"hdy" yaml:"hdy"`
	HDYZone       string          `json:"hdy_zone" yaml:"hdy_zone"`
}

// Enriched 是 Enrich 的输出；VolumeShort/VolumeLong 供回测直接复用。
type Enriched struct {
	Bars        []EnrichedBar
	VolumeShort indicator.Series
	VolumeLong  indicator.Series
}

// Enrich 计算全部指标并按下标合并。shortWindow/longWindow 为成交量均线周期。
func Enrich(bars []market.Bar, shortWindow, longWindow int) Enriched {
	closeMA := make([]indicator.Series, len(closeWindows))
	for i, w := range closeWindows {
		closeMA[i] = indicator.MovingAverage(w, bars, market.FieldClose)
	}
	volShort := indicator.MovingAverage(shortWindow, bars, market.FieldVolume)
	volLong := indicator.MovingAverage(longWindow, bars, market.FieldVolume)
	hdy := indicator.HDY(bars)

	out := make([]EnrichedBar, len(bars))
	for i, b := range bars {
		out[i] = EnrichedBar{
			Bar:           b,
			MA5:           closeMA[0][i],
			MA10:          closeMA[1][i],
			MA20:          closeMA[2][i],
			MA60:          closeMA[3][i],
			VolumeMAShort: volShort[i],
			VolumeMALong:  volLong[i],
			HDY:           hdy[i],
			HDYZone:       indicator.Zone(hdy[i]),
		}
	}
	return Enriched{Bars: out, VolumeShort: volShort, VolumeLong: volLong}
}
