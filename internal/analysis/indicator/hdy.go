package indicator

import (
	"github.com/markcheno/go-talib"

	"hdytrend/internal/market"
)

const (
	// HDYLookback 是 HDY 取高低点的窗口长度。
	HDYLookback = 34
	// HDYSmoothing 是递推平滑常数 M。
	HDYSmoothing = 3
	// HDYNeutral 是历史不足或区间为平时的中性值。
	HDYNeutral = 50.0
)

// HDY 计算有界 [0,100] 的 HDY 振荡指标，结果保留 2 位小数。
//
// 前 HDYLookback 个位置固定为 50。之后 rsv 取收盘价在最近 HDYLookback 根
// bar 高低区间中的位置（缺失的 high/low 按 0 处理），再按
// ema = (2*rsv + (M-1)*ema_prev) / (M+1) 递推，种子为 50。
func HDY(bars []market.Bar) []float64 {
	n := len(bars)
	out := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	// validHighs[i] 为 [0,i) 内带有效 high 的 bar 数。
	validHighs := make([]int, n+1)
	for i, b := range bars {
		h, ok := b.Value(market.FieldHigh)
		if ok {
			highs[i] = h
			validHighs[i+1] = validHighs[i] + 1
		} else {
			validHighs[i+1] = validHighs[i]
		}
		if l, ok := b.Value(market.FieldLow); ok {
			lows[i] = l
		}
	}

	var maxHigh, minLow []float64
	if n > HDYLookback {
		maxHigh = talib.Max(highs, HDYLookback)
		minLow = talib.Min(lows, HDYLookback)
	}

	ema := HDYNeutral
	for i := 0; i < n; i++ {
		if i < HDYLookback {
			out[i] = HDYNeutral
			continue
		}
		rsv := HDYNeutral
		hi, lo := maxHigh[i], minLow[i]
		sawHigh := validHighs[i+1]-validHighs[i+1-HDYLookback] > 0
		closePx, closeOK := bars[i].Value(market.FieldClose)
		if sawHigh && closeOK && hi != lo {
			rsv = clamp((closePx-lo)/(hi-lo)*100, 0, 100)
		}
		ema = (2*rsv + (HDYSmoothing-1)*ema) / (HDYSmoothing + 1)
		out[i] = Round(ema, 2)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
