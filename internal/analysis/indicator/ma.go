package indicator

import (
	"github.com/shopspring/decimal"

	"hdytrend/internal/market"
)

// MovingAverage 计算 field 的 window 期简单移动平均，结果保留 4 位小数。
//
// 输出长度与 bars 相同；下标 < window-1 的位置不可用。窗口内出现缺失值
// （例如 Aux 为空）时该位置同样不可用。window<=0 时整列不可用。
// 窗口和用 decimal 精确累加，成交量在 1e9 量级时 4 位小数也与逐项求均值一致。
func MovingAverage(window int, bars []market.Bar, field market.Field) Series {
	out := make(Series, len(bars))
	if window <= 0 || len(bars) < window {
		return out
	}
	values := make([]float64, len(bars))
	// missing[i] 为 [0,i) 区间内缺失值个数的前缀和。
	missing := make([]int, len(bars)+1)
	for i, b := range bars {
		v, ok := b.Value(field)
		if !ok {
			v = 0
			missing[i+1] = missing[i] + 1
		} else {
			missing[i+1] = missing[i]
		}
		values[i] = v
	}
	if window == 1 {
		for i, v := range values {
			if missing[i+1] == missing[i] {
				out[i] = Some(Round(v, 4))
			}
		}
		return out
	}
	n := decimal.NewFromInt(int64(window))
	sum := decimal.Zero
	for i, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
		if i >= window {
			sum = sum.Sub(decimal.NewFromFloat(values[i-window]))
		}
		if i < window-1 || missing[i+1]-missing[i+1-window] > 0 {
			continue
		}
		f, _ := sum.DivRound(n, 4).Float64()
		out[i] = Some(f)
	}
	return out
}
