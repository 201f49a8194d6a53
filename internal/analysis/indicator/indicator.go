package indicator

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// Value 是指标序列中的单个点；OK=false 表示历史不足、尚不可用。
type Value struct {
	V  float64
	OK bool
}

// Some 构造可用值。
func Some(v float64) Value { return Value{V: v, OK: true} }

// None 是"尚不可用"标记。
var None = Value{}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = None
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// MarshalYAML 与 JSON 保持一致：不可用时输出 null。
func (v Value) MarshalYAML() (any, error) {
	if !v.OK {
		return nil, nil
	}
	return v.V, nil
}

// Series 与源 bar 序列按下标对齐。
type Series []Value

// Latest 返回最后一个可用值。
func (s Series) Latest() (float64, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].OK {
			return s[i].V, true
		}
	}
	return 0, false
}

// Available 返回第一个可用值的下标；不存在时返回 -1。
func (s Series) Available() int {
	for i, v := range s {
		if v.OK {
			return i
		}
	}
	return -1
}

// Zone 把 HDY 数值映射为超买/超卖区间描述。
func Zone(v float64) string {
	switch {
	case v >= 80:
		return "overbought"
	case v <= 20:
		return "oversold"
	default:
		return "neutral"
	}
}

// Round 按十进制四舍五入到 places 位小数，避免二进制浮点的 x.xx5 误差。
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
