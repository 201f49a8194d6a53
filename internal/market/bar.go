package market

import (
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout 是 Bar.Date 的格式；字典序即时间序。
const DateLayout = "2006-01-02"

// Bar 是单个交易日的行情记录。Open/High/Low/Aux 对部分品种缺失。
type Bar struct {
	Date   string   `json:"date" yaml:"date"`
	Open   *float64 `json:"open,omitempty" yaml:"open,omitempty"`
	High   *float64 `json:"high,omitempty" yaml:"high,omitempty"`
	Low    *float64 `json:"low,omitempty" yaml:"low,omitempty"`
	Close  float64  `json:"close" yaml:"close"`
	Volume float64  `json:"volume" yaml:"volume"`
	Aux    *float64 `json:"aux,omitempty" yaml:"aux,omitempty"`
}

// Price 返回可选价格字段的指针，便于构造 Bar。
func Price(v float64) *float64 {
	return &v
}

// HasOHLC 表示该 bar 是否带完整的开高低价。
func (b Bar) HasOHLC() bool {
	return b.Open != nil && b.High != nil && b.Low != nil
}

// Time 解析日期；格式非法时返回零值。
func (b Bar) Time() time.Time {
	t, err := time.Parse(DateLayout, strings.TrimSpace(b.Date))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Field 选择 Bar 上参与计算的数值字段。
type Field int

const (
	FieldClose Field = iota
	FieldOpen
	FieldHigh
	FieldLow
	FieldVolume
	FieldAux
)

func (f Field) String() string {
	switch f {
	case FieldClose:
		return "close"
	case FieldOpen:
		return "open"
	case FieldHigh:
		return "high"
	case FieldLow:
		return "low"
	case FieldVolume:
		return "volume"
	case FieldAux:
		return "aux"
	default:
		return "unknown"
	}
}

// Value 读取字段值；可选字段缺失时 ok=false。
func (b Bar) Value(f Field) (float64, bool) {
	switch f {
	case FieldClose:
		return b.Close, isFinite(b.Close)
	case FieldVolume:
		return b.Volume, isFinite(b.Volume)
	case FieldOpen:
		return deref(b.Open)
	case FieldHigh:
		return deref(b.High)
	case FieldLow:
		return deref(b.Low)
	case FieldAux:
		return deref(b.Aux)
	default:
		return 0, false
	}
}

func deref(p *float64) (float64, bool) {
	if p == nil || !isFinite(*p) {
		return 0, false
	}
	return *p, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LastDate 返回序列最后一根 bar 的日期。
func LastDate(bars []Bar) (string, bool) {
	if len(bars) == 0 {
		return "", false
	}
	return bars[len(bars)-1].Date, true
}

// After 返回日期严格大于 date 的 bar，保持原顺序。
func After(bars []Bar, date string) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Date > date {
			out = append(out, b)
		}
	}
	return out
}

// Normalize 按日期升序排序并去重（同一日期保留最后出现的记录），
// 同时丢弃日期为空的记录。返回新切片，不修改入参。
func Normalize(bars []Bar) []Bar {
	if len(bars) == 0 {
		return nil
	}
	byDate := make(map[string]Bar, len(bars))
	for _, b := range bars {
		d := strings.TrimSpace(b.Date)
		if d == "" {
			continue
		}
		b.Date = d
		byDate[d] = b
	}
	out := make([]Bar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// IsStrictlyAscending 检查日期唯一且严格递增。
func IsStrictlyAscending(bars []Bar) bool {
	for i := 1; i < len(bars); i++ {
		if bars[i].Date <= bars[i-1].Date {
			return false
		}
	}
	return true
}

// Clone 深拷贝序列，调用方可安全修改返回值。
func Clone(bars []Bar) []Bar {
	if bars == nil {
		return nil
	}
	out := make([]Bar, len(bars))
	for i, b := range bars {
		out[i] = b
		out[i].Open = clonePtr(b.Open)
		out[i].High = clonePtr(b.High)
		out[i].Low = clonePtr(b.Low)
		out[i].Aux = clonePtr(b.Aux)
	}
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
