package backtest

import (
	"fmt"
)

// Side 是成交方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade 记录一次模拟成交，生成后不再修改。
type Trade struct {
	Date   string  `json:"date" yaml:"date"`
	Side   Side    `json:"side" yaml:"side"`
	Price  float64 `json:"price" yaml:"price"`
	Reason string  `json:"reason" yaml:"reason"`
}

// CurvePoint 是净值曲线上的一个点，与 bar 下标对齐。
type CurvePoint struct {
	Date     string  `json:"date" yaml:"date"`
	NetValue float64 `json:"net_value" yaml:"net_value"`
}

// Result 是一次回测的完整快照，每次调用重新计算，返回后不再修改。
type Result struct {
	Trades          []Trade      `json:"trades" yaml:"trades"`
	CapitalCurve    []CurvePoint `json:"capital_curve" yaml:"capital_curve"`
	BenchmarkCurve  []CurvePoint `json:"benchmark_curve" yaml:"benchmark_curve"`
	FinalNetValue   float64      `json:"final_net_value" yaml:"final_net_value"`
	ReturnRate      string       `json:"return_rate" yaml:"return_rate"`
	BenchmarkReturn string       `json:"benchmark_return" yaml:"benchmark_return"`
	WinRate         string       `json:"win_rate" yaml:"win_rate"`
	TradeCount      int          `json:"trade_count" yaml:"trade_count"`
	StartIndex      int          `json:"start_index" yaml:"start_index"`
	Options         Options      `json:"options" yaml:"options"`
}

// Summary 返回单行摘要，供日志使用。
func (r Result) Summary() string {
	return fmt.Sprintf("trades=%d net=%.4f return=%s%% benchmark=%s%% win=%s%%",
		r.TradeCount, r.FinalNetValue, r.ReturnRate, r.BenchmarkReturn, r.WinRate)
}

// Neutral 表示数据不足时的中性结果。
func (r Result) Neutral() bool {
	return r.StartIndex < 0
}

// Options 控制均线交叉策略的参数；零值字段使用 DefaultOptions 中的值。
type Options struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	ShortWindow    int     `json:"short_window" yaml:"short_window"`
	LongWindow     int     `json:"long_window" yaml:"long_window"`
	WarmupIndex    int     `json:"warmup_index" yaml:"warmup_index"`
}

const (
	DefaultInitialCapital = 100000
	DefaultShortWindow    = 10
	DefaultLongWindow     = 100
	DefaultWarmupIndex    = 100
)

func DefaultOptions() Options {
	return Options{
		InitialCapital: DefaultInitialCapital,
		ShortWindow:    DefaultShortWindow,
		LongWindow:     DefaultLongWindow,
		WarmupIndex:    DefaultWarmupIndex,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.InitialCapital <= 0 {
		o.InitialCapital = def.InitialCapital
	}
	if o.ShortWindow <= 0 {
		o.ShortWindow = def.ShortWindow
	}
	if o.LongWindow <= 0 {
		o.LongWindow = def.LongWindow
	}
	if o.WarmupIndex <= 0 {
		o.WarmupIndex = def.WarmupIndex
	}
	return o
}
