package backtest

import (
	"fmt"
	"math"

	"hdytrend/internal/analysis/indicator"
	"hdytrend/internal/logger"
	"hdytrend/internal/market"

	"github.com/shopspring/decimal"
)

type positionState int

const (
	stateFlat positionState = iota
	stateLong
)

type signal int

const (
	signalNone signal = iota
	signalBuy
	signalSell
)

// Simulator 将成交量均线交叉规则在历史 bar 上推演为成交记录与净值曲线。
// 无状态，可并发复用。
type Simulator struct {
	opts Options
}

func NewSimulator(opts Options) *Simulator {
	return &Simulator{opts: opts.withDefaults()}
}

func (s *Simulator) Options() Options {
	return s.opts
}

// Run 使用 Simulator 的参数计算成交量均线并回测。
func (s *Simulator) Run(bars []market.Bar) Result {
	short := indicator.MovingAverage(s.opts.ShortWindow, bars, market.FieldVolume)
	long := indicator.MovingAverage(s.opts.LongWindow, bars, market.FieldVolume)
	return s.Replay(bars, short, long)
}

// Replay 在给定的短/长均线上回放交叉规则。short/long 须与 bars 等长。
func (s *Simulator) Replay(bars []market.Bar, short, long indicator.Series) Result {
	opts := s.opts
	if len(short) != len(bars) || len(long) != len(bars) {
		logger.Warnf("[backtest] 均线长度与 bar 不一致: bars=%d short=%d long=%d", len(bars), len(short), len(long))
		return neutralResult(opts)
	}
	startIdx := findStartIndex(bars, long, opts.WarmupIndex)
	if startIdx < 0 {
		return neutralResult(opts)
	}

	state := &portfolioState{
		initialCapital: opts.InitialCapital,
		cash:           opts.InitialCapital,
	}
	capital := make([]CurvePoint, 0, len(bars))
	benchmark := make([]CurvePoint, 0, len(bars))
	for i := 0; i < startIdx; i++ {
		capital = append(capital, CurvePoint{Date: bars[i].Date, NetValue: 1})
		benchmark = append(benchmark, CurvePoint{Date: bars[i].Date, NetValue: 1})
	}

	initialPrice := bars[startIdx].Close
	for i := startIdx; i < len(bars); i++ {
		bar := bars[i]
		benchmark = append(benchmark, CurvePoint{
			Date:     bar.Date,
			NetValue: indicator.Round(bar.Close/initialPrice, 4),
		})

		switch detectCross(short[i-1], long[i-1], short[i], long[i]) {
		case signalBuy:
			if state.pos == stateFlat {
				state.buy(bar, fmt.Sprintf("金叉: MA%d(%.4f) 上穿 MA%d(%.4f)", opts.ShortWindow, short[i].V, opts.LongWindow, long[i].V))
			}
		case signalSell:
			if state.pos == stateLong {
				state.sell(bar, fmt.Sprintf("死叉: MA%d(%.4f) 下穿 MA%d(%.4f)", opts.ShortWindow, short[i].V, opts.LongWindow, long[i].V))
			}
		}

		capital = append(capital, CurvePoint{
			Date:     bar.Date,
			NetValue: indicator.Round(state.equity(bar.Close)/state.initialCapital, 4),
		})
	}

	res := Result{
		Trades:         state.trades,
		CapitalCurve:   capital,
		BenchmarkCurve: benchmark,
		TradeCount:     len(state.trades),
		StartIndex:     startIdx,
		Options:        opts,
	}
	if res.Trades == nil {
		res.Trades = []Trade{}
	}
	res.FinalNetValue = lastNetValue(capital)
	res.ReturnRate = formatReturn(res.FinalNetValue)
	res.BenchmarkReturn = formatReturn(lastNetValue(benchmark))
	res.WinRate = winRate(res.Trades)
	return res
}

// findStartIndex 从 warmup 起找第一个收盘价有效且长均线可用的位置。
func findStartIndex(bars []market.Bar, long indicator.Series, warmup int) int {
	for i := warmup; i < len(bars); i++ {
		if _, ok := bars[i].Value(market.FieldClose); !ok || bars[i].Close == 0 {
			continue
		}
		if long[i].OK {
			return i
		}
	}
	return -1
}

func detectCross(prevShort, prevLong, currShort, currLong indicator.Value) signal {
	if !prevShort.OK || !prevLong.OK || !currShort.OK || !currLong.OK {
		return signalNone
	}
	switch {
	case prevShort.V <= prevLong.V && currShort.V > currLong.V:
		return signalBuy
	case prevShort.V >= prevLong.V && currShort.V < currLong.V:
		return signalSell
	default:
		return signalNone
	}
}

type portfolioState struct {
	initialCapital float64
	cash           float64
	holdings       float64
	pos            positionState
	trades         []Trade
}

func (p *portfolioState) buy(bar market.Bar, reason string) {
	p.holdings = p.cash / bar.Close
	p.cash = 0
	p.pos = stateLong
	p.trades = append(p.trades, Trade{Date: bar.Date, Side: SideBuy, Price: bar.Close, Reason: reason})
}

func (p *portfolioState) sell(bar market.Bar, reason string) {
	p.cash = p.holdings * bar.Close
	p.holdings = 0
	p.pos = stateFlat
	p.trades = append(p.trades, Trade{Date: bar.Date, Side: SideSell, Price: bar.Close, Reason: reason})
}

func (p *portfolioState) equity(price float64) float64 {
	return p.cash + p.holdings*price
}

func neutralResult(opts Options) Result {
	return Result{
		Trades:          []Trade{},
		CapitalCurve:    []CurvePoint{},
		BenchmarkCurve:  []CurvePoint{},
		FinalNetValue:   1,
		ReturnRate:      "0.00",
		BenchmarkReturn: "0.00",
		WinRate:         "0",
		TradeCount:      0,
		StartIndex:      -1,
		Options:         opts,
	}
}

func lastNetValue(curve []CurvePoint) float64 {
	if len(curve) == 0 {
		return 1
	}
	return curve[len(curve)-1].NetValue
}

var hundred = decimal.NewFromInt(100)

// formatReturn 把净值转换为两位小数的收益率百分比。
func formatReturn(netValue float64) string {
	if math.IsNaN(netValue) || math.IsInf(netValue, 0) {
		return "0.00"
	}
	return decimal.NewFromFloat(netValue).Sub(decimal.NewFromInt(1)).Mul(hundred).StringFixed(2)
}

// winRate 统计卖出价高于其前一笔成交价的卖出比例（整数百分比）。
func winRate(trades []Trade) string {
	if err := checkAlternation(trades); err != nil {
		logger.Warnf("[backtest] 成交记录未严格买卖交替，胜率按最近一次买入计算: %v", err)
	}
	sells, wins := 0, 0
	lastBuy := -1.0
	for i, t := range trades {
		switch t.Side {
		case SideBuy:
			lastBuy = t.Price
		case SideSell:
			sells++
			ref := trades[max(i-1, 0)]
			entry := ref.Price
			if ref.Side != SideBuy {
				entry = lastBuy
			}
			if i > 0 && entry >= 0 && t.Price > entry {
				wins++
			}
		}
	}
	if sells == 0 {
		return "0"
	}
	return decimal.NewFromInt(int64(wins)).Mul(hundred).Div(decimal.NewFromInt(int64(sells))).StringFixed(0)
}

// checkAlternation 确认成交序列从买入开始并严格买卖交替。
func checkAlternation(trades []Trade) error {
	want := SideBuy
	for i, t := range trades {
		if t.Side != want {
			return fmt.Errorf("trade %d (%s) is %s, expected %s", i, t.Date, t.Side, want)
		}
		if want == SideBuy {
			want = SideSell
		} else {
			want = SideBuy
		}
	}
	return nil
}
