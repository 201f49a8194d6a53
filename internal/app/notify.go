package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hdytrend/internal/analysis"
	"hdytrend/internal/backtest"
	"hdytrend/internal/config"
	"hdytrend/internal/datasync"
	"hdytrend/internal/gateway/notifier"
	"hdytrend/internal/logger"
)

// alerter 在每轮刷新后推送新出现的交叉信号与降级的同步。
// 同一 symbol 的同一信号只推送一次。
type alerter struct {
	cfg    config.NotifyConfig
	sender notifier.TextNotifier

	mu   sync.Mutex
	sent map[string]string
}

func newAlerter(cfg config.NotifyConfig, sender notifier.TextNotifier) *alerter {
	if sender == nil {
		sender = notifier.Nop{}
	}
	return &alerter{cfg: cfg, sender: sender, sent: make(map[string]string)}
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func (a *alerter) dispatch(ctx context.Context, reports map[string]analysis.Report) {
	if a == nil {
		return
	}
	for _, msg := range a.messages(reports, time.Now()) {
		if err := a.sender.SendText(ctx, msg.Markdown()); err != nil {
			logger.Warnf("[notify] 推送失败: %v", err)
		}
	}
}

func (a *alerter) messages(reports map[string]analysis.Report, now time.Time) []notifier.Alert {
	syms := make([]string, 0, len(reports))
	for sym := range reports {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	var out []notifier.Alert
	var degraded []string
	for _, sym := range syms {
		rep := reports[sym]
		if rep.Sync.Outcome == datasync.OutcomeDegraded {
			degraded = append(degraded, fmt.Sprintf("%s rows=%d: %s", sym, rep.Sync.Rows, rep.Sync.Error))
		}
		if a.cfg.OnSignal {
			if msg, ok := a.signalMessage(rep, now); ok {
				out = append(out, msg)
			}
		}
	}
	if a.cfg.OnDegraded && len(degraded) > 0 {
		out = append(out, notifier.DegradedAlert(degraded, now))
	}
	return out
}

// signalMessage 只在最后一根 bar 上出现成交时返回消息。
func (a *alerter) signalMessage(rep analysis.Report, now time.Time) (notifier.Alert, bool) {
	trades := rep.Backtest.Trades
	if rep.Latest == nil || len(trades) == 0 {
		return notifier.Alert{}, false
	}
	last := trades[len(trades)-1]
	if last.Date != rep.Latest.Date {
		return notifier.Alert{}, false
	}
	id := string(last.Side) + "@" + last.Date
	a.mu.Lock()
	if a.sent[rep.Symbol] == id {
		a.mu.Unlock()
		return notifier.Alert{}, false
	}
	a.sent[rep.Symbol] = id
	a.mu.Unlock()

	return notifier.SignalAlert(rep.Symbol, string(last.Side), last.Side == backtest.SideSell, now,
		notifier.TradeSection(last.Date, last.Price, last.Reason),
		notifier.IndicatorSection(rep.Latest.HDY, rep.Latest.HDYZone, rep.Trend.Bias),
		notifier.BacktestSection(rep.Backtest.Summary()),
	), true
}
