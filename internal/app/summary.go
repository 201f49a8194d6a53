package app

import (
	"context"
	"fmt"
	"strings"

	"hdytrend/internal/logger"
	"hdytrend/internal/store"
	"hdytrend/internal/store/gormstore"
	"hdytrend/internal/store/sqlite"
)

type StartupSummary struct {
	Source   SourceSummary
	Cache    CacheSummary
	Sync     SyncSummary
	Backtest BacktestSummary
	Series   []SeriesSummary
}

type SourceSummary struct {
	Name     string
	Interval string
}

type CacheSummary struct {
	Backend string
	Path    string
}

type SyncSummary struct {
	Symbols       []string
	SymbolSource  string
	MaxConcurrent int
	RefreshEvery  int
	RefreshOffset int
	RefreshCron   string
}

type BacktestSummary struct {
	InitialCapital float64
	ShortWindow    int
	LongWindow     int
	WarmupIndex    int
}

// SeriesSummary 是缓存中已有序列的概况。
type SeriesSummary struct {
	Key       string
	FirstDate string
	LastDate  string
	Rows      int64
}

func (a *App) buildSummary(ctx context.Context) *StartupSummary {
	cfg := a.cfg
	s := &StartupSummary{
		Source: SourceSummary{Name: a.sourceName, Interval: a.interval.Key},
		Cache:  CacheSummary{Backend: cfg.Cache.Backend, Path: cfg.Cache.Path},
		Sync: SyncSummary{
			Symbols:       cfg.Sync.Symbols,
			SymbolSource:  a.symbols.Name(),
			MaxConcurrent: cfg.Sync.MaxConcurrent,
			RefreshEvery:  cfg.Sync.RefreshIntervalSeconds,
			RefreshOffset: cfg.Sync.RefreshOffsetSeconds,
			RefreshCron:   cfg.Sync.RefreshCron,
		},
		Backtest: BacktestSummary{
			InitialCapital: cfg.Backtest.InitialCapital,
			ShortWindow:    cfg.Backtest.ShortWindow,
			LongWindow:     cfg.Backtest.LongWindow,
			WarmupIndex:    cfg.Backtest.WarmupIndex,
		},
	}
	keys := make([]string, 0, len(cfg.Sync.Symbols))
	for _, sym := range cfg.Sync.Symbols {
		keys = append(keys, store.Key(sym, a.interval.Key))
	}
	series, err := cachedSeries(ctx, a.store, keys)
	if err != nil {
		logger.Warnf("[app] 读取缓存概况失败: %v", err)
	}
	s.Series = series
	return s
}

// cachedSeries 尽量不解码完整序列：sqlite 读 manifest，gorm 读摘要列。
func cachedSeries(ctx context.Context, st store.CacheStore, keys []string) ([]SeriesSummary, error) {
	var out []SeriesSummary
	switch s := st.(type) {
	case *sqlite.Store:
		for _, key := range keys {
			m, ok, err := s.Manifest(ctx, key)
			if err != nil {
				return out, err
			}
			if ok {
				out = append(out, SeriesSummary{Key: m.Key, FirstDate: m.FirstDate, LastDate: m.LastDate, Rows: m.Rows})
			}
		}
	case *gormstore.GormStore:
		rows, err := s.Summaries(ctx)
		if err != nil {
			return nil, err
		}
		wanted := make(map[string]bool, len(keys))
		for _, k := range keys {
			wanted[k] = true
		}
		for _, r := range rows {
			if wanted[r.Key] {
				out = append(out, SeriesSummary{Key: r.Key, FirstDate: r.FirstDate, LastDate: r.LastDate, Rows: int64(r.Rows)})
			}
		}
	default:
		for _, key := range keys {
			bars, ok, err := st.Get(ctx, key)
			if err != nil {
				return out, err
			}
			if ok && len(bars) > 0 {
				out = append(out, SeriesSummary{Key: key, FirstDate: bars[0].Date, LastDate: bars[len(bars)-1].Date, Rows: int64(len(bars))})
			}
		}
	}
	return out, nil
}

// String 渲染启动摘要。
func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString("启动配置摘要 (STARTUP SUMMARY)\n")
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "[行情源] %s interval=%s\n", s.Source.Name, s.Source.Interval)
	fmt.Fprintf(&b, "[缓存] backend=%s path=%s\n", s.Cache.Backend, orDash(s.Cache.Path))
	fmt.Fprintf(&b, "[同步] symbols=%s 来源=%s 并发=%d 刷新周期=%ds 偏移=%ds\n",
		formatList(s.Sync.Symbols), s.Sync.SymbolSource, s.Sync.MaxConcurrent, s.Sync.RefreshEvery, s.Sync.RefreshOffset)
	if s.Sync.RefreshCron != "" {
		fmt.Fprintf(&b, "[同步] cron=%q (优先于刷新周期)\n", s.Sync.RefreshCron)
	}
	fmt.Fprintf(&b, "[回测] 初始资金=%.0f MA%d/MA%d warmup=%d\n",
		s.Backtest.InitialCapital, s.Backtest.ShortWindow, s.Backtest.LongWindow, s.Backtest.WarmupIndex)
	b.WriteString("[已缓存序列]\n")
	if len(s.Series) == 0 {
		b.WriteString("  (无)\n")
	}
	for _, ser := range s.Series {
		fmt.Fprintf(&b, "  > %s rows=%d %s ~ %s\n", ser.Key, ser.Rows, ser.FirstDate, ser.LastDate)
	}
	b.WriteString(line)
	return b.String()
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
