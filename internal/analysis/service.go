package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hdytrend/internal/analysis/pattern"
	"hdytrend/internal/backtest"
	"hdytrend/internal/datasync"
	"hdytrend/internal/logger"
	"hdytrend/internal/market"
	"hdytrend/internal/pkg/symbol"
	"hdytrend/internal/store"

	"github.com/google/uuid"
)

// Report 是某个 symbol 在一次刷新后的只读快照。
type Report struct {
	ID          string          `json:"id" yaml:"id"`
	Symbol      string          `json:"symbol" yaml:"symbol"`
	Key         string          `json:"key" yaml:"key"`
	Source      string          `json:"source" yaml:"source"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	Sync        SyncInfo        `json:"sync" yaml:"sync"`
	Latest      *Latest         `json:"latest,omitempty" yaml:"latest,omitempty"`
	Trend       pattern.Trend   `json:"trend" yaml:"trend"`
	Bars        []EnrichedBar   `json:"bars" yaml:"bars"`
	Backtest    backtest.Result `json:"backtest" yaml:"backtest"`
}

// SyncInfo 记录本次同步的路径与降级原因。
type SyncInfo struct {
	Outcome  datasync.Outcome `json:"outcome" yaml:"outcome"`
	Appended int              `json:"appended" yaml:"appended"`
	Written  bool             `json:"written" yaml:"written"`
	Rows     int              `json:"rows" yaml:"rows"`
	Error    string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Latest 汇总最后一根 bar 的关键数值。
type Latest struct {
	Date    string  `json:"date" yaml:"date"`
	Close   float64 `json:"close" yaml:"close"`
	HDY     float64 `json:"hdy" yaml:"hdy"`
	HDYZone string  `json:"hdy_zone" yaml:"hdy_zone"`
}

// ServiceConfig 描述 Service 的依赖。
type ServiceConfig struct {
	Cache         *datasync.Cache
	Source        market.Source
	Simulator     *backtest.Simulator
	Interval      string
	MaxConcurrent int
	TrendLookback int
}

// Service 负责同步、计算并缓存每个 symbol 的最新报告。
type Service struct {
	cache         *datasync.Cache
	source        market.Source
	sim           *backtest.Simulator
	interval      string
	maxConcurrent int
	trendLookback int

	mu      sync.RWMutex
	reports map[string]Report
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("datasync cache 不能为空")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("market source 不能为空")
	}
	sim := cfg.Simulator
	if sim == nil {
		sim = backtest.NewSimulator(backtest.DefaultOptions())
	}
	interval := cfg.Interval
	if interval == "" {
		interval = "1d"
	}
	return &Service{
		cache:         cfg.Cache,
		source:        cfg.Source,
		sim:           sim,
		interval:      interval,
		maxConcurrent: cfg.MaxConcurrent,
		trendLookback: cfg.TrendLookback,
		reports:       make(map[string]Report),
	}, nil
}

func (s *Service) fetchFor(sym string) datasync.FetchFunc {
	return func(ctx context.Context, since *string) ([]market.Bar, error) {
		return s.source.Fetch(ctx, sym, since)
	}
}

// Refresh 同步单个 symbol 并重建报告。同步降级时仍返回报告，同时返回 error。
func (s *Service) Refresh(ctx context.Context, raw string) (Report, error) {
	sym := symbol.Normalize(raw)
	if sym == "" {
		return Report{}, fmt.Errorf("symbol 不能为空")
	}
	key := store.Key(sym, s.interval)
	res, err := s.cache.SyncDetailed(ctx, key, s.fetchFor(sym))
	rep := s.build(sym, res, err)
	s.remember(rep)
	return rep, err
}

// RefreshAll 并发刷新多个 symbol。
func (s *Service) RefreshAll(ctx context.Context, symbols []string) (map[string]Report, error) {
	keys := make([]string, 0, len(symbols))
	symbolByKey := make(map[string]string, len(symbols))
	for _, raw := range symbols {
		sym := symbol.Normalize(raw)
		if sym == "" {
			continue
		}
		key := store.Key(sym, s.interval)
		if _, dup := symbolByKey[key]; dup {
			continue
		}
		symbolByKey[key] = sym
		keys = append(keys, key)
	}
	results, err := s.cache.SyncAll(ctx, keys, func(key string) datasync.FetchFunc {
		return s.fetchFor(symbolByKey[key])
	}, s.maxConcurrent)

	out := make(map[string]Report, len(keys))
	for _, key := range keys {
		res := results[key]
		rep := s.build(symbolByKey[key], res, res.Err)
		s.remember(rep)
		out[rep.Symbol] = rep
	}
	return out, err
}

func (s *Service) build(sym string, res datasync.Result, syncErr error) Report {
	enriched := Enrich(res.Bars, s.sim.Options().ShortWindow, s.sim.Options().LongWindow)
	result := s.sim.Replay(res.Bars, enriched.VolumeShort, enriched.VolumeLong)
	rep := Report{
		ID:          uuid.NewString(),
		Symbol:      sym,
		Key:         res.Key,
		Source:      s.source.Name(),
		GeneratedAt: time.Now().UTC(),
		Sync: SyncInfo{
			Outcome:  res.Outcome,
			Appended: res.Appended,
			Written:  res.Written,
			Rows:     len(res.Bars),
		},
		Trend:    pattern.Analyze(res.Bars, s.trendLookback),
		Bars:     enriched.Bars,
		Backtest: result,
	}
	if syncErr != nil {
		rep.Sync.Error = syncErr.Error()
	}
	if n := len(enriched.Bars); n > 0 {
		last := enriched.Bars[n-1]
		rep.Latest = &Latest{Date: last.Date, Close: last.Close, HDY: last.HDY, HDYZone: last.HDYZone}
	}
	logger.Infof("[analysis] %s rows=%d sync=%s %s", sym, len(res.Bars), res.Outcome, result.Summary())
	return rep
}

// remember 保存最新报告；降级且无数据时不覆盖已有的有效报告。
func (s *Service) remember(rep Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.reports[rep.Symbol]; ok && len(rep.Bars) == 0 && len(prev.Bars) > 0 {
		return
	}
	s.reports[rep.Symbol] = rep
}

// Report 返回最近一次生成的报告。
func (s *Service) Report(raw string) (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep, ok := s.reports[symbol.Normalize(raw)]
	return rep, ok
}

// Symbols 返回已有报告的 symbol（排序后）。
func (s *Service) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.reports))
	for sym := range s.reports {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
