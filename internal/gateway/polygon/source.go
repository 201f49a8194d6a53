// Package polygon 通过 Polygon.io 聚合 K 线接口提供美股等品种的日线 bar。
package polygon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hdytrend/internal/logger"
	"hdytrend/internal/market"

	polygonrest "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"golang.org/x/time/rate"
)

type Config struct {
	APIKey string
	// HistoryStart 是全量拉取的起始日期（YYYY-MM-DD）。
	HistoryStart      string
	RequestsPerSecond float64
}

func (c Config) withDefaults() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.HistoryStart = strings.TrimSpace(c.HistoryStart)
	if c.HistoryStart == "" {
		c.HistoryStart = "2015-01-01"
	}
	if c.RequestsPerSecond <= 0 {
		// 免费档每分钟 5 次
		c.RequestsPerSecond = 5.0 / 60
	}
	return c
}

type listFunc func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error)

// Source 实现 market.Source。
type Source struct {
	cfg      Config
	interval market.Interval
	limiter  *rate.Limiter
	list     listFunc
	now      func() time.Time
}

func New(cfg Config, interval market.Interval) (*Source, error) {
	final := cfg.withDefaults()
	if final.APIKey == "" {
		return nil, fmt.Errorf("polygon api_key is required")
	}
	if _, err := market.SinceMillis(final.HistoryStart); err != nil {
		return nil, fmt.Errorf("polygon history_start: %w", err)
	}
	if interval.Key == "" {
		interval = market.DefaultInterval
	}
	client := polygonrest.New(final.APIKey)
	return &Source{
		cfg:      final,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(final.RequestsPerSecond), 1),
		list: func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
			it := client.ListAggs(ctx, params)
			var out []models.Agg
			for it.Next() {
				out = append(out, it.Item())
			}
			return out, it.Err()
		},
		now: time.Now,
	}, nil
}

func (s *Source) Name() string { return "polygon" }

func (s *Source) Fetch(ctx context.Context, sym string, since *string) ([]market.Bar, error) {
	ticker := strings.ToUpper(strings.TrimSpace(sym))
	if ticker == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	startDate := s.cfg.HistoryStart
	if since != nil {
		startDate = *since
	}
	from, err := market.SinceMillis(startDate)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := s.params(ticker, time.UnixMilli(from).UTC(), s.now().UTC())
	aggs, err := s.list(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("polygon aggs %s: %w", ticker, err)
	}
	out := market.Normalize(convertAggs(aggs))
	out = s.interval.DropUnclosed(out, latestOpen(aggs), s.now())
	logger.Debugf("[polygon] %s since=%s 拉取 %d 条", ticker, startDate, len(out))
	return out, nil
}

func (s *Source) params(ticker string, from, to time.Time) *models.ListAggsParams {
	multiplier, timespan := timespanFor(s.interval)
	return models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithOrder(models.Asc).WithAdjusted(true).WithLimit(50000)
}

func timespanFor(iv market.Interval) (int, models.Timespan) {
	switch iv.SourceInterval {
	case "3d":
		return 3, models.Day
	case "1w":
		return 1, models.Week
	default:
		return 1, models.Day
	}
}

func latestOpen(aggs []models.Agg) time.Time {
	var latest time.Time
	for _, a := range aggs {
		if ts := time.Time(a.Timestamp); ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// convertAggs 把聚合 K 线转换为 bar；VWAP 写入 Aux。
// Polygon 日线时间戳是美东零点，按 UTC 取日期不会跨日。
func convertAggs(aggs []models.Agg) []market.Bar {
	out := make([]market.Bar, 0, len(aggs))
	for _, a := range aggs {
		ts := time.Time(a.Timestamp)
		if ts.IsZero() || a.Close <= 0 {
			continue
		}
		bar := market.Bar{
			Date:   ts.UTC().Format(market.DateLayout),
			Open:   market.Price(a.Open),
			High:   market.Price(a.High),
			Low:    market.Price(a.Low),
			Close:  a.Close,
			Volume: a.Volume,
		}
		if a.VWAP > 0 {
			bar.Aux = market.Price(a.VWAP)
		}
		out = append(out, bar)
	}
	return out
}
