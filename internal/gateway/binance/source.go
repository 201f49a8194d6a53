// Package binance 通过 U 本位合约 REST 接口提供日线 bar。
package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hdytrend/internal/logger"
	"hdytrend/internal/market"
	"hdytrend/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"
)

const maxHistoryLimit = 1500

// Source 基于 go-binance SDK 实现 market.Source。
type Source struct {
	cfg      Config
	client   *futures.Client
	interval market.Interval
	limiter  *rate.Limiter
	now      func() time.Time
}

func New(cfg Config, interval market.Interval) (*Source, error) {
	final := cfg.withDefaults()
	if _, err := market.SinceMillis(final.HistoryStart); err != nil {
		return nil, fmt.Errorf("binance history_start: %w", err)
	}
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	if interval.Key == "" {
		interval = market.DefaultInterval
	}
	return &Source{
		cfg:      final,
		client:   client,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(final.RequestsPerSecond), 1),
		now:      time.Now,
	}, nil
}

func (s *Source) Name() string { return "binance" }

// Fetch 从 since（含）或 HistoryStart 开始分页拉取，直到返回不足一页。
func (s *Source) Fetch(ctx context.Context, sym string, since *string) ([]market.Bar, error) {
	clean := symbol.Normalize(sym)
	if clean == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	startDate := s.cfg.HistoryStart
	if since != nil {
		startDate = *since
	}
	start, err := market.SinceMillis(startDate)
	if err != nil {
		return nil, err
	}

	var (
		out      []market.Bar
		lastOpen int64
	)
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		kls, err := s.client.NewKlinesService().
			Symbol(clean).
			Interval(s.interval.SourceInterval).
			StartTime(start).
			Limit(s.cfg.PageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", clean, err)
		}
		page := convertKlines(kls)
		out = append(out, page...)
		if n := len(kls); n > 0 && kls[n-1] != nil {
			lastOpen = kls[n-1].OpenTime
		}
		if len(kls) < s.cfg.PageLimit || lastOpen < start {
			break
		}
		start = lastOpen + 1
	}
	out = market.Normalize(out)
	if lastOpen > 0 {
		out = s.interval.DropUnclosed(out, time.UnixMilli(lastOpen), s.now())
	}
	logger.Debugf("[binance] %s since=%s 拉取 %d 条", clean, startDate, len(out))
	return out, nil
}

// convertKlines 把 K 线转换为 bar；成交额写入 Aux。
func convertKlines(kls []*futures.Kline) []market.Bar {
	out := make([]market.Bar, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		closePrice, ok := parseFloat(kl.Close)
		if !ok {
			continue
		}
		volume, _ := parseFloat(kl.Volume)
		out = append(out, market.Bar{
			Date:   market.DateFromMillis(kl.OpenTime),
			Open:   optional(kl.Open),
			High:   optional(kl.High),
			Low:    optional(kl.Low),
			Close:  closePrice,
			Volume: volume,
			Aux:    optional(kl.QuoteAssetVolume),
		})
	}
	return out
}

func parseFloat(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func optional(v string) *float64 {
	f, ok := parseFloat(v)
	if !ok {
		return nil
	}
	return &f
}
