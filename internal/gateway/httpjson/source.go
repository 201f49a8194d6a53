// Package httpjson 从任意返回 JSON 的行情接口读取 bar，字段位置由 gjson 路径配置。
package httpjson

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hdytrend/internal/logger"
	"hdytrend/internal/market"
	"hdytrend/internal/pkg/circuit"
	"hdytrend/internal/pkg/convert"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 32 << 20

// Fields 是单行记录内各字段的 gjson 路径；为空表示该字段缺失。
type Fields struct {
	Date   string
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
	Aux    string
}

type Config struct {
	// URLTemplate 支持 {symbol} 与 {since} 占位符；since 为空时替换为空串。
	URLTemplate string
	// RowsPath 指向记录数组，例如 "data.klines"。
	RowsPath string
	Fields   Fields
	// DateFormat 为 Go 时间格式，或 "unix" / "unix_ms"。
	DateFormat string
	Headers    map[string]string

	Timeout           time.Duration
	RequestsPerSecond float64
	BreakerThreshold  int
	BreakerCooldown   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Fields.Date == "" {
		c.Fields.Date = "date"
	}
	if c.Fields.Close == "" {
		c.Fields.Close = "close"
	}
	if c.Fields.Volume == "" {
		c.Fields.Volume = "volume"
	}
	if c.DateFormat == "" {
		c.DateFormat = market.DateLayout
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 3
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	return c
}

type Source struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuit.CircuitBreaker
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	if strings.TrimSpace(final.URLTemplate) == "" {
		return nil, fmt.Errorf("httpjson url_template 不能为空")
	}
	if !strings.Contains(final.URLTemplate, "{symbol}") {
		return nil, fmt.Errorf("httpjson url_template 缺少 {symbol} 占位符")
	}
	return &Source{
		cfg:     final,
		client:  &http.Client{Timeout: final.Timeout},
		limiter: rate.NewLimiter(rate.Limit(final.RequestsPerSecond), 1),
		breaker: circuit.NewCircuitBreaker("httpjson", final.BreakerThreshold, final.BreakerCooldown),
	}, nil
}

func (s *Source) Name() string { return "httpjson" }

func (s *Source) Fetch(ctx context.Context, symbol string, since *string) ([]market.Bar, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	sinceStr := ""
	if since != nil {
		sinceStr = *since
	}
	target := strings.NewReplacer(
		"{symbol}", url.QueryEscape(symbol),
		"{since}", url.QueryEscape(sinceStr),
	).Replace(s.cfg.URLTemplate)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var body []byte
	err := s.breaker.Do(func() error {
		var reqErr error
		body, reqErr = s.get(ctx, target)
		return reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("httpjson %s: %w", symbol, err)
	}
	bars, err := s.parse(body)
	if err != nil {
		return nil, fmt.Errorf("httpjson %s: %w", symbol, err)
	}
	if since != nil {
		kept := bars[:0]
		for _, b := range bars {
			if b.Date >= *since {
				kept = append(kept, b)
			}
		}
		bars = kept
	}
	logger.Debugf("[httpjson] %s since=%q 拉取 %d 条", symbol, sinceStr, len(bars))
	return market.Normalize(bars), nil
}

func (s *Source) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func (s *Source) parse(body []byte) ([]market.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("响应不是合法 JSON")
	}
	rows := gjson.ParseBytes(body)
	if s.cfg.RowsPath != "" {
		rows = rows.Get(s.cfg.RowsPath)
	}
	if !rows.IsArray() {
		return nil, fmt.Errorf("路径 %q 不是数组", s.cfg.RowsPath)
	}
	var (
		out     []market.Bar
		skipped int
	)
	rows.ForEach(func(_, row gjson.Result) bool {
		bar, ok := s.parseRow(row)
		if !ok {
			skipped++
			return true
		}
		out = append(out, bar)
		return true
	})
	if skipped > 0 {
		logger.Warnf("[httpjson] 跳过 %d 条无法解析的记录", skipped)
	}
	return out, nil
}

func (s *Source) parseRow(row gjson.Result) (market.Bar, bool) {
	f := s.cfg.Fields
	date, ok := parseDate(row.Get(f.Date), s.cfg.DateFormat)
	if !ok {
		return market.Bar{}, false
	}
	closePrice, ok := convert.ToFloat64OK(row.Get(f.Close).Value())
	if !ok {
		return market.Bar{}, false
	}
	volume, _ := convert.ToFloat64OK(row.Get(f.Volume).Value())
	return market.Bar{
		Date:   date,
		Open:   optionalField(row, f.Open),
		High:   optionalField(row, f.High),
		Low:    optionalField(row, f.Low),
		Close:  closePrice,
		Volume: volume,
		Aux:    optionalField(row, f.Aux),
	}, true
}

func optionalField(row gjson.Result, path string) *float64 {
	if path == "" {
		return nil
	}
	return convert.OptionalFloat64(row.Get(path).Value())
}

func parseDate(v gjson.Result, format string) (string, bool) {
	if !v.Exists() {
		return "", false
	}
	switch format {
	case "unix", "unix_ms":
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return "", false
		}
		if format == "unix" {
			n *= 1000
		}
		return market.DateFromMillis(n), true
	default:
		t, err := time.ParseInLocation(format, strings.TrimSpace(v.String()), time.UTC)
		if err != nil {
			return "", false
		}
		return t.Format(market.DateLayout), true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
