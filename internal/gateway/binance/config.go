package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration

	ProxyEnabled bool
	RESTProxyURL string

	// HistoryStart 是全量拉取的起始日期（YYYY-MM-DD）。
	HistoryStart string
	// PageLimit 是单次请求的 K 线数量上限。
	PageLimit int
	// RequestsPerSecond 限制分页请求速率。
	RequestsPerSecond float64
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	out.HistoryStart = strings.TrimSpace(out.HistoryStart)
	if out.HistoryStart == "" {
		out.HistoryStart = "2019-09-01"
	}
	if out.PageLimit <= 0 || out.PageLimit > maxHistoryLimit {
		out.PageLimit = maxHistoryLimit
	}
	if out.RequestsPerSecond <= 0 {
		out.RequestsPerSecond = 5
	}
	return out
}
