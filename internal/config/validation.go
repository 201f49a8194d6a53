package config

import (
	"fmt"
	"strings"

	"hdytrend/internal/market"
	"hdytrend/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Source.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
	switch strings.ToLower(a.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json, got %q", a.LogFormat)
	}
	return nil
}

func (s *SourceConfig) validate() error {
	if _, err := market.ParseInterval(s.Interval); err != nil {
		return fmt.Errorf("source.interval: %w", err)
	}
	if s.TimeoutSeconds < 0 {
		return fmt.Errorf("source.timeout_seconds must be >= 0")
	}
	switch s.Kind {
	case "binance":
		if _, err := market.SinceMillis(s.Binance.HistoryStart); err != nil {
			return fmt.Errorf("source.binance.history_start: %w", err)
		}
	case "polygon":
		if strings.TrimSpace(s.Polygon.APIKey) == "" {
			return fmt.Errorf("source.polygon.api_key is required when source.kind=polygon")
		}
		if s.Polygon.HistoryStart != "" {
			if _, err := market.SinceMillis(s.Polygon.HistoryStart); err != nil {
				return fmt.Errorf("source.polygon.history_start: %w", err)
			}
		}
	case "httpjson":
		tpl := strings.TrimSpace(s.HTTPJSON.URLTemplate)
		if tpl == "" {
			return fmt.Errorf("source.httpjson.url_template is required when source.kind=httpjson")
		}
		if !strings.Contains(tpl, "{symbol}") {
			return fmt.Errorf("source.httpjson.url_template must contain {symbol}")
		}
	case "csv":
		if strings.TrimSpace(s.CSV.Dir) == "" {
			return fmt.Errorf("source.csv.dir is required when source.kind=csv")
		}
	default:
		return fmt.Errorf("source.kind must be one of binance/polygon/httpjson/csv, got %q", s.Kind)
	}
	return nil
}

func (c *CacheConfig) validate() error {
	switch c.Backend {
	case "memory":
	case "sqlite", "gorm":
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("cache.path is required for backend %s", c.Backend)
		}
	default:
		return fmt.Errorf("cache.backend must be one of memory/sqlite/gorm, got %q", c.Backend)
	}
	if c.Shards < 0 {
		return fmt.Errorf("cache.shards must be >= 0")
	}
	return nil
}

func (s *SyncConfig) validate() error {
	if s.MaxConcurrent < 0 {
		return fmt.Errorf("sync.max_concurrent must be >= 0")
	}
	if s.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("sync.refresh_interval_seconds must be >= 0")
	}
	if s.RefreshOffsetSeconds < 0 {
		return fmt.Errorf("sync.refresh_offset_seconds must be >= 0")
	}
	if s.RefreshIntervalSeconds > 0 && s.RefreshOffsetSeconds >= s.RefreshIntervalSeconds {
		return fmt.Errorf("sync.refresh_offset_seconds (%d) must be < refresh_interval_seconds (%d)",
			s.RefreshOffsetSeconds, s.RefreshIntervalSeconds)
	}
	if strings.TrimSpace(s.RefreshCron) != "" {
		if _, err := scheduler.ParseCron(s.RefreshCron); err != nil {
			return fmt.Errorf("sync.refresh_cron: %w", err)
		}
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if b.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if b.ShortWindow <= 0 || b.LongWindow <= 0 {
		return fmt.Errorf("backtest windows must be > 0")
	}
	if b.ShortWindow >= b.LongWindow {
		return fmt.Errorf("backtest.short_window (%d) must be < long_window (%d)", b.ShortWindow, b.LongWindow)
	}
	if b.WarmupIndex < 1 {
		return fmt.Errorf("backtest.warmup_index must be >= 1")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram.bot_token and chat_id are required when telegram is enabled")
	}
	return nil
}
