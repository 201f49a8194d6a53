package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":9991"
	defaultSourceKind        = "binance"
	defaultSourceInterval    = "1d"
	defaultSourceTimeout     = 15
	defaultSourceRPS         = 5
	defaultBinanceREST       = "https://fapi.binance.com"
	defaultBinanceStart      = "2019-09-01"
	defaultBreakerThreshold  = 3
	defaultBreakerCooldown   = 30
	defaultCacheBackend      = "sqlite"
	defaultCachePath         = "data/hdytrend.db"
	defaultCacheShards       = 16
	defaultSyncMaxConcurrent = 4
	defaultSyncRefresh       = 3600
	defaultInitialCapital    = 100000
	defaultShortWindow       = 10
	defaultLongWindow        = 100
	defaultWarmupIndex       = 100
	defaultTrendLookback     = 60
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Source.applyDefaults(keys)
	c.Cache.applyDefaults(keys)
	c.Sync.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Trend.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (s *SourceConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	applyFieldDefaults(keys,
		stringFieldDefault("source.kind", &s.Kind, defaultSourceKind),
		stringFieldDefault("source.interval", &s.Interval, defaultSourceInterval),
		intFieldDefault("source.timeout_seconds", &s.TimeoutSeconds, defaultSourceTimeout),
		floatFieldDefault("source.requests_per_second", &s.RequestsPerSecond, defaultSourceRPS),
		stringFieldDefault("source.binance.rest_base_url", &s.Binance.RESTBaseURL, defaultBinanceREST),
		stringFieldDefault("source.binance.history_start", &s.Binance.HistoryStart, defaultBinanceStart),
		intFieldDefault("source.httpjson.breaker_threshold", &s.HTTPJSON.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("source.httpjson.breaker_cooldown_seconds", &s.HTTPJSON.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func (c *CacheConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	applyFieldDefaults(keys,
		stringFieldDefault("cache.backend", &c.Backend, defaultCacheBackend),
		stringFieldDefault("cache.path", &c.Path, defaultCachePath),
		intFieldDefault("cache.shards", &c.Shards, defaultCacheShards),
	)
}

func (s *SyncConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	s.Symbols = normalizeList(s.Symbols)
	applyFieldDefaults(keys,
		intFieldDefault("sync.max_concurrent", &s.MaxConcurrent, defaultSyncMaxConcurrent),
		// 显式写 0 表示关闭定时刷新。
		intFieldDefault("sync.refresh_interval_seconds", &s.RefreshIntervalSeconds, defaultSyncRefresh),
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("backtest.initial_capital", &b.InitialCapital, defaultInitialCapital),
		intFieldDefault("backtest.short_window", &b.ShortWindow, defaultShortWindow),
		intFieldDefault("backtest.long_window", &b.LongWindow, defaultLongWindow),
		intFieldDefault("backtest.warmup_index", &b.WarmupIndex, defaultWarmupIndex),
	)
}

func (t *TrendConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("trend.lookback", &t.Lookback, defaultTrendLookback),
	)
}

// 未显式配置时两类告警都推送；只有 telegram.enabled 决定是否真正发送。
func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("notify.on_signal", &n.OnSignal, true),
		boolFieldDefault("notify.on_degraded", &n.OnDegraded, true),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func normalizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
