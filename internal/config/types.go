package config

import "strings"

// Config 是 hdytrend 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Source   SourceConfig   `toml:"source"`
	Cache    CacheConfig    `toml:"cache"`
	Sync     SyncConfig     `toml:"sync"`
	Backtest BacktestConfig `toml:"backtest"`
	Trend    TrendConfig    `toml:"trend"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
	HTTPAddr  string `toml:"http_addr"`
	// HotReload 开启后监听配置文件，变更时热更新日志级别。
	HotReload bool `toml:"hot_reload"`
}

// SourceConfig 选择行情源；Kind 为 binance / polygon / httpjson / csv。
type SourceConfig struct {
	Kind              string               `toml:"kind"`
	Interval          string               `toml:"interval"`
	TimeoutSeconds    int                  `toml:"timeout_seconds"`
	RequestsPerSecond float64              `toml:"requests_per_second"`
	Binance           BinanceSourceConfig  `toml:"binance"`
	Polygon           PolygonSourceConfig  `toml:"polygon"`
	HTTPJSON          HTTPJSONSourceConfig `toml:"httpjson"`
	CSV               CSVSourceConfig      `toml:"csv"`
}

type BinanceSourceConfig struct {
	RESTBaseURL  string `toml:"rest_base_url"`
	ProxyURL     string `toml:"proxy_url"`
	HistoryStart string `toml:"history_start"`
	PageLimit    int    `toml:"page_limit"`
}

type PolygonSourceConfig struct {
	APIKey       string `toml:"api_key"`
	HistoryStart string `toml:"history_start"`
}

type HTTPJSONSourceConfig struct {
	URLTemplate            string            `toml:"url_template"`
	RowsPath               string            `toml:"rows_path"`
	DateFormat             string            `toml:"date_format"`
	Headers                map[string]string `toml:"headers"`
	Fields                 FieldPaths        `toml:"fields"`
	BreakerThreshold       int               `toml:"breaker_threshold"`
	BreakerCooldownSeconds int               `toml:"breaker_cooldown_seconds"`
}

// FieldPaths 是每条记录内字段的 gjson 路径。
type FieldPaths struct {
	Date   string `toml:"date"`
	Open   string `toml:"open"`
	High   string `toml:"high"`
	Low    string `toml:"low"`
	Close  string `toml:"close"`
	Volume string `toml:"volume"`
	Aux    string `toml:"aux"`
}

type CSVSourceConfig struct {
	Dir string `toml:"dir"`
}

// CacheConfig 选择缓存后端；Backend 为 memory / sqlite / gorm。
type CacheConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	Shards  int    `toml:"shards"`
}

// SyncConfig 控制同步范围与定时刷新。SymbolsURL 非空时每轮从远程拉取
// symbol 列表，失败时退回 Symbols；RefreshOffsetSeconds 是相对整点边界的延迟。
// RefreshCron 非空时优先于按间隔对齐的刷新。
type SyncConfig struct {
	Symbols                []string `toml:"symbols"`
	SymbolsURL             string   `toml:"symbols_url"`
	SymbolsPath            string   `toml:"symbols_path"`
	MaxConcurrent          int      `toml:"max_concurrent"`
	RefreshIntervalSeconds int      `toml:"refresh_interval_seconds"`
	RefreshOffsetSeconds   int      `toml:"refresh_offset_seconds"`
	RefreshCron            string   `toml:"refresh_cron"`
}

type BacktestConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	ShortWindow    int     `toml:"short_window"`
	LongWindow     int     `toml:"long_window"`
	WarmupIndex    int     `toml:"warmup_index"`
}

type TrendConfig struct {
	Lookback int `toml:"lookback"`
}

// NotifyConfig 控制定时刷新后的告警推送。
type NotifyConfig struct {
	OnSignal   bool           `toml:"on_signal"`
	OnDegraded bool           `toml:"on_degraded"`
	Telegram   TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
