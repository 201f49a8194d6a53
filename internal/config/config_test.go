package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
sync:
  symbols: [btcusdt, ETHUSDT, btcusdt, " "]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "text", cfg.App.LogFormat)
	assert.Equal(t, ":9991", cfg.App.HTTPAddr)
	assert.Equal(t, "binance", cfg.Source.Kind)
	assert.Equal(t, "1d", cfg.Source.Interval)
	assert.Equal(t, "https://fapi.binance.com", cfg.Source.Binance.RESTBaseURL)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Sync.Symbols)
	assert.Equal(t, 4, cfg.Sync.MaxConcurrent)
	assert.Equal(t, 3600, cfg.Sync.RefreshIntervalSeconds)
	assert.Equal(t, 100000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 10, cfg.Backtest.ShortWindow)
	assert.Equal(t, 100, cfg.Backtest.LongWindow)
	assert.Equal(t, 100, cfg.Backtest.WarmupIndex)
	assert.Equal(t, 60, cfg.Trend.Lookback)
}

func TestLoad_ExplicitZeroRefreshDisablesLoop(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
sync:
  refresh_interval_seconds: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Sync.RefreshIntervalSeconds)
}

func TestLoad_IncludesMergeInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
app:
  log_level: debug
cache:
  backend: memory
source:
  kind: csv
  csv:
    dir: /tmp/bars
`)
	path := writeFile(t, dir, "config.yaml", `
include: [base.yaml]
app:
  log_level: warn
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "csv", cfg.Source.Kind)
	assert.Equal(t, "/tmp/bars", cfg.Source.CSV.Dir)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeFile(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "cycle")
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
cache:
  backend: gorm
`)
	t.Setenv("HDYTREND_CACHE_BACKEND", "memory")
	t.Setenv("HDYTREND_SYNC_SYMBOLS", "solusdt,bnbusdt")
	t.Setenv("HDYTREND_SYNC_MAX_CONCURRENT", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, []string{"SOLUSDT", "BNBUSDT"}, cfg.Sync.Symbols)
	assert.Equal(t, 7, cfg.Sync.MaxConcurrent)
}

func TestLoad_NotifyDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
notify:
  on_signal: false
  telegram:
    enabled: true
    chat_id: "-100"
`)
	t.Setenv("HDYTREND_NOTIFY_TELEGRAM_BOT_TOKEN", "secret")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Notify.OnSignal)
	assert.True(t, cfg.Notify.OnDegraded)
	assert.Equal(t, "secret", cfg.Notify.Telegram.BotToken)
	assert.Equal(t, "-100", cfg.Notify.Telegram.ChatID)
}

func TestDefault_IsValid(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "binance", cfg.Source.Kind)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"bad kind":          "source:\n  kind: ftp\n",
		"httpjson no url":   "source:\n  kind: httpjson\n",
		"httpjson no token": "source:\n  kind: httpjson\n  httpjson:\n    url_template: http://x/kline\n",
		"csv no dir":        "source:\n  kind: csv\n",
		"polygon no key":    "source:\n  kind: polygon\n",
		"bad interval":      "source:\n  interval: 5m\n",
		"bad backend":       "cache:\n  backend: redis\n",
		"windows":           "backtest:\n  short_window: 100\n  long_window: 10\n",
		"log level":         "app:\n  log_level: loud\n",
		"negative refresh":  "sync:\n  refresh_interval_seconds: -1\n",
		"offset too large":  "sync:\n  refresh_interval_seconds: 60\n  refresh_offset_seconds: 60\n",
		"telegram no token": "notify:\n  telegram:\n    enabled: true\n",
		"bad cron":          "sync:\n  refresh_cron: every day\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}
