package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hdytrend/internal/config"
	"hdytrend/internal/datasync"
	"hdytrend/internal/market"
	"hdytrend/internal/scheduler"
	"hdytrend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Cache.Backend = backend
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	cfg.Sync.Symbols = []string{"BTCUSDT", "BADUSDT"}
	cfg.Sync.RefreshIntervalSeconds = 0
	return cfg
}

func fakeSource() market.SourceFunc {
	return func(_ context.Context, sym string, since *string) ([]market.Bar, error) {
		if sym == "BADUSDT" {
			return nil, errors.New("delisted")
		}
		out := make([]market.Bar, 0, 5)
		for i := 0; i < 5; i++ {
			d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format(market.DateLayout)
			if since != nil && d < *since {
				continue
			}
			out = append(out, market.Bar{Date: d, Close: float64(100 + i), Volume: 10})
		}
		return out, nil
	}
}

func TestApp_RunOnceAcrossBackends(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite", "gorm"} {
		t.Run(backend, func(t *testing.T) {
			a, err := NewApp(testConfig(t, backend), WithSource(fakeSource()), WithoutHTTP())
			require.NoError(t, err)
			defer a.Close()

			reports, err := a.RunOnce(context.Background())
			require.Error(t, err)
			require.Len(t, reports, 2)
			assert.Equal(t, datasync.OutcomeInitial, reports["BTCUSDT"].Sync.Outcome)
			assert.Len(t, reports["BTCUSDT"].Bars, 5)
			assert.Equal(t, datasync.OutcomeDegraded, reports["BADUSDT"].Sync.Outcome)

			again, err := a.RunOnce(context.Background())
			require.Error(t, err)
			assert.Equal(t, datasync.OutcomeUnchanged, again["BTCUSDT"].Sync.Outcome)

			series, err := cachedSeries(context.Background(), a.store, []string{store.Key("BTCUSDT", "1d"), store.Key("BADUSDT", "1d")})
			require.NoError(t, err)
			require.Len(t, series, 1)
			assert.Equal(t, int64(5), series[0].Rows)
			assert.Equal(t, "2024-05-05", series[0].LastDate)
		})
	}
}

func TestApp_RunReturnsWithoutLongRunningTasks(t *testing.T) {
	a, err := NewApp(testConfig(t, "memory"), WithSource(fakeSource()), WithoutHTTP())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	_, ok := a.Service().Report("BTCUSDT")
	assert.True(t, ok)
}

func TestApp_RefreshLoopStopsOnCancel(t *testing.T) {
	a, err := NewApp(testConfig(t, "memory"), WithSource(fakeSource()), WithoutHTTP())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.refreshLoop(ctx, scheduler.NewAlignedScheduler("test", 10*time.Millisecond, 0))
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop did not stop")
	}
}

func TestApp_RefreshRunnerSelection(t *testing.T) {
	cfg := testConfig(t, "memory")
	a, err := NewApp(cfg, WithSource(fakeSource()), WithoutHTTP())
	require.NoError(t, err)
	assert.Nil(t, a.refreshRunner())

	cfg.Sync.RefreshIntervalSeconds = 86400
	cfg.Sync.RefreshOffsetSeconds = 60
	aligned, ok := a.refreshRunner().(*scheduler.AlignedScheduler)
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, aligned.Interval)
	assert.Equal(t, time.Minute, aligned.Offset)

	cfg.Sync.RefreshCron = "5 0 * * *"
	cronRunner, ok := a.refreshRunner().(*scheduler.CronScheduler)
	require.True(t, ok)
	assert.Equal(t, "5 0 * * *", cronRunner.Spec)
}

func TestStartupSummary_String(t *testing.T) {
	a, err := NewApp(testConfig(t, "memory"), WithSource(fakeSource()), WithoutHTTP())
	require.NoError(t, err)
	require.NotNil(t, a.Summary)
	out := a.Summary.String()
	assert.Contains(t, out, "func interval=1d")
	assert.Contains(t, out, "BTCUSDT, BADUSDT")
	assert.Contains(t, out, "MA10/MA100")
	assert.Contains(t, out, "(无)")
}

func TestNewApp_Errors(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)

	cfg := testConfig(t, "memory")
	cfg.Source.Interval = "5m"
	_, err = NewApp(cfg, WithSource(fakeSource()), WithoutHTTP())
	assert.Error(t, err)

	cfg = testConfig(t, "redis")
	_, err = NewApp(cfg, WithSource(fakeSource()), WithoutHTTP())
	assert.Error(t, err)
}
