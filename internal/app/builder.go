package app

import (
	"context"
	"fmt"
	"time"

	"hdytrend/internal/analysis"
	"hdytrend/internal/backtest"
	"hdytrend/internal/coins"
	"hdytrend/internal/config"
	"hdytrend/internal/datasync"
	"hdytrend/internal/gateway/binance"
	"hdytrend/internal/gateway/csvfile"
	"hdytrend/internal/gateway/httpjson"
	"hdytrend/internal/gateway/notifier"
	"hdytrend/internal/gateway/polygon"
	"hdytrend/internal/logger"
	"hdytrend/internal/market"
	"hdytrend/internal/store"
	"hdytrend/internal/store/gormstore"
	"hdytrend/internal/store/sqlite"
	apihttp "hdytrend/internal/transport/http/api"
)

// storeHandle 是构建出的缓存后端及其关闭函数。
type storeHandle struct {
	store store.CacheStore
	close func() error
}

type AppBuilder struct {
	cfg *config.Config

	sourceFn func(config.SourceConfig, market.Interval) (market.Source, error)
	storeFn  func(config.CacheConfig) (storeHandle, error)
	httpFn   func(config.AppConfig, apihttp.ReportService) (*apihttp.Server, error)
	notifyFn func(config.NotifyConfig) notifier.TextNotifier
}

type AppBuilderOption func(*AppBuilder)

// WithSource 替换行情源，主要用于测试。
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(config.SourceConfig, market.Interval) (market.Source, error) { return src, nil }
	}
}

// WithStore 替换缓存后端，主要用于测试。
func WithStore(st store.CacheStore) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(config.CacheConfig) (storeHandle, error) {
			return storeHandle{store: st, close: func() error { return nil }}, nil
		}
	}
}

// WithNotifier 替换告警通道，主要用于测试。
func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifyFn = func(config.NotifyConfig) notifier.TextNotifier { return n }
	}
}

// WithoutHTTP 不启动 HTTP 服务（例如 -once 模式）。
func WithoutHTTP() AppBuilderOption {
	return func(b *AppBuilder) {
		b.httpFn = func(config.AppConfig, apihttp.ReportService) (*apihttp.Server, error) { return nil, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:      cfg,
		sourceFn: buildSource,
		storeFn:  buildStore,
		httpFn:   buildHTTPServer,
		notifyFn: buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	interval, err := market.ParseInterval(cfg.Source.Interval)
	if err != nil {
		return nil, err
	}
	src, err := b.sourceFn(cfg.Source, interval)
	if err != nil {
		return nil, fmt.Errorf("构建行情源失败: %w", err)
	}
	handle, err := b.storeFn(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("构建缓存失败: %w", err)
	}
	cache, err := datasync.New(handle.store)
	if err != nil {
		_ = handle.close()
		return nil, err
	}
	sim := backtest.NewSimulator(backtest.Options{
		InitialCapital: cfg.Backtest.InitialCapital,
		ShortWindow:    cfg.Backtest.ShortWindow,
		LongWindow:     cfg.Backtest.LongWindow,
		WarmupIndex:    cfg.Backtest.WarmupIndex,
	})
	svc, err := analysis.NewService(analysis.ServiceConfig{
		Cache:         cache,
		Source:        src,
		Simulator:     sim,
		Interval:      interval.Key,
		MaxConcurrent: cfg.Sync.MaxConcurrent,
		TrendLookback: cfg.Trend.Lookback,
	})
	if err != nil {
		_ = handle.close()
		return nil, err
	}
	server, err := b.httpFn(cfg.App, svc)
	if err != nil {
		_ = handle.close()
		return nil, fmt.Errorf("构建 HTTP 服务失败: %w", err)
	}
	app := &App{
		cfg:        cfg,
		svc:        svc,
		http:       server,
		store:      handle.store,
		closeStore: handle.close,
		interval:   interval,
		sourceName: src.Name(),
		alerts:     newAlerter(cfg.Notify, b.notifyFn(cfg.Notify)),
		symbols:    buildSymbolProvider(cfg.Sync, time.Duration(cfg.Source.TimeoutSeconds)*time.Second),
	}
	app.Summary = app.buildSummary(ctx)
	return app, nil
}

func buildSource(cfg config.SourceConfig, interval market.Interval) (market.Source, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Kind {
	case "binance":
		return binance.New(binance.Config{
			RESTBaseURL:       cfg.Binance.RESTBaseURL,
			HTTPTimeout:       timeout,
			ProxyEnabled:      cfg.Binance.ProxyURL != "",
			RESTProxyURL:      cfg.Binance.ProxyURL,
			HistoryStart:      cfg.Binance.HistoryStart,
			PageLimit:         cfg.Binance.PageLimit,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, interval)
	case "polygon":
		return polygon.New(polygon.Config{
			APIKey:            cfg.Polygon.APIKey,
			HistoryStart:      cfg.Polygon.HistoryStart,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, interval)
	case "httpjson":
		h := cfg.HTTPJSON
		return httpjson.New(httpjson.Config{
			URLTemplate: h.URLTemplate,
			RowsPath:    h.RowsPath,
			Fields: httpjson.Fields{
				Date:   h.Fields.Date,
				Open:   h.Fields.Open,
				High:   h.Fields.High,
				Low:    h.Fields.Low,
				Close:  h.Fields.Close,
				Volume: h.Fields.Volume,
				Aux:    h.Fields.Aux,
			},
			DateFormat:        h.DateFormat,
			Headers:           h.Headers,
			Timeout:           timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			BreakerThreshold:  h.BreakerThreshold,
			BreakerCooldown:   time.Duration(h.BreakerCooldownSeconds) * time.Second,
		})
	case "csv":
		return csvfile.New(cfg.CSV.Dir)
	default:
		return nil, fmt.Errorf("未知行情源: %s", cfg.Kind)
	}
}

func buildStore(cfg config.CacheConfig) (storeHandle, error) {
	switch cfg.Backend {
	case "memory":
		st := store.NewMemoryStoreWithShards(cfg.Shards)
		return storeHandle{store: st, close: func() error { return nil }}, nil
	case "sqlite":
		st, err := sqlite.NewStore(cfg.Path)
		if err != nil {
			return storeHandle{}, err
		}
		return storeHandle{store: st, close: st.Close}, nil
	case "gorm":
		st, err := gormstore.NewGormStore(cfg.Path)
		if err != nil {
			return storeHandle{}, err
		}
		return storeHandle{store: st, close: st.Close}, nil
	default:
		return storeHandle{}, fmt.Errorf("未知缓存后端: %s", cfg.Backend)
	}
}

func buildSymbolProvider(cfg config.SyncConfig, timeout time.Duration) coins.SymbolProvider {
	static := coins.NewStaticProvider(cfg.Symbols)
	if cfg.SymbolsURL == "" {
		return static
	}
	return &coins.FallbackProvider{
		Primary:  coins.NewHTTPProvider(cfg.SymbolsURL, cfg.SymbolsPath, timeout),
		Fallback: static,
		OnError: func(err error) {
			logger.Warnf("[sync] 拉取 symbol 列表失败，使用配置列表: %v", err)
		},
	}
}

func buildHTTPServer(cfg config.AppConfig, svc apihttp.ReportService) (*apihttp.Server, error) {
	if cfg.HTTPAddr == "" || cfg.HTTPAddr == "off" {
		logger.Infof("[http] 未配置 http_addr，跳过 HTTP 服务")
		return nil, nil
	}
	return apihttp.NewServer(apihttp.Config{Addr: cfg.HTTPAddr, Service: svc})
}
