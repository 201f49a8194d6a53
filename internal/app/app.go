package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hdytrend/internal/analysis"
	"hdytrend/internal/coins"
	"hdytrend/internal/config"
	"hdytrend/internal/logger"
	"hdytrend/internal/market"
	"hdytrend/internal/scheduler"
	"hdytrend/internal/store"
	apihttp "hdytrend/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→同步行情→对外提供报告。
type App struct {
	cfg        *config.Config
	svc        *analysis.Service
	http       *apihttp.Server
	store      store.CacheStore
	closeStore func() error
	interval   market.Interval
	sourceName string
	configPath string
	alerts     *alerter
	symbols    coins.SymbolProvider
	Summary    *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetFormat(cfg.App.LogFormat)
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(context.Background(), cfg, opts...)
}

// SetConfigPath 记录配置文件路径；app.hot_reload 开启时 Run 会监听它。
func (a *App) SetConfigPath(path string) {
	if a == nil {
		return
	}
	a.configPath = path
}

// Service 返回报告服务。
func (a *App) Service() *analysis.Service {
	if a == nil {
		return nil
	}
	return a.svc
}

// RunOnce 同步并分析全部配置的 symbol 一次。
func (a *App) RunOnce(ctx context.Context) (map[string]analysis.Report, error) {
	if a == nil || a.svc == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	symbols, err := a.symbols.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve symbols: %w", err)
	}
	reports, err := a.svc.RefreshAll(ctx, symbols)
	a.alerts.dispatch(ctx, reports)
	return reports, err
}

// Run 先做一次全量刷新，再并行运行 HTTP 服务与定时刷新，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.svc == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.cfg.App.HotReload && a.configPath != "" {
		if err := config.Watch(a.configPath, a.applyReload); err != nil {
			logger.Warnf("[config] 无法监听配置文件: %v", err)
		}
	}

	if _, err := a.RunOnce(ctx); err != nil {
		logger.Warnf("[app] 初次同步部分失败: %v", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	if runner := a.refreshRunner(); runner != nil {
		group.Go(func() error {
			a.refreshLoop(ctx, runner)
			return nil
		})
	}
	return group.Wait()
}

// refreshRunner 选择定时刷新方式：refresh_cron 优先，其次按间隔对齐；都未配置时返回 nil。
func (a *App) refreshRunner() scheduler.Runner {
	syncCfg := a.cfg.Sync
	if spec := strings.TrimSpace(syncCfg.RefreshCron); spec != "" {
		return scheduler.NewCronScheduler("refresh", spec)
	}
	every := time.Duration(syncCfg.RefreshIntervalSeconds) * time.Second
	if every <= 0 {
		return nil
	}
	offset := time.Duration(syncCfg.RefreshOffsetSeconds) * time.Second
	return scheduler.NewAlignedScheduler("refresh", every, offset)
}

// refreshLoop 每次触发执行一次 RunOnce，直到 ctx 取消。
func (a *App) refreshLoop(ctx context.Context, runner scheduler.Runner) {
	runner.Start(ctx, func(ctx context.Context) {
		if _, err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Warnf("[app] 定时同步部分失败: %v", err)
		}
	})
}

// applyReload 只热更新日志相关配置；其余字段需要重启生效。
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	prev := logger.Level()
	logger.SetLevel(cfg.App.LogLevel)
	if now := logger.Level(); now != prev {
		logger.Infof("[config] log_level %s -> %s", prev, now)
	}
}

// Close 释放缓存后端。
func (a *App) Close() error {
	if a == nil || a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}
