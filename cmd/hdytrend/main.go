package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"hdytrend/internal/app"
	"hdytrend/internal/config"
	"hdytrend/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	var (
		cfgPath   = flag.String("config", envOr("HDYTREND_CONFIG", "configs/config.yaml"), "配置文件路径")
		once      = flag.Bool("once", false, "同步并输出一次报告后退出")
		format    = flag.String("format", "json", "-once 输出格式: json|yaml|table")
		barsTail  = flag.Int("bars", 5, "-once 输出中每个 symbol 保留的最近 bar 数，0 表示全部")
		exportDir = flag.String("export-csv", "", "-once 时把同步后的 bar 写入该目录")
		symbols   = flag.String("symbols", "", "覆盖配置中的 symbol 列表（逗号分隔）")
		envFile   = flag.String("env", ".env", "启动前加载的 dotenv 文件，不存在时忽略")
	)
	flag.Parse()

	if err := loadDotenv(*envFile); err != nil {
		log.Fatalf("读取 %s 失败: %v", *envFile, err)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	if s := strings.TrimSpace(*symbols); s != "" {
		cfg.Sync.Symbols = strings.Split(s, ",")
		cfg.Sync.SymbolsURL = ""
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.Infof("✓ 配置加载成功（环境=%s，行情源=%s，缓存=%s）", cfg.App.Env, cfg.Source.Kind, cfg.Cache.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []app.AppBuilderOption
	if *once {
		opts = append(opts, app.WithoutHTTP())
	}
	a, err := app.NewApp(cfg, opts...)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer a.Close()

	if *once {
		reports, err := a.RunOnce(ctx)
		if err != nil {
			logger.Warnf("部分 symbol 同步失败: %v", err)
		}
		if *exportDir != "" {
			if err := exportCSV(*exportDir, reports); err != nil {
				log.Fatalf("导出 CSV 失败: %v", err)
			}
		}
		if err := render(os.Stdout, reports, *format, *barsTail); err != nil {
			log.Fatalf("输出报告失败: %v", err)
		}
		return
	}

	a.SetConfigPath(*cfgPath)
	if err := a.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

// loadConfig 读取配置文件；文件不存在时退回默认配置（仍支持环境变量覆盖）。
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Printf("配置文件 %s 不存在，使用默认配置", path)
		return config.Default()
	}
	return config.Load(path)
}

// loadDotenv 不覆盖已存在的环境变量，便于在 .env 中存放 token 一类的密钥。
func loadDotenv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stderr, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
