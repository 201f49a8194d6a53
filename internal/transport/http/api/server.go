// Package apihttp 提供报告查询与手动同步的 JSON API。
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"hdytrend/internal/analysis"
	"hdytrend/internal/logger"

	"github.com/gin-gonic/gin"
)

// ReportService 是 HTTP 层依赖的报告读写接口。
type ReportService interface {
	Report(symbol string) (analysis.Report, bool)
	Symbols() []string
	Refresh(ctx context.Context, symbol string) (analysis.Report, error)
}

// Server 以 JSON 形式暴露各 symbol 的指标与回测报告。
type Server struct {
	addr   string
	svc    ReportService
	router *gin.Engine
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr        string
	Service     ReportService
	SyncTimeout time.Duration
}

// NewServer 构建 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{addr: cfg.Addr, svc: cfg.Service, router: router}
	s.registerRoutes(cfg.SyncTimeout)
	return s, nil
}

func (s *Server) registerRoutes(syncTimeout time.Duration) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api")
	api.GET("/symbols", s.handleSymbols)
	sym := api.Group("/symbols/:symbol")
	sym.GET("/report", s.handleReport)
	sym.GET("/bars", s.handleBars)
	sym.GET("/backtest", s.handleBacktest)
	sym.POST("/sync", s.handleSync(syncTimeout))
}

// Handler 返回底层 http.Handler，便于测试与嵌入。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.svc.Symbols()})
}

func (s *Server) lookup(c *gin.Context) (analysis.Report, bool) {
	rep, ok := s.svc.Report(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
		return analysis.Report{}, false
	}
	return rep, true
}

func (s *Server) handleReport(c *gin.Context) {
	rep, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rep)
}

// handleBars 返回带指标的 bar；limit>0 时只返回最近 limit 条。
func (s *Server) handleBars(c *gin.Context) {
	rep, ok := s.lookup(c)
	if !ok {
		return
	}
	bars := rep.Bars
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit 必须是非负整数"})
			return
		}
		if limit > 0 && limit < len(bars) {
			bars = bars[len(bars)-limit:]
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": rep.Symbol,
		"total":  len(rep.Bars),
		"bars":   bars,
	})
}

func (s *Server) handleBacktest(c *gin.Context) {
	rep, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   rep.Symbol,
		"summary":  rep.Backtest.Summary(),
		"backtest": rep.Backtest,
	})
}

func (s *Server) handleSync(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		rep, err := s.svc.Refresh(ctx, c.Param("symbol"))
		if err != nil && len(rep.Bars) == 0 {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		resp := gin.H{
			"symbol": rep.Symbol,
			"id":     rep.ID,
			"sync":   rep.Sync,
			"latest": rep.Latest,
		}
		if err != nil {
			resp["error"] = err.Error()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Start 启动 HTTP 服务，ctx 取消时优雅关闭。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[http] 监听 %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// requestLogger 记录接口调用，便于追踪刷新与查询。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("[http] %s %s status=%d ip=%s dur=%s",
			c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
