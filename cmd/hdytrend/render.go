package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"hdytrend/internal/analysis"
	"hdytrend/internal/gateway/csvfile"
	"hdytrend/internal/logger"
	"hdytrend/internal/market"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// render 按 symbol 排序输出报告；tail>0 时每个报告只保留最近 tail 条 bar。
func render(w io.Writer, reports map[string]analysis.Report, format string, tail int) error {
	out := make([]analysis.Report, 0, len(reports))
	for _, sym := range sortedSymbols(reports) {
		rep := reports[sym]
		if tail > 0 && len(rep.Bars) > tail {
			rep.Bars = rep.Bars[len(rep.Bars)-tail:]
		}
		out = append(out, rep)
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		renderTable(w, out)
		return nil
	default:
		return fmt.Errorf("不支持的输出格式: %s", format)
	}
}

// renderTable 每个 symbol 一行，只输出最新值与回测摘要。
func renderTable(w io.Writer, reports []analysis.Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Date", "Close", "HDY", "Zone", "Trend", "Trades", "Return%", "Bench%", "Win%", "Sync"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	for _, rep := range reports {
		date, closeStr, hdy, zone := "-", "-", "-", "-"
		if rep.Latest != nil {
			date = rep.Latest.Date
			closeStr = fmt.Sprintf("%.4f", rep.Latest.Close)
			hdy = fmt.Sprintf("%.2f", rep.Latest.HDY)
			zone = rep.Latest.HDYZone
		}
		table.Append([]string{
			rep.Symbol, date, closeStr, hdy, zone, rep.Trend.Bias,
			fmt.Sprintf("%d", rep.Backtest.TradeCount),
			rep.Backtest.ReturnRate, rep.Backtest.BenchmarkReturn, rep.Backtest.WinRate,
			string(rep.Sync.Outcome),
		})
	}
	table.Render()
}

func exportCSV(dir string, reports map[string]analysis.Report) error {
	for _, sym := range sortedSymbols(reports) {
		rep := reports[sym]
		if len(rep.Bars) == 0 {
			continue
		}
		bars := make([]market.Bar, len(rep.Bars))
		for i, b := range rep.Bars {
			bars[i] = b.Bar
		}
		path, err := csvfile.WriteFile(dir, sym, bars)
		if err != nil {
			return err
		}
		logger.Infof("已导出 %s (%d 条)", path, len(bars))
	}
	return nil
}

func sortedSymbols(reports map[string]analysis.Report) []string {
	syms := make([]string, 0, len(reports))
	for sym := range reports {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}
