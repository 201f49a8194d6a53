package notifier

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// maxAlertBytes 低于 Telegram 单条 4096 字符的上限，截断后追加省略号。
const maxAlertBytes = 3800

// Section 是告警中的一个分组，渲染在同一个代码块里。
type Section struct {
	Title string
	Lines []string
}

// Alert 是一条行情告警：交叉信号或同步降级。
type Alert struct {
	Icon     string
	Title    string
	Sections []Section
	Footer   string
	At       time.Time
}

// SignalAlert 描述最后一根 bar 上发生的成交。
func SignalAlert(symbol, side string, sell bool, at time.Time, sections ...Section) Alert {
	icon := "📈"
	if sell {
		icon = "📉"
	}
	return Alert{
		Icon:     icon,
		Title:    fmt.Sprintf("%s %s 信号", symbol, side),
		Sections: sections,
		At:       at,
	}
}

// DegradedAlert 汇总本轮同步降级的 symbol。
func DegradedAlert(lines []string, at time.Time) Alert {
	return Alert{
		Icon:     "⚠️",
		Title:    "行情同步降级",
		Sections: []Section{{Title: "symbols", Lines: lines}},
		Footer:   "已使用缓存数据继续计算",
		At:       at,
	}
}

func TradeSection(date string, price float64, reason string) Section {
	return Section{Title: "成交", Lines: []string{
		fmt.Sprintf("date=%s price=%.4f", date, price),
		reason,
	}}
}

func IndicatorSection(hdy float64, zone, bias string) Section {
	return Section{Title: "指标", Lines: []string{
		fmt.Sprintf("HDY=%.2f (%s)", hdy, zone),
		fmt.Sprintf("趋势=%s", bias),
	}}
}

func BacktestSection(summary string) Section {
	return Section{Title: "回测", Lines: []string{summary}}
}

// Markdown 渲染为 Telegram Markdown，超长时按 rune 边界截断。
func (a Alert) Markdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(a.Icon + " " + a.Title); header != "" {
		b.WriteString(header + "\n\n")
	}
	b.WriteString(renderSections(a.Sections))
	if footer := strings.TrimSpace(a.Footer); footer != "" {
		b.WriteString(escapeFence(footer) + "\n")
	}
	if !a.At.IsZero() {
		b.WriteString("时间：" + a.At.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return truncate(strings.TrimSpace(b.String()), maxAlertBytes)
}

func renderSections(secs []Section) string {
	var blocks []string
	for _, sec := range secs {
		var lines []string
		for _, line := range sec.Lines {
			if text := strings.TrimSpace(line); text != "" {
				lines = append(lines, "- "+escapeFence(text))
			}
		}
		if len(lines) == 0 {
			continue
		}
		if title := strings.TrimSpace(sec.Title); title != "" {
			lines = append([]string{escapeFence(title)}, lines...)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	if len(blocks) == 0 {
		return ""
	}
	return "```\n" + strings.Join(blocks, "\n\n") + "\n```\n\n"
}

// truncate 保证结果不超过 max 字节（不含省略号）且仍是合法 UTF-8。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
