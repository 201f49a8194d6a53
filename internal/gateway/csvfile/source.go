// Package csvfile 读写 <dir>/<SYMBOL>.csv 形式的本地行情文件。
package csvfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hdytrend/internal/logger"
	"hdytrend/internal/market"
	"hdytrend/internal/pkg/convert"

	"github.com/gocarina/gocsv"
)

// row 对应 CSV 的一行；表头缺少的列保持为空。
type row struct {
	Date   string `csv:"date"`
	Open   string `csv:"open"`
	High   string `csv:"high"`
	Low    string `csv:"low"`
	Close  string `csv:"close"`
	Volume string `csv:"volume"`
	Aux    string `csv:"aux"`
}

type Source struct {
	dir string
}

func New(dir string) (*Source, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("csv 目录不能为空")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("csv 目录不可用: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s 不是目录", dir)
	}
	return &Source{dir: dir}, nil
}

func (s *Source) Name() string { return "csv" }

func (s *Source) path(symbol string) string {
	return filepath.Join(s.dir, strings.ToUpper(strings.TrimSpace(symbol))+".csv")
}

func (s *Source) Fetch(ctx context.Context, symbol string, since *string) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(symbol))
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", symbol, err)
	}
	defer f.Close()

	var rows []*row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("csv %s 解析失败: %w", symbol, err)
	}
	out := make([]market.Bar, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		bar, ok := r.toBar()
		if !ok {
			skipped++
			continue
		}
		if since != nil && bar.Date < *since {
			continue
		}
		out = append(out, bar)
	}
	if skipped > 0 {
		logger.Warnf("[csv] %s 跳过 %d 行无效记录", symbol, skipped)
	}
	return market.Normalize(out), nil
}

func (r *row) toBar() (market.Bar, bool) {
	if r == nil {
		return market.Bar{}, false
	}
	date := strings.TrimSpace(r.Date)
	if len(date) > len(market.DateLayout) {
		date = date[:len(market.DateLayout)]
	}
	closePrice, ok := convert.ToFloat64OK(r.Close)
	if !ok || date == "" {
		return market.Bar{}, false
	}
	volume, _ := convert.ToFloat64OK(r.Volume)
	return market.Bar{
		Date:   date,
		Open:   convert.OptionalFloat64(r.Open),
		High:   convert.OptionalFloat64(r.High),
		Low:    convert.OptionalFloat64(r.Low),
		Close:  closePrice,
		Volume: volume,
		Aux:    convert.OptionalFloat64(r.Aux),
	}, true
}

// WriteFile 把 bars 写到 <dir>/<SYMBOL>.csv，覆盖已有文件。
func WriteFile(dir, symbol string, bars []market.Bar) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := (&Source{dir: dir}).path(symbol)
	rows := make([]*row, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, fromBar(b))
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return "", fmt.Errorf("csv 写入 %s 失败: %w", path, err)
	}
	return path, nil
}

func fromBar(b market.Bar) *row {
	return &row{
		Date:   b.Date,
		Open:   formatOptional(b.Open),
		High:   formatOptional(b.High),
		Low:    formatOptional(b.Low),
		Close:  formatFloat(b.Close),
		Volume: formatFloat(b.Volume),
		Aux:    formatOptional(b.Aux),
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
