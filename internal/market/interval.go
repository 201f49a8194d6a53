package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Interval 描述缓存 key 使用的周期与数据源请求时使用的 interval 名称。
type Interval struct {
	Key            string
	Duration       time.Duration
	SourceInterval string
}

var supportedIntervals = map[string]Interval{
	"1d": {Key: "1d", Duration: 24 * time.Hour, SourceInterval: "1d"},
	"3d": {Key: "3d", Duration: 72 * time.Hour, SourceInterval: "3d"},
	"1w": {Key: "1w", Duration: 7 * 24 * time.Hour, SourceInterval: "1w"},
	"7d": {Key: "1w", Duration: 7 * 24 * time.Hour, SourceInterval: "1w"},
}

// DefaultInterval 是日线。
var DefaultInterval = supportedIntervals["1d"]

// ParseInterval 返回标准化周期；空字符串视为日线。
// bar 以日期为主键，因此只支持日线及以上的周期。
func ParseInterval(input string) (Interval, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	if key == "" {
		return DefaultInterval, nil
	}
	iv, ok := supportedIntervals[key]
	if !ok {
		return Interval{}, fmt.Errorf("不支持的周期: %s (可选 %s)", input, strings.Join(SupportedIntervals(), ","))
	}
	return iv, nil
}

// SupportedIntervals 返回所有支持的 key（排序后）。
func SupportedIntervals() []string {
	keys := make([]string, 0, len(supportedIntervals))
	for k := range supportedIntervals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DropUnclosed 丢弃尚未收盘的最后一根 bar。lastOpen 为该 bar 的开盘时间。
func (iv Interval) DropUnclosed(bars []Bar, lastOpen time.Time, now time.Time) []Bar {
	if len(bars) == 0 || iv.Duration <= 0 || lastOpen.IsZero() {
		return bars
	}
	if now.Before(lastOpen.Add(iv.Duration)) {
		return bars[:len(bars)-1]
	}
	return bars
}

// SinceMillis 把日期字符串转换为 UTC 零点的毫秒时间戳。
func SinceMillis(date string) (int64, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), time.UTC)
	if err != nil {
		return 0, fmt.Errorf("无效日期 %q: %w", date, err)
	}
	return t.UnixMilli(), nil
}

// DateFromMillis 返回毫秒时间戳对应的 UTC 日期。
func DateFromMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}
