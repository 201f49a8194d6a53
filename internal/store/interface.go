package store

import (
	"context"
	"fmt"
	"strings"

	"hdytrend/internal/market"
)

// Version 是缓存记录布局的版本号。Bar 结构变化时必须递增，
// 新旧布局互不兼容，版本号进入 key 命名空间即可隔离。
const Version = "v2"

// CacheStore 以 key 存取有序 bar 序列。
//
// Get 在 key 不存在时返回 (nil, false, nil)；读失败返回 error。
// Set 整体覆盖该 key 的序列。
type CacheStore interface {
	Get(ctx context.Context, key string) ([]market.Bar, bool, error)
	Set(ctx context.Context, key string, bars []market.Bar) error
}

// Key 构造带版本前缀的缓存 key，例如 bars/v2/AAPL@1d。
func Key(symbol, interval string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		interval = "1d"
	}
	return fmt.Sprintf("bars/%s/%s@%s", Version, symbol, interval)
}

// SymbolFromKey 从 Key 生成的 key 中还原 symbol。
func SymbolFromKey(key string) string {
	rest := strings.TrimPrefix(key, "bars/"+Version+"/")
	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}
