// Package datasync keeps the cached bar series of each symbol in step with
// its remote source. It is the only writer of store.CacheStore entries.
package datasync

import (
	"context"
	"errors"
	"fmt"

	"hdytrend/internal/logger"
	"hdytrend/internal/market"
	"hdytrend/internal/store"

	"golang.org/x/sync/errgroup"
)

// FetchFunc 拉取 since（含）之后的 bar；since 为 nil 时拉取全部历史。
type FetchFunc func(ctx context.Context, since *string) ([]market.Bar, error)

// Outcome 描述一次同步走过的路径，便于日志与测试观察。
type Outcome string

const (
	OutcomeInitial   Outcome = "initial"
	OutcomeAppended  Outcome = "appended"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFallback  Outcome = "fallback"
	OutcomeDegraded  Outcome = "degraded"
)

// Result 是 SyncDetailed 的返回值。
type Result struct {
	Key      string
	Bars     []market.Bar
	Outcome  Outcome
	Appended int
	Written  bool
	// Err 仅在 SyncAll 中填充，是该 key 自身的同步错误。
	Err error
}

// Cache 协调缓存读取、增量拉取与合并写回。
type Cache struct {
	store store.CacheStore
	locks *keyedMutex
}

func New(st store.CacheStore) (*Cache, error) {
	if st == nil {
		return nil, fmt.Errorf("cache store 不能为空")
	}
	return &Cache{store: st, locks: newKeyedMutex()}, nil
}

// Sync 返回 key 对应的合并后序列（日期唯一且严格递增）。
//
// 缓存读写失败或增量拉取失败时改走不落盘的全量拉取；只有全量拉取也失败时才
// 返回 error，此时 bars 为已有缓存（可能为空），调用方可据此展示降级结果。
func (c *Cache) Sync(ctx context.Context, key string, fetch FetchFunc) ([]market.Bar, error) {
	res, err := c.SyncDetailed(ctx, key, fetch)
	return res.Bars, err
}

func (c *Cache) SyncDetailed(ctx context.Context, key string, fetch FetchFunc) (Result, error) {
	if fetch == nil {
		return Result{Key: key}, fmt.Errorf("fetch 不能为空")
	}
	unlock := c.locks.Lock(key)
	defer unlock()

	cached, _, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warnf("[datasync] %s 读取缓存失败，改为全量拉取: %v", key, err)
		return c.fallback(ctx, key, fetch, nil)
	}

	lastDate, hasCache := market.LastDate(cached)
	var since *string
	if hasCache {
		since = &lastDate
	}
	fetched, err := fetch(ctx, since)
	if err != nil {
		logger.Warnf("[datasync] %s 增量拉取失败，改为全量拉取: %v", key, err)
		return c.fallback(ctx, key, fetch, cached)
	}
	if len(fetched) == 0 {
		return Result{Key: key, Bars: cached, Outcome: OutcomeUnchanged}, nil
	}

	if !hasCache {
		initial := market.Normalize(fetched)
		if err := ctx.Err(); err != nil {
			return Result{Key: key, Bars: cached, Outcome: OutcomeDegraded}, err
		}
		if err := c.store.Set(ctx, key, initial); err != nil {
			logger.Warnf("[datasync] %s 写入缓存失败，改为全量拉取: %v", key, err)
			return c.fallback(ctx, key, fetch, cached)
		}
		logger.Infof("[datasync] %s 初始化缓存 %d 条", key, len(initial))
		return Result{Key: key, Bars: initial, Outcome: OutcomeInitial, Appended: len(initial), Written: true}, nil
	}

	fresh := market.Normalize(market.After(fetched, lastDate))
	if len(fresh) == 0 {
		return Result{Key: key, Bars: cached, Outcome: OutcomeUnchanged}, nil
	}
	merged := make([]market.Bar, 0, len(cached)+len(fresh))
	merged = append(merged, cached...)
	merged = append(merged, fresh...)
	if err := ctx.Err(); err != nil {
		return Result{Key: key, Bars: cached, Outcome: OutcomeDegraded}, err
	}
	if err := c.store.Set(ctx, key, merged); err != nil {
		logger.Warnf("[datasync] %s 写入缓存失败，改为全量拉取: %v", key, err)
		return c.fallback(ctx, key, fetch, cached)
	}
	logger.Debugf("[datasync] %s 追加 %d 条，last=%s", key, len(fresh), fresh[len(fresh)-1].Date)
	return Result{Key: key, Bars: merged, Outcome: OutcomeAppended, Appended: len(fresh), Written: true}, nil
}

// fallback 不依赖缓存直接全量拉取，结果不落盘，但仍保证日期唯一递增。
func (c *Cache) fallback(ctx context.Context, key string, fetch FetchFunc, cached []market.Bar) (Result, error) {
	full, err := fetch(ctx, nil)
	if err != nil {
		logger.Errorf("[datasync] %s 全量拉取失败: %v", key, err)
		return Result{Key: key, Bars: cached, Outcome: OutcomeDegraded}, fmt.Errorf("sync %s: %w", key, err)
	}
	return Result{Key: key, Bars: market.Normalize(full), Outcome: OutcomeFallback}, nil
}

// Syncer 为每个 key 提供拉取函数。
type Syncer func(key string) FetchFunc

// SyncAll 并发同步多个 key，最多 maxConcurrent 个同时进行。单个 key 失败不影响
// 其它 key，失败信息合并为一个 error 返回。
func (c *Cache) SyncAll(ctx context.Context, keys []string, fetchFor Syncer, maxConcurrent int) (map[string]Result, error) {
	if fetchFor == nil {
		return nil, fmt.Errorf("fetchFor 不能为空")
	}
	results := make([]Result, len(keys))
	errs := make([]error, len(keys))
	var group errgroup.Group
	if maxConcurrent > 0 {
		group.SetLimit(maxConcurrent)
	}
	for i, key := range keys {
		i, key := i, key
		group.Go(func() error {
			results[i], errs[i] = c.SyncDetailed(ctx, key, fetchFor(key))
			results[i].Err = errs[i]
			return nil
		})
	}
	_ = group.Wait()
	out := make(map[string]Result, len(keys))
	for i, key := range keys {
		out[key] = results[i]
	}
	return out, errors.Join(errs...)
}
