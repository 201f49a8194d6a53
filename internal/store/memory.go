package store

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"hdytrend/internal/market"
)

// MemoryStore 是进程内的分片 CacheStore，测试与无持久化部署使用。
type MemoryStore struct {
	shards []barShard
}

type barShard struct {
	mu   sync.RWMutex
	data map[string][]market.Bar
}

const defaultShardCount = 32

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithShards(defaultShardCount)
}

func NewMemoryStoreWithShards(shards int) *MemoryStore {
	if shards <= 0 {
		shards = 1
	}
	out := &MemoryStore{
		shards: make([]barShard, shards),
	}
	for i := range out.shards {
		out.shards[i] = barShard{data: make(map[string][]market.Bar)}
	}
	return out
}

func (s *MemoryStore) shardFor(key string) *barShard {
	idx := hashKey(key) % uint32(len(s.shards))
	return &s.shards[idx]
}

func (s *MemoryStore) Set(ctx context.Context, key string, bars []market.Bar) error {
	if key == "" {
		return errors.New("cache key 不能为空")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.data[key] = market.Clone(bars)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]market.Bar, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	cur, ok := sh.data[key]
	if !ok {
		return nil, false, nil
	}
	return market.Clone(cur), true, nil
}

// Keys 返回当前缓存的全部 key（无序）。
func (s *MemoryStore) Keys() []string {
	var out []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k := range sh.data {
			out = append(out, k)
		}
		sh.mu.RUnlock()
	}
	return out
}

func hashKey(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
