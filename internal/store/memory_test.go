package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"hdytrend/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "bars/v2/AAPL@1d", Key(" aapl ", ""))
	assert.Equal(t, "bars/v2/BTCUSDT@1w", Key("BTCUSDT", "1W"))
	assert.Equal(t, "AAPL", SymbolFromKey(Key("aapl", "1d")))
}

func TestMemoryStore_GetSetIsolated(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	bars := []market.Bar{{Date: "2024-01-01", High: market.Price(2), Close: 1, Volume: 3}}
	require.NoError(t, st.Set(ctx, "k", bars))
	*bars[0].High = 99
	bars[0].Close = 99

	got, ok, err := st.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, 2.0, *got[0].High)

	got[0].Close = 42
	again, _, _ := st.Get(ctx, "k")
	assert.Equal(t, 1.0, again[0].Close)

	assert.Error(t, st.Set(ctx, "", bars))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	st := NewMemoryStoreWithShards(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, st.Set(ctx, "k", nil))
	_, _, err := st.Get(ctx, "k")
	assert.Error(t, err)
}

func TestMemoryStore_ConcurrentKeys(t *testing.T) {
	st := NewMemoryStoreWithShards(4)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = st.Set(context.Background(), fmt.Sprintf("k%02d", i), []market.Bar{{Date: "2024-01-01"}})
		}(i)
	}
	wg.Wait()
	keys := st.Keys()
	sort.Strings(keys)
	require.Len(t, keys, 32)
	assert.Equal(t, "k00", keys[0])
	assert.Equal(t, "k31", keys[31])
}

func TestHashKey_FNV1a(t *testing.T) {
	assert.Equal(t, uint32(0x811c9dc5), hashKey(""))
	assert.Equal(t, uint32(0xe40c292c), hashKey("a"))

	st := NewMemoryStoreWithShards(8)
	key := Key("BTCUSDT", "1d")
	assert.Same(t, st.shardFor(key), st.shardFor(key))
}
