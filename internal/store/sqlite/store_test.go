package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"hdytrend/internal/market"
	"hdytrend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTripAndManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	st, err := NewStore(path)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	key := store.Key("AAPL", "1d")

	_, ok, err := st.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = st.Manifest(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	bars := []market.Bar{
		{Date: "2024-01-01", Open: market.Price(1), High: market.Price(2), Low: market.Price(0.5), Close: 1.5, Volume: 10},
		{Date: "2024-01-02", Close: 1.6, Volume: 11, Aux: market.Price(7)},
	}
	require.NoError(t, st.Set(ctx, key, bars))
	got, ok, err := st.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bars, got)

	bars = append(bars, market.Bar{Date: "2024-01-03", Close: 1.7, Volume: 12})
	require.NoError(t, st.Set(ctx, key, bars))
	m, ok, err := st.Manifest(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, m.Key)
	assert.Equal(t, "2024-01-01", m.FirstDate)
	assert.Equal(t, "2024-01-03", m.LastDate)
	assert.Equal(t, int64(3), m.Rows)
	assert.Positive(t, m.LastSyncAt)

	assert.Error(t, st.Set(ctx, " ", bars))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	st, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), "k", []market.Bar{{Date: "2024-01-01", Close: 1}}))
	require.NoError(t, st.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, ok, err := reopened.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore("  ")
	assert.Error(t, err)
}
