package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hdytrend/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "600519.csv", "date,close,volume,aux\n"+
		"2024-01-03,12,300,3600\n"+
		"2024-01-01,10,100,\n"+
		"2024-01-02 00:00:00,11,200,2200\n"+
		",9,1,\n"+
		"2024-01-04,,1,\n")

	src, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "csv", src.Name())

	bars, err := src.Fetch(context.Background(), "600519", nil)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"},
		[]string{bars[0].Date, bars[1].Date, bars[2].Date})
	assert.Nil(t, bars[0].Aux)
	assert.Nil(t, bars[0].High)
	require.NotNil(t, bars[2].Aux)
	assert.Equal(t, 3600.0, *bars[2].Aux)

	since := "2024-01-02"
	tail, err := src.Fetch(context.Background(), "600519", &since)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "2024-01-02", tail[0].Date)
}

func TestSource_MissingFile(t *testing.T) {
	src, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), "NOPE", nil)
	assert.Error(t, err)
}

func TestNew_RequiresDirectory(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
	_, err = New(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestWriteFile_RoundTripsThroughSource(t *testing.T) {
	dir := t.TempDir()
	bars := []market.Bar{
		{Date: "2024-02-01", Open: market.Price(1), High: market.Price(2), Low: market.Price(0.5), Close: 1.5, Volume: 10},
		{Date: "2024-02-02", Close: 1.75, Volume: 12, Aux: market.Price(21)},
	}
	path, err := WriteFile(dir, "btcusdt", bars)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "BTCUSDT.csv"), path)

	src, err := New(dir)
	require.NoError(t, err)
	got, err := src.Fetch(context.Background(), "BTCUSDT", nil)
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}
