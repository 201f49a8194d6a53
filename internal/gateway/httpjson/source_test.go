package httpjson

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hdytrend/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{
  "code": 0,
  "data": {
    "klines": [
      {"d": "2024/01/03", "o": "11", "h": "12", "l": "10", "c": "11.5", "v": 300, "amt": "-"},
      {"d": "2024/01/01", "o": "9", "h": "10", "l": "8", "c": "9.5", "v": 100, "amt": "950"},
      {"d": "2024/01/02", "o": "10", "h": "11", "l": "9", "c": "10.5", "v": "200", "amt": "2100"},
      {"d": "2024/01/02", "o": "10", "h": "11", "l": "9", "c": "10.6", "v": "210", "amt": "2200"},
      {"d": "bad", "c": "1"},
      {"d": "2024/01/04", "c": ""}
    ]
  }
}`

func testConfig(url string) Config {
	return Config{
		URLTemplate: url + "/kline?code={symbol}&since={since}",
		RowsPath:    "data.klines",
		Fields:      Fields{Date: "d", Open: "o", High: "h", Low: "l", Close: "c", Volume: "v", Aux: "amt"},
		DateFormat:  "2006/01/02",
		Headers:     map[string]string{"X-Token": "t"},
	}
}

func TestSource_FetchParsesAndNormalizes(t *testing.T) {
	var gotQuery, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotToken = r.Header.Get("X-Token")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	src, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	bars, err := src.Fetch(context.Background(), "600519", nil)
	require.NoError(t, err)

	assert.Equal(t, "code=600519&since=", gotQuery)
	assert.Equal(t, "t", gotToken)
	require.Len(t, bars, 3)
	assert.Equal(t, "2024-01-01", bars[0].Date)
	assert.Equal(t, "2024-01-02", bars[1].Date)
	assert.Equal(t, 10.6, bars[1].Close, "duplicate dates keep the later row")
	assert.Equal(t, 210.0, bars[1].Volume)
	assert.Equal(t, "2024-01-03", bars[2].Date)
	assert.Nil(t, bars[2].Aux)
	require.NotNil(t, bars[0].High)
	assert.Equal(t, 10.0, *bars[0].High)
}

func TestSource_FetchHonoursSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	src, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	since := "2024-01-02"
	bars, err := src.Fetch(context.Background(), "600519", &since)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-02", bars[0].Date)
}

func TestSource_UnixMillisDates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"t": 1704067200000, "close": 1, "volume": 2}]`))
	}))
	defer srv.Close()

	src, err := New(Config{URLTemplate: srv.URL + "/{symbol}", Fields: Fields{Date: "t"}, DateFormat: "unix_ms"})
	require.NoError(t, err)
	bars, err := src.Fetch(context.Background(), "X", nil)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2024-01-01", bars[0].Date)
	assert.Equal(t, 2.0, bars[0].Volume)
}

func TestSource_BreakerOpensOnRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BreakerThreshold = 2
	cfg.BreakerCooldown = time.Hour
	cfg.RequestsPerSecond = 1000
	src, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := src.Fetch(context.Background(), "A", nil)
		require.Error(t, err)
	}
	_, err = src.Fetch(context.Background(), "A", nil)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSource_RejectsNonArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"klines": null}}`))
	}))
	defer srv.Close()

	src, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), "A", nil)
	assert.Error(t, err)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{URLTemplate: "http://x/kline"})
	assert.Error(t, err)
}
