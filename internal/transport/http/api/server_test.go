package apihttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hdytrend/internal/analysis"
	"hdytrend/internal/datasync"
	"hdytrend/internal/market"
	"hdytrend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func bars(n int) []market.Bar {
	out := make([]market.Bar, n)
	for i := range out {
		out[i] = market.Bar{
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format(market.DateLayout),
			Close:  float64(10 + i),
			Volume: 100,
		}
	}
	return out
}

func newTestServer(t *testing.T, src market.SourceFunc) (*Server, *analysis.Service) {
	t.Helper()
	cache, err := datasync.New(store.NewMemoryStore())
	require.NoError(t, err)
	svc, err := analysis.NewService(analysis.ServiceConfig{Cache: cache, Source: src})
	require.NoError(t, err)
	srv, err := NewServer(Config{Service: svc})
	require.NoError(t, err)
	return srv, svc
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_ReportEndpoints(t *testing.T) {
	srv, svc := newTestServer(t, func(context.Context, string, *string) ([]market.Bar, error) {
		return bars(40), nil
	})
	_, err := svc.Refresh(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/symbols")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTCUSDT", gjson.Get(rec.Body.String(), "symbols.0").String())

	rec = do(t, srv, http.MethodGet, "/api/symbols/btcusdt/report")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "BTCUSDT", gjson.Get(body, "symbol").String())
	assert.Equal(t, int64(40), gjson.Get(body, "bars.#").Int())
	assert.Equal(t, "2024-01-01", gjson.Get(body, "bars.0.date").String())
	assert.Equal(t, gjson.Null, gjson.Get(body, "bars.0.ma5").Type)
	assert.Equal(t, 12.0, gjson.Get(body, "bars.4.ma5").Float())
	assert.Equal(t, "0.00", gjson.Get(body, "backtest.return_rate").String())

	rec = do(t, srv, http.MethodGet, "/api/symbols/BTCUSDT/bars?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), gjson.Get(rec.Body.String(), "bars.#").Int())
	assert.Equal(t, int64(40), gjson.Get(rec.Body.String(), "total").Int())
	assert.Equal(t, "2024-02-09", gjson.Get(rec.Body.String(), "bars.4.date").String())

	rec = do(t, srv, http.MethodGet, "/api/symbols/BTCUSDT/bars?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/symbols/BTCUSDT/backtest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, gjson.Get(rec.Body.String(), "summary").String())

	rec = do(t, srv, http.MethodGet, "/api/symbols/DOGEUSDT/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SyncEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, func(_ context.Context, sym string, _ *string) ([]market.Bar, error) {
		if sym == "BADUSDT" {
			return nil, errors.New("unknown symbol")
		}
		return bars(3), nil
	})

	rec := do(t, srv, http.MethodPost, "/api/symbols/ethusdt/sync")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "initial", gjson.Get(rec.Body.String(), "sync.outcome").String())
	_, ok := svc.Report("ETHUSDT")
	assert.True(t, ok)

	rec = do(t, srv, http.MethodPost, "/api/symbols/BADUSDT/sync")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "error").String(), "unknown symbol")
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, func(context.Context, string, *string) ([]market.Bar, error) { return nil, nil })
	rec := do(t, srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ":9991", srv.Addr())
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}
