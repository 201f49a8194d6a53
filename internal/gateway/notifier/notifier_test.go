package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlert_Markdown(t *testing.T) {
	msg := Alert{
		Icon:  "📈",
		Title: "BTCUSDT 信号",
		Sections: []Section{
			{Title: "成交", Lines: []string{"BUY @ 100", "  "}},
			{Title: "空段", Lines: []string{""}},
		},
		Footer: "has ``` fence",
		At:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	out := msg.Markdown()
	assert.True(t, strings.HasPrefix(out, "📈 BTCUSDT 信号"))
	assert.Contains(t, out, "- BUY @ 100")
	assert.NotContains(t, out, "空段")
	assert.Contains(t, out, "has ''' fence")
	assert.Contains(t, out, "2024-01-02 03:04:05 UTC")
}

func TestAlert_SignalSections(t *testing.T) {
	at := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	out := SignalAlert("ETHUSDT", "sell", true, at,
		TradeSection("2024-02-29", 3012.5, "volume MA10 下穿 MA100"),
		IndicatorSection(81.234, "overbought", "bullish"),
		BacktestSection("return=12.00%"),
	).Markdown()
	assert.True(t, strings.HasPrefix(out, "📉 ETHUSDT sell 信号"))
	assert.Contains(t, out, "- date=2024-02-29 price=3012.5000")
	assert.Contains(t, out, "- HDY=81.23 (overbought)")
	assert.Contains(t, out, "回测\n- return=12.00%")
}

func TestAlert_TruncatesOnRuneBoundary(t *testing.T) {
	for pad := 0; pad < 3; pad++ {
		title := strings.Repeat("x", pad) + strings.Repeat("行情同步降级", 400)
		out := Alert{Title: title}.Markdown()
		assert.True(t, utf8.ValidString(out), "pad=%d", pad)
		assert.True(t, strings.HasSuffix(out, "..."), "pad=%d", pad)
		assert.LessOrEqual(t, len(out), maxAlertBytes+len("..."), "pad=%d", pad)
	}

	lines := make([]string, 300)
	for i := range lines {
		lines[i] = "XRPUSDT rows=0: 上游行情接口超时"
	}
	out := DegradedAlert(lines, time.Now()).Markdown()
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), maxAlertBytes+len("..."))
}

func TestTelegram_SendTextRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, int32(2), hits.Load())
}

func TestTelegram_FailsAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond
	err := tg.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	assert.Error(t, NewTelegram("", "42").SendText(context.Background(), "x"))
	assert.NoError(t, Nop{}.SendText(context.Background(), "x"))
}

func TestTelegram_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond
	err := tg.SendText(context.Background(), "hello")
	assert.EqualError(t, err, "telegram status=400")
	assert.Equal(t, int32(1), hits.Load())
}
