package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avykov/simex/pkg/ledger"
	"github.com/avykov/simex/pkg/platform"
	"github.com/avykov/simex/pkg/sched"
)

func newTestServer(t *testing.T) (*Server, *platform.Platform) {
	t.Helper()
	log := zap.NewNop().Sugar()

	store, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	p := platform.New(store, log)
	require.NoError(t, p.CreateMarket("SIM", decimal.NewFromInt(1_000_000)))

	s := sched.New(4, log)
	srv := NewServer(p, s, log)

	t.Cleanup(func() {
		p.Close()
		store.Close()
	})
	return srv, p
}

func get(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, []byte) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec, body
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestGetMarkets(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := get(t, srv, "/api/v1/markets")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []MarketInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	require.Len(t, infos, 1)
	require.Equal(t, "SIM", infos[0].Symbol)
	// empty book: -1 sentinel
	require.True(t, infos[0].Price.Equal(decimal.NewFromInt(-1)))
}

func TestGetMarketNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := get(t, srv, "/api/v1/markets/NOPE")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBook(t *testing.T) {
	srv, p := newTestServer(t)

	b, err := p.Book("SIM")
	require.NoError(t, err)
	_, err = b.AddBuy("0xaaa", decimal.NewFromInt(9), decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = b.AddSell("0xbbb", decimal.NewFromInt(11), decimal.NewFromInt(5))
	require.NoError(t, err)

	rec, body := get(t, srv, "/api/v1/markets/SIM/book")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap BookSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	require.Equal(t, "0xbbb", snap.Asks[0].Wallet)
}

func TestGetPrice(t *testing.T) {
	srv, p := newTestServer(t)

	b, err := p.Book("SIM")
	require.NoError(t, err)
	_, err = b.AddSell("0xbbb", decimal.NewFromInt(42), decimal.NewFromInt(5))
	require.NoError(t, err)

	rec, body := get(t, srv, "/api/v1/markets/SIM/price")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(body), `"42"`)
}

func TestGetTrader(t *testing.T) {
	srv, p := newTestServer(t)

	w, err := p.CreateTrader(decimal.NewFromInt(777))
	require.NoError(t, err)

	rec, body := get(t, srv, "/api/v1/traders/"+w.Address)
	require.Equal(t, http.StatusOK, rec.Code)

	var info TraderInfo
	require.NoError(t, json.Unmarshal(body, &info))
	require.True(t, info.Balance.Equal(decimal.NewFromInt(777)))

	rec, _ = get(t, srv, "/api/v1/traders/0xmissing")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrders(t *testing.T) {
	srv, p := newTestServer(t)

	b, err := p.Book("SIM")
	require.NoError(t, err)
	_, err = b.AddBuy("0xaaa", decimal.NewFromInt(9), decimal.NewFromInt(10))
	require.NoError(t, err)

	rec, body := get(t, srv, "/api/v1/traders/0xaaa/orders")
	require.Equal(t, http.StatusOK, rec.Code)

	var orders map[string][]struct {
		Wallet string `json:"wallet"`
	}
	require.NoError(t, json.Unmarshal(body, &orders))
	require.Len(t, orders["SIM"], 1)
}

func TestGetSchedulerMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := get(t, srv, "/api/v1/scheduler")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(body), "processedTasks")
}

func TestPrometheusMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(body), "simex_scheduler_processed_tasks_total")
	require.Contains(t, string(body), `simex_book_depth{side="buy",symbol="SIM"}`)
}

func TestWebSocketChangeStream(t *testing.T) {
	srv, p := newTestServer(t)
	go srv.hub.Run()
	srv.watchMarket("SIM")

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{
		Op:       "subscribe",
		Channels: []string{"changes:SIM"},
	}))
	// Give the subscription a moment to land before trading.
	time.Sleep(50 * time.Millisecond)

	b, err := p.Book("SIM")
	require.NoError(t, err)
	_, err = b.AddSell("0xaaa", decimal.NewFromInt(10), decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = b.AddBuy("0xbbb", decimal.NewFromInt(10), decimal.NewFromInt(5))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update ChangeUpdate
	require.NoError(t, conn.ReadJSON(&update))
	require.Equal(t, "change", update.Type)
	require.Equal(t, "SIM", update.Symbol)
}
