package wsbook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dasein108/cex-arbitrage-sub002/internal/market"
	"github.com/dasein108/cex-arbitrage-sub002/internal/xlog"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func TestHandle_StreamsBookTickerOverWebsocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(wireFrame{BidPrice: 100, BidQty: 5, AskPrice: 101, AskQty: 6})
		<-r.Context().Done()
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws"
	h := New("live-venue", false, wsURL, xlog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Init(ctx, market.Symbol{Base: "BTC", Quote: "USDT"}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bt := h.LatestBookTicker()
		if bt.BidPrice == 100 && bt.AskPrice == 101 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("book ticker never arrived over the websocket feed, last=%+v", h.LatestBookTicker())
}

func TestHandle_EmptyURLNeverStartsSubscriber(t *testing.T) {
	h := New("offline-venue", false, "", xlog.Nop())
	if err := h.Init(context.Background(), market.Symbol{Base: "BTC", Quote: "USDT"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// No feed configured: the book stays at its zero value, and
	// SetBook (as a test would call directly) still works.
	h.SetBook(10, 1, 11, 1)
	if got := h.LatestBookTicker().BidPrice; got != 10 {
		t.Fatalf("bid price = %v, want 10", got)
	}
}
