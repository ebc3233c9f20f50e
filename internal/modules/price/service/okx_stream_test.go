package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"divergence_bot/internal/models"
	"divergence_bot/internal/modules/config"

	"github.com/gorilla/websocket"
)

func newTestStream(url string) *OKXStream {
	s := NewOKXStream(config.PriceConfig{WSURL: url, Timeout: time.Second, Freshness: time.Minute})
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestOKXStream_Handle(t *testing.T) {
	s := newTestStream("")
	ts := fixedNow.Add(-10 * time.Second).UnixMilli()

	frame := `{"arg":{"channel":"mark-price","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","markPx":"64000.5","ts":"` +
		itoa(ts) + `"}]}`
	if _, err := s.handle([]byte(frame)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	px, err := s.Fetch(context.Background(), models.AssetBTC)
	if err != nil || px != 64000.5 {
		t.Fatalf("px=%v err=%v", px, err)
	}

	if _, err := s.Fetch(context.Background(), models.AssetETH); !errors.Is(err, ErrStale) {
		t.Fatalf("eth err=%v, want stale (no data yet)", err)
	}

	ok, err := s.handle([]byte(`{"event":"subscribe","arg":{"channel":"mark-price","instId":"ETH-USDT-SWAP"}}`))
	if err != nil || !ok {
		t.Fatalf("subscribe ack: ok=%v err=%v", ok, err)
	}
	if _, err := s.handle([]byte(`{"event":"error","code":"60012","msg":"Invalid request"}`)); err == nil {
		t.Fatalf("error event must end the session")
	}
	if _, err := s.handle([]byte("pong")); err != nil {
		t.Fatalf("pong: %v", err)
	}
}

func TestOKXStream_StaleAndOutOfOrder(t *testing.T) {
	s := newTestStream("")
	s.store(models.AssetETH, models.Sample{Time: fixedNow.Add(-2 * time.Minute), Price: 3000})
	if _, err := s.Fetch(context.Background(), models.AssetETH); !errors.Is(err, ErrStale) {
		t.Fatalf("err=%v, want stale", err)
	}

	s.store(models.AssetETH, models.Sample{Time: fixedNow, Price: 3100})
	s.store(models.AssetETH, models.Sample{Time: fixedNow.Add(-time.Second), Price: 1})
	if px, _ := s.Fetch(context.Background(), models.AssetETH); px != 3100 {
		t.Fatalf("older frame overwrote newer: %v", px)
	}
}

func TestOKXStream_RunAgainstServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, sub, err := conn.ReadMessage()
		if err != nil || !strings.Contains(string(sub), "mark-price") {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe","arg":{"channel":"mark-price","instId":"BTC-USDT-SWAP"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"arg":{"channel":"mark-price","instId":"ETH-USDT-SWAP"},"data":[{"instId":"ETH-USDT-SWAP","markPx":"3300","ts":"`+itoa(time.Now().UnixMilli())+`"}]}`))
		// держим соединение до закрытия клиентом
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewOKXStream(config.PriceConfig{WSURL: "ws" + strings.TrimPrefix(srv.URL, "http"), Timeout: time.Second, Freshness: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		if px, err := s.Fetch(context.Background(), models.AssetETH); err == nil && px == 3300 && s.Connected() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no mark price received from stream")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
