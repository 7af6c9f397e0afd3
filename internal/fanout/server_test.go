package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polytrack/polytrack/internal/model"
	"github.com/polytrack/polytrack/internal/store"
	"github.com/polytrack/polytrack/internal/tracked"
)

func startServer(t *testing.T) (*httptest.Server, *Hub, model.TrackedMarket) {
	t.Helper()

	mem := store.NewMemory()
	market := mem.AddTrackedMarket(model.TrackedMarket{Slug: "rain", Title: "Will it rain?"})
	reg := tracked.NewRegistry(mem, testLogger())
	if err := reg.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	hub := NewHub(testFanoutConfig(), testLogger())
	if err := hub.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hub.Stop(ctx)
	})

	srv := httptest.NewServer(NewServer(testFanoutConfig(), hub, reg, testLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv, hub, market
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestServer_SubscribeAndReceive(t *testing.T) {
	srv, hub, market := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.SubscriberCount(market.ID) == 1 },
		"subscription not registered")

	hub.Publish(market.ID, testUpdate(market.ID))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var update model.Update
	if err := json.Unmarshal(data, &update); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if update.Type != "market_update" || update.MarketID != market.ID {
		t.Errorf("payload = %q/%d, want market_update/%d", update.Type, update.MarketID, market.ID)
	}
}

func TestServer_PingPong(t *testing.T) {
	srv, _, _ := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}

	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "pong" {
		t.Errorf("reply = %s, want pong", data)
	}
}

func TestServer_UnknownMarketRejected(t *testing.T) {
	srv, _, _ := startServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/999"), nil)
	if err == nil {
		t.Fatal("dial to untracked market should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %v, want 404", resp)
	}
}

func TestServer_InvalidMarketID(t *testing.T) {
	srv, _, _ := startServer(t)

	resp, err := http.Get(srv.URL + "/ws/not-a-number")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_DisconnectDeregisters(t *testing.T) {
	srv, hub, market := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool { return hub.SubscriberCount(market.ID) == 1 },
		"subscription not registered")

	conn.Close()
	waitFor(t, func() bool { return hub.SubscriberCount(market.ID) == 0 },
		"closed connection not deregistered")
}

func TestServer_Health(t *testing.T) {
	srv, _, _ := startServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var health struct {
		Status  string `json:"status"`
		Tracked int    `json:"tracked_markets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "healthy" || health.Tracked != 1 {
		t.Errorf("health = %+v, want healthy with 1 tracked market", health)
	}
}
