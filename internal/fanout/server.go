package fanout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polytrack/polytrack/internal/config"
	"github.com/polytrack/polytrack/internal/model"
)

// MarketLookup answers whether a market is currently tracked. Satisfied by
// the tracked registry.
type MarketLookup interface {
	Get(id int64) (model.TrackedMarket, bool)
	Markets() []model.TrackedMarket
}

// Server exposes the WebSocket subscription endpoint and the health check.
type Server struct {
	cfg     config.FanoutConfig
	hub     *Hub
	lookup  MarketLookup
	logger  *slog.Logger
	httpSrv *http.Server

	upgrader websocket.Upgrader
}

// NewServer creates the fanout HTTP server around a hub.
func NewServer(cfg config.FanoutConfig, hub *Hub, lookup MarketLookup, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		hub:    hub,
		lookup: lookup,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Subscriptions are read-only feeds; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{market_id}", s.handleSubscribe)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Start begins serving. The hub must already be started.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("fanout server listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("fanout server error", "err", err)
		}
	}()
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the route table. Used by tests via httptest.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// handleSubscribe upgrades the connection and registers it with the hub for
// the requested market.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	marketID, err := strconv.ParseInt(r.PathValue("market_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid market id", http.StatusBadRequest)
		return
	}
	if _, ok := s.lookup.Get(marketID); !ok {
		http.Error(w, "market not tracked", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	sub := s.hub.Subscribe(marketID, &wsConn{conn: conn})
	go s.readLoop(conn, sub)
}

// readLoop consumes client messages. The only expected inbound traffic is
// the ping keepalive; anything unreadable ends the subscription.
func (s *Server) readLoop(conn *websocket.Conn, sub *Subscriber) {
	defer s.hub.Unsubscribe(sub)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			// Replies ride the subscriber queue so the write pump stays
			// the only writer.
			sub.Enqueue([]byte(`{"type":"pong"}`))
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	markets := s.lookup.Markets()

	health := struct {
		Status  string         `json:"status"`
		Tracked int            `json:"tracked_markets"`
		Subs    map[string]int `json:"subscribers"`
	}{
		Status:  "healthy",
		Tracked: len(markets),
		Subs:    make(map[string]int),
	}
	if len(markets) == 0 {
		health.Status = "degraded"
	}
	for _, m := range markets {
		if n := s.hub.SubscriberCount(m.ID); n > 0 {
			health.Subs[strconv.FormatInt(m.ID, 10)] = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// wsConn adapts a gorilla connection to the hub's Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) WriteMessage(data []byte, deadline time.Time) error {
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
