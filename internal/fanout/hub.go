package fanout

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/polytrack/polytrack/internal/config"
	"github.com/polytrack/polytrack/internal/model"
)

// Conn is the transport surface the hub writes to. Satisfied by the
// gorilla/websocket adapter in server.go and by fakes in tests.
type Conn interface {
	// WriteMessage writes one payload, failing once the deadline passes.
	WriteMessage(data []byte, deadline time.Time) error
	Close() error
}

// Subscriber is one registered consumer of a market's updates.
type Subscriber struct {
	marketID int64
	conn     Conn
	queue    chan []byte
	done     chan struct{}
	once     sync.Once
}

// Enqueue offers a payload to the subscriber without blocking. Returns false
// when the queue is full.
func (s *Subscriber) Enqueue(data []byte) bool {
	select {
	case s.queue <- data:
		return true
	default:
		return false
	}
}

// Done is closed once the subscriber has been dropped.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

type event struct {
	marketID int64
	data     []byte
}

// Hub routes pipeline completion events to per-market subscriber sets.
type Hub struct {
	cfg    config.FanoutConfig
	logger *slog.Logger
	events *Buffer[event]

	mu   sync.RWMutex
	subs map[int64]map[*Subscriber]struct{}

	wg sync.WaitGroup
}

// NewHub creates a hub. Call Start before publishing.
func NewHub(cfg config.FanoutConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		events: NewBuffer[event](cfg.QueueSize),
		subs:   make(map[int64]map[*Subscriber]struct{}),
	}
}

// Start launches the dispatch loop.
func (h *Hub) Start(ctx context.Context) error {
	h.wg.Add(1)
	go h.dispatchLoop()

	h.logger.Info("fanout hub started",
		"send_timeout", h.cfg.SendTimeout,
		"queue_size", h.cfg.QueueSize,
	)
	return nil
}

// Stop drains the event queue and drops every subscriber.
func (h *Hub) Stop(ctx context.Context) error {
	h.events.Close()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.mu.Lock()
	for _, set := range h.subs {
		for sub := range set {
			sub.close()
		}
	}
	h.subs = make(map[int64]map[*Subscriber]struct{})
	h.mu.Unlock()

	h.logger.Info("fanout hub stopped")
	return nil
}

// Publish implements the scheduler's Publisher: one payload per completed
// market cycle, encoded once and fanned out to every subscriber.
func (h *Hub) Publish(marketID int64, update model.Update) {
	data, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("encode update", "market_id", marketID, "err", err)
		return
	}
	h.events.Send(event{marketID: marketID, data: data})
}

// Subscribe registers a connection for a market's updates and starts its
// writer.
func (h *Hub) Subscribe(marketID int64, conn Conn) *Subscriber {
	sub := &Subscriber{
		marketID: marketID,
		conn:     conn,
		queue:    make(chan []byte, h.cfg.QueueSize),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subs[marketID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[marketID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	go h.writePump(sub)

	h.logger.Debug("subscriber added", "market_id", marketID)
	return sub
}

// Unsubscribe drops a subscriber and closes its connection.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sub.marketID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.marketID)
		}
	}
	h.mu.Unlock()

	sub.close()
}

// SubscriberCount returns the number of subscribers for a market.
func (h *Hub) SubscriberCount(marketID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[marketID])
}

func (h *Hub) dispatchLoop() {
	defer h.wg.Done()

	for {
		ev, ok := h.events.Receive()
		if !ok {
			return
		}
		h.broadcast(ev)
	}
}

// broadcast enqueues the payload to every subscriber of the market. A full
// queue means the consumer is not draining; it gets dropped, the rest are
// untouched.
func (h *Hub) broadcast(ev event) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subs[ev.marketID]))
	for sub := range h.subs[ev.marketID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if !sub.Enqueue(ev.data) {
			h.logger.Debug("dropping slow subscriber", "market_id", ev.marketID)
			h.Unsubscribe(sub)
		}
	}
}

// writePump is the single writer for one subscriber. Any write failure,
// including a blown send deadline, drops the subscriber.
func (h *Hub) writePump(sub *Subscriber) {
	for {
		select {
		case data := <-sub.queue:
			deadline := time.Now().Add(h.cfg.SendTimeout)
			if err := sub.conn.WriteMessage(data, deadline); err != nil {
				h.logger.Debug("dropping failed subscriber",
					"market_id", sub.marketID,
					"err", err,
				)
				h.Unsubscribe(sub)
				return
			}
		case <-sub.done:
			return
		}
	}
}
