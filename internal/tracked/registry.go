package tracked

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/polytrack/polytrack/internal/model"
	"github.com/polytrack/polytrack/internal/store"
)

// Registry is an in-process snapshot of the tracked-market set.
type Registry struct {
	store  store.Store
	logger *slog.Logger

	mu         sync.RWMutex
	markets    map[int64]model.TrackedMarket
	lastReload time.Time
}

// NewRegistry creates an empty registry over the given store.
func NewRegistry(st store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:   st,
		logger:  logger,
		markets: make(map[int64]model.TrackedMarket),
	}
}

// Reload replaces the cached set with the store's current tracked markets.
func (r *Registry) Reload(ctx context.Context) error {
	start := time.Now()

	markets, err := r.store.ListTrackedMarkets(ctx)
	if err != nil {
		return fmt.Errorf("reload tracked markets: %w", err)
	}

	next := make(map[int64]model.TrackedMarket, len(markets))
	for _, m := range markets {
		next[m.ID] = m
	}

	r.mu.Lock()
	var added, removed int
	for id := range next {
		if _, ok := r.markets[id]; !ok {
			added++
		}
	}
	for id := range r.markets {
		if _, ok := next[id]; !ok {
			removed++
		}
	}
	r.markets = next
	r.lastReload = time.Now()
	r.mu.Unlock()

	if added > 0 || removed > 0 {
		r.logger.Info("tracked set changed",
			"total", len(markets),
			"added", added,
			"removed", removed,
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("tracked set unchanged",
			"total", len(markets),
			"duration", time.Since(start),
		)
	}
	return nil
}

// Markets returns the cached tracked markets ordered by ID.
func (r *Registry) Markets() []model.TrackedMarket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.TrackedMarket, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a cached market by ID.
func (r *Registry) Get(id int64) (model.TrackedMarket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	return m, ok
}

// LastReload reports when the cache was last refreshed.
func (r *Registry) LastReload() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastReload
}
