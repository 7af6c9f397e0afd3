package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polytrack/polytrack/internal/gamma"
	"github.com/polytrack/polytrack/internal/model"
	"github.com/polytrack/polytrack/internal/store"
)

// Fetcher is the provider surface the ingestor needs.
type Fetcher interface {
	GetEvent(ctx context.Context, slug string) (*gamma.APIEvent, error)
	GetTrades(ctx context.Context, tokenID string, limit int) ([]gamma.APITrade, error)
}

// DefaultTradeLimit bounds the recent-trades fetch per cycle.
const DefaultTradeLimit = 10

// Result is the output of one ingestion cycle for one market.
type Result struct {
	Market model.TrackedMarket

	// Snapshots are the persisted rows for this cycle, IDs assigned.
	Snapshots []model.Snapshot

	// Outcomes maps outcome ID to its registry row.
	Outcomes map[int64]model.Outcome

	// Trades are recent fills for the market's first outcome token.
	Trades []model.TradeSummary

	// Skipped counts outcomes dropped for invalid readings.
	Skipped int
}

// Ingestor runs the fetch-validate-persist cycle for tracked markets.
type Ingestor struct {
	fetcher    Fetcher
	store      store.Store
	logger     *slog.Logger
	tradeLimit int
	now        func() time.Time
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithTradeLimit overrides the recent-trades fetch limit.
func WithTradeLimit(n int) Option {
	return func(in *Ingestor) {
		in.tradeLimit = n
	}
}

// WithClock overrides the snapshot timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(in *Ingestor) {
		in.now = now
	}
}

// NewIngestor creates an ingestor over a provider client and a store.
func NewIngestor(fetcher Fetcher, st store.Store, logger *slog.Logger, opts ...Option) *Ingestor {
	in := &Ingestor{
		fetcher:    fetcher,
		store:      st,
		logger:     logger,
		tradeLimit: DefaultTradeLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest fetches one market, registers its outcomes, and persists one
// snapshot per valid outcome. Invalid readings are skipped and logged, never
// fatal for the market. A fetch or persistence failure fails the whole cycle
// for this market only.
func (in *Ingestor) Ingest(ctx context.Context, market model.TrackedMarket) (*Result, error) {
	evt, err := in.fetcher.GetEvent(ctx, market.Slug)
	if err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", market.Slug, err)
	}

	readings := evt.Readings()
	if len(readings) == 0 {
		return nil, fmt.Errorf("event %s has no outcomes", market.Slug)
	}

	ts := in.now()
	res := &Result{
		Market:   market,
		Outcomes: make(map[int64]model.Outcome),
	}

	for _, r := range readings {
		outcome, err := in.store.EnsureOutcome(ctx, market.ID, r.TokenID, r.Name)
		if err != nil {
			return nil, fmt.Errorf("ensure outcome %s: %w", r.TokenID, err)
		}

		snap := model.Snapshot{
			MarketID:  market.ID,
			OutcomeID: outcome.ID,
			Prob:      r.Prob,
			Volume:    r.Volume,
			Liquidity: r.Liquidity,
			TS:        ts,
		}
		if err := snap.Validate(); err != nil {
			res.Skipped++
			in.logger.Warn("skipping invalid outcome reading",
				"market", market.Slug,
				"outcome", r.Name,
				"error", err)
			continue
		}

		res.Outcomes[outcome.ID] = outcome
		res.Snapshots = append(res.Snapshots, snap)
	}

	if len(res.Snapshots) == 0 {
		return nil, fmt.Errorf("event %s: all %d readings invalid", market.Slug, len(readings))
	}

	if err := in.store.AppendSnapshots(ctx, res.Snapshots); err != nil {
		return nil, fmt.Errorf("persist snapshots for %s: %w", market.Slug, err)
	}

	res.Trades = in.recentTrades(ctx, market, readings)
	return res, nil
}

// recentTrades fetches fills for the market's first outcome token. Trade data
// only decorates the update feed, so failures degrade to an empty list.
func (in *Ingestor) recentTrades(ctx context.Context, market model.TrackedMarket, readings []gamma.Reading) []model.TradeSummary {
	token := readings[0].TokenID
	if token == "" {
		return nil
	}

	trades, err := in.fetcher.GetTrades(ctx, token, in.tradeLimit)
	if err != nil {
		in.logger.Warn("recent trades unavailable",
			"market", market.Slug,
			"error", err)
		return nil
	}
	return gamma.ToTradeSummaries(trades)
}
