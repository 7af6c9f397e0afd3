package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polytrack/polytrack/internal/config"
	"github.com/polytrack/polytrack/internal/detect"
	"github.com/polytrack/polytrack/internal/ingest"
	"github.com/polytrack/polytrack/internal/model"
	"github.com/polytrack/polytrack/internal/store"
)

// MarketSource provides the current tracked set for a tick.
type MarketSource interface {
	Markets() []model.TrackedMarket
}

// Refresher reloads the tracked set on the discovery cadence.
type Refresher interface {
	Reload(ctx context.Context) error
}

// Publisher receives the update payload once a market's cycle completes.
type Publisher interface {
	Publish(marketID int64, update model.Update)
}

// PublisherFunc is a function adapter for Publisher.
type PublisherFunc func(int64, model.Update)

func (f PublisherFunc) Publish(marketID int64, update model.Update) {
	f(marketID, update)
}

// Scheduler runs the two tracker cadences: per-market ingestion and
// tracked-set discovery.
type Scheduler struct {
	cfg       config.SchedulerConfig
	markets   MarketSource
	refresher Refresher
	ingestor  *ingest.Ingestor
	detector  *detect.Detector
	store     store.Store
	publisher Publisher
	logger    *slog.Logger

	// One in-flight tick per cadence.
	ingestBusy    atomic.Bool
	discoveryBusy atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. The publisher may be nil when nothing consumes
// updates.
func New(
	cfg config.SchedulerConfig,
	markets MarketSource,
	refresher Refresher,
	ingestor *ingest.Ingestor,
	detector *detect.Detector,
	st store.Store,
	publisher Publisher,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		markets:   markets,
		refresher: refresher,
		ingestor:  ingestor,
		detector:  detector,
		store:     st,
		publisher: publisher,
		logger:    logger,
	}
}

// Start launches both cadence loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.runIngestLoop()
	go s.runDiscoveryLoop()

	s.logger.Info("scheduler started",
		"market_refresh", s.cfg.MarketRefreshInterval,
		"discovery_refresh", s.cfg.DiscoveryRefreshInterval,
		"concurrency", s.cfg.Concurrency,
	)
	return nil
}

// Stop waits for in-flight ticks to drain.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runIngestLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.MarketRefreshInterval)
	defer ticker.Stop()

	// Tick immediately on start.
	s.tickIngest()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tickIngest()
		}
	}
}

func (s *Scheduler) runDiscoveryLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.DiscoveryRefreshInterval)
	defer ticker.Stop()

	s.tickDiscovery()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tickDiscovery()
		}
	}
}

// tickIngest runs one ingestion cycle across the tracked set. If the prior
// cycle is still running, this tick is dropped.
func (s *Scheduler) tickIngest() {
	if !s.ingestBusy.CompareAndSwap(false, true) {
		s.logger.Warn("ingest tick still running, skipping")
		return
	}
	defer s.ingestBusy.Store(false)

	start := time.Now()
	markets := s.markets.Markets()
	if len(markets) == 0 {
		s.logger.Debug("no tracked markets")
		return
	}

	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.cfg.Concurrency)

	var processed, failed atomic.Int64
	for _, m := range markets {
		g.Go(func() error {
			if err := s.processMarket(ctx, m); err != nil {
				// One market failing must not break the others.
				failed.Add(1)
				s.logger.Warn("market cycle failed",
					"market", m.Slug,
					"err", err,
				)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	g.Wait()

	s.logger.Info("ingest tick complete",
		"markets", len(markets),
		"processed", processed.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)
}

// tickDiscovery reloads the tracked set. Same skip-don't-queue policy as the
// ingest cadence.
func (s *Scheduler) tickDiscovery() {
	if !s.discoveryBusy.CompareAndSwap(false, true) {
		s.logger.Warn("discovery tick still running, skipping")
		return
	}
	defer s.discoveryBusy.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.MarketTimeout)
	defer cancel()

	if err := s.refresher.Reload(ctx); err != nil {
		s.logger.Error("discovery refresh failed", "err", err)
	}
}

// processMarket runs the fetch → detect → broadcast pipeline for one market.
// The prior snapshots are read before ingestion so the comparison pairs each
// new snapshot with its true predecessor.
func (s *Scheduler) processMarket(ctx context.Context, market model.TrackedMarket) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MarketTimeout)
	defer cancel()

	prev, err := s.store.LatestSnapshots(ctx, market.ID)
	if err != nil {
		return err
	}

	res, err := s.ingestor.Ingest(ctx, market)
	if err != nil {
		return err
	}

	shifts, _, err := s.detector.Process(ctx, prev, res.Snapshots)
	if err != nil {
		return err
	}

	if s.publisher != nil {
		update := buildUpdate(res, shifts)
		s.publisher.Publish(market.ID, update)
	}
	return nil
}

// buildUpdate assembles the broadcast payload from one cycle's results.
func buildUpdate(res *ingest.Result, shifts []model.Shift) model.Update {
	data := model.UpdateData{
		RecentTrades: res.Trades,
	}

	for _, snap := range res.Snapshots {
		outcome := res.Outcomes[snap.OutcomeID]
		data.Outcomes = append(data.Outcomes, model.OutcomeQuote{
			TokenID:   outcome.TokenID,
			Name:      outcome.Name,
			Prob:      snap.Prob,
			Volume:    snap.Volume,
			Liquidity: snap.Liquidity,
		})
	}

	for _, sh := range shifts {
		data.Shifts = append(data.Shifts, model.ShiftSummary{
			OutcomeID:    sh.OutcomeID,
			PrevProb:     sh.PrevProb,
			NewProb:      sh.NewProb,
			Delta:        sh.Delta,
			VolumeImpact: sh.VolumeImpact,
			Significant:  sh.Significant,
			TS:           sh.TS,
		})
	}

	var ts time.Time
	if len(res.Snapshots) > 0 {
		ts = res.Snapshots[0].TS
	}
	return model.NewUpdate(res.Market.ID, ts, data)
}
