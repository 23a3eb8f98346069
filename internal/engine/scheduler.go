package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stockwatch/internal/errors"
	"stockwatch/internal/models"
	"stockwatch/internal/notify"
	"stockwatch/internal/oracle"
	"stockwatch/internal/store"
)

// SchedulerConfig drives the evaluation cycle.
type SchedulerConfig struct {
	Interval         time.Duration
	FetchConcurrency int
	FetchTimeout     time.Duration
}

// DefaultSchedulerConfig returns the default cycle configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:         60 * time.Second,
		FetchConcurrency: 4,
		FetchTimeout:     10 * time.Second,
	}
}

// CycleStats summarizes one evaluation cycle for logging and tests.
type CycleStats struct {
	Targets        int
	Symbols        int
	Unavailable    int
	Fired          int
	Held           int
	Conflicts      int
	DeliveryErrors int
	Duration       time.Duration
}

// Scheduler runs the periodic evaluation cycle: snapshot pending targets,
// fetch each distinct symbol once through a bounded worker pool, evaluate,
// and commit Fire decisions one target at a time.
//
// Failure isolation is per symbol and per target: a failed fetch holds the
// targets on that symbol, a failed delivery or commit affects only its
// target, and a failed snapshot skips the whole cycle until the next tick.
// Nothing short of context cancellation stops the loop.
type Scheduler struct {
	repo       store.TargetRepository
	oracle     oracle.PriceOracle
	dispatcher notify.Dispatcher
	cfg        SchedulerConfig
	logger     zerolog.Logger
}

// NewScheduler creates a new Scheduler. Zero config fields fall back to
// defaults.
func NewScheduler(
	repo store.TargetRepository,
	priceOracle oracle.PriceOracle,
	dispatcher notify.Dispatcher,
	cfg SchedulerConfig,
	logger zerolog.Logger,
) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.FetchConcurrency < 1 {
		cfg.FetchConcurrency = def.FetchConcurrency
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}

	return &Scheduler{
		repo:       repo,
		oracle:     priceOracle,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes cycles on the configured interval until ctx is cancelled.
// The first cycle starts immediately. Cancellation takes effect at the
// next cycle boundary; an in-flight cycle finishes its deliveries.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Int("fetch_concurrency", s.cfg.FetchConcurrency).
		Dur("fetch_timeout", s.cfg.FetchTimeout).
		Msg("Poll scheduler started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		stats := s.RunCycle(ctx)
		s.logger.Info().
			Int("targets", stats.Targets).
			Int("symbols", stats.Symbols).
			Int("fired", stats.Fired).
			Int("held", stats.Held).
			Int("unavailable", stats.Unavailable).
			Int("conflicts", stats.Conflicts).
			Int("delivery_errors", stats.DeliveryErrors).
			Dur("duration", stats.Duration).
			Msg("Cycle complete")

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Poll scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle executes exactly one evaluation cycle.
func (s *Scheduler) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	var stats CycleStats
	defer func() { stats.Duration = time.Since(start) }()

	// Snapshot bounds the working set: targets added or deleted after this
	// point are picked up next cycle (deletes still win at commit time).
	entries, err := s.repo.Snapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Snapshot failed, skipping cycle")
		return stats
	}
	stats.Targets = len(entries)
	if len(entries) == 0 {
		return stats
	}

	// One fetch per distinct symbol, not per target.
	seen := make(map[string]struct{})
	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Target.Symbol]; !ok {
			seen[e.Target.Symbol] = struct{}{}
			symbols = append(symbols, e.Target.Symbol)
		}
	}
	stats.Symbols = len(symbols)

	samples := s.fetchAll(ctx, symbols)
	for _, sym := range symbols {
		if samples[sym] == nil {
			stats.Unavailable++
		}
	}

	// Deliveries and commits run to completion even when ctx is cancelled
	// mid-cycle: abandoning them would silently drop a Fire decision.
	commitCtx := context.WithoutCancel(ctx)

	for _, e := range entries {
		sample := samples[e.Target.Symbol]
		if Evaluate(e.Target, sample) == DecisionHold {
			stats.Held++
			continue
		}
		s.fire(commitCtx, e, sample, &stats)
	}

	return stats
}

// fetchAll resolves each symbol to a sample through a bounded worker pool.
// A failed or timed-out fetch records a nil sample, the unavailable marker.
func (s *Scheduler) fetchAll(ctx context.Context, symbols []string) map[string]*models.PriceSample {
	samples := make(map[string]*models.PriceSample, len(symbols))

	jobs := make(chan string, len(symbols))
	for _, sym := range symbols {
		jobs <- sym
	}
	close(jobs)

	workers := s.cfg.FetchConcurrency
	if workers > len(symbols) {
		workers = len(symbols)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
				sample, err := s.oracle.Fetch(fetchCtx, sym)
				cancel()

				if err != nil {
					// Expected and non-fatal: the symbol holds this cycle
					// and is retried naturally on the next one.
					s.logger.Warn().Err(err).Str("symbol", sym).Msg("Price unavailable")
					sample = nil
				}

				mu.Lock()
				samples[sym] = sample
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return samples
}

// fire performs the delivery attempt and the state commit for one target.
// The commit happens regardless of delivery outcome: a missed notification
// is preferable to a double fire. Callers needing delivery guarantees add
// retry or outbox behavior inside the Dispatcher.
func (s *Scheduler) fire(ctx context.Context, e store.Entry, sample *models.PriceSample, stats *CycleStats) {
	text := RenderMessage(e.Target, sample)

	if err := s.dispatcher.Deliver(ctx, e.UserRef, text); err != nil {
		stats.DeliveryErrors++
		s.logger.Error().Err(err).
			Str("user", e.UserRef).
			Str("symbol", e.Target.Symbol).
			Msg("Delivery failed, committing state transition anyway")
	}

	err := s.repo.CommitFire(ctx, e.UserRef, e.Target.Symbol, models.StatePending)
	switch {
	case err == nil:
		stats.Fired++
	case errors.Is(err, errors.ErrCommitConflict):
		// Target deleted or already fired since the snapshot; the commit
		// is dropped and the delete wins.
		stats.Conflicts++
		s.logger.Debug().
			Str("user", e.UserRef).
			Str("symbol", e.Target.Symbol).
			Msg("Commit conflict, dropping fire")
	default:
		s.logger.Error().Err(err).
			Str("user", e.UserRef).
			Str("symbol", e.Target.Symbol).
			Msg("Commit failed")
	}
}
