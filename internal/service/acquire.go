package service

import (
	"context"
	"fmt"
	"time"

	"github.com/PurpleMyst/redditbg/internal/config"
	"github.com/PurpleMyst/redditbg/internal/domain"
	"github.com/PurpleMyst/redditbg/internal/fetcher"
	"github.com/PurpleMyst/redditbg/internal/logger"
	"github.com/PurpleMyst/redditbg/internal/repository"
	"github.com/PurpleMyst/redditbg/internal/retry"
	"github.com/PurpleMyst/redditbg/internal/source"
	"github.com/PurpleMyst/redditbg/internal/source/reddit"
	"github.com/PurpleMyst/redditbg/internal/store"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// AcquireService tops up the wallpaper pool. One acquisition cycle computes
// how many images the pool is short, pages through the configured listings
// and drives the resolution engine until the quota is met or the listings run
// dry. Side effects are confined to the store directory and the ledger.
type AcquireService struct {
	ledgerRepo *repository.LedgerRepository
	runRepo    *repository.RunRepository
	store      *store.Store
	client     *resty.Client
	policy     *retry.Policy
	cfg        *config.Config
	logger     *logger.Logger
}

// NewAcquireService creates an acquisition service. The HTTP client carries
// the configured user agent and per-request timeout; listing pagination and
// body fetches share it.
// Parameters:
//   - ledgerRepo: dedup ledger; any failure there is fatal to a run.
//   - runRepo: run record storage; failures there are logged, never fatal.
//   - st: image store the pool lives in.
//   - cfg: full application configuration.
//   - log: logger; nil uses the default logger.
// Returns:
//   - *AcquireService: initialized service.
func NewAcquireService(
	ledgerRepo *repository.LedgerRepository,
	runRepo *repository.RunRepository,
	st *store.Store,
	cfg *config.Config,
	log *logger.Logger,
) *AcquireService {
	if log == nil {
		log = logger.GetDefault()
	}

	client := resty.New().
		SetTimeout(cfg.Fetch.Timeout).
		SetHeader("User-Agent", cfg.Listing.UserAgent)

	policy := retry.New(&retry.Config{
		Retries: cfg.Backoff.Retries,
		MinWait: cfg.Backoff.MinWait,
		MaxWait: cfg.Backoff.MaxWait,
		Jitter:  cfg.Backoff.Jitter,
	})

	return &AcquireService{
		ledgerRepo: ledgerRepo,
		runRepo:    runRepo,
		store:      st,
		client:     client,
		policy:     policy,
		cfg:        cfg,
		logger:     log.WithField(logger.FieldComponent, "acquire"),
	}
}

// log returns a logger from context if available, otherwise the service's own.
func (s *AcquireService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Acquire runs one acquisition cycle and returns how many new images it
// accepted. A full pool returns 0 without touching the network. Ledger
// failures abort the run; run-record failures only lose history.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: newly accepted images, capped at what the pool was short.
//   - error: non-nil for run-fatal failures.
func (s *AcquireService) Acquire(ctx context.Context) (int64, error) {
	runID := uuid.New().String()
	ctx = logger.SetRunID(ctx, runID)

	// Recover ledger entries for anything already on disk before deciding
	// how much is missing.
	if err := s.ledgerRepo.ReconcileFromStore(ctx, s.store); err != nil {
		return 0, fmt.Errorf("failed to reconcile ledger: %w", err)
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count store: %w", err)
	}
	need := s.cfg.Fetch.Target - count
	if need <= 0 {
		s.log(ctx).WithFields(logger.Fields{
			"pool":   count,
			"target": s.cfg.Fetch.Target,
		}).Info("Pool is full, nothing to acquire")
		return 0, nil
	}

	adapter := reddit.NewAdapter(s.client, s.cfg.Listing.BaseURL, s.cfg.Listing.Subreddits)
	ctx = logger.SetSource(ctx, adapter.GetSourceID())

	s.log(ctx).WithFields(logger.Fields{
		"pool":   count,
		"target": s.cfg.Fetch.Target,
		"need":   need,
	}).Info("Starting acquisition cycle")

	stream := source.NewStream(adapter, s.policy, s.logger)
	engine := fetcher.NewEngine(s.ledgerRepo, s.store, s.client, s.policy,
		fetcher.NewQuota(need), &fetcher.Config{
			Workers: s.cfg.Fetch.Workers,
			Display: fetcher.Geometry{
				Width:        s.cfg.Display.Width,
				Height:       s.cfg.Display.Height,
				RatioEpsilon: s.cfg.Display.RatioEpsilon,
			},
		}, s.logger)

	run := s.beginRun(ctx, runID, adapter.GetSourceID(), need)

	stats, runErr := engine.Run(ctx, stream)

	s.finishRun(ctx, run, stats, runErr)

	// Register this run's writes. The identities are recoverable from the
	// store either way, so this runs even when the cycle was cancelled.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.ledgerRepo.ReconcileFromStore(rctx, s.store); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to reconcile ledger: %w", err)
	}

	return stats.Accepted, runErr
}

// beginRun records the start of an acquisition run. A nil return means run
// history is unavailable; the run itself proceeds.
func (s *AcquireService) beginRun(ctx context.Context, id, src string, need int) *domain.FetchRun {
	now := time.Now()
	run := &domain.FetchRun{
		ID:        id,
		Source:    src,
		Status:    domain.RunStatusRunning,
		Need:      need,
		StartedAt: &now,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to record run start")
		return nil
	}
	return run
}

// finishRun writes the run's outcome counters. The row must survive the
// run's own cancellation, so the write runs on a detached context.
func (s *AcquireService) finishRun(ctx context.Context, run *domain.FetchRun, stats *fetcher.Stats, runErr error) {
	if run == nil {
		return
	}

	now := time.Now()
	run.Status = domain.RunStatusCompleted
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.ErrorLog = runErr.Error()
	}
	run.Touched = stats.Touched
	run.Accepted = stats.Accepted
	run.Skipped = stats.Skipped
	run.Invalid = stats.Invalid
	run.CompletedAt = &now

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.runRepo.Update(wctx, run); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to record run outcome")
	}
}
