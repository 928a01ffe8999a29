package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PurpleMyst/redditbg/internal/domain"
	"github.com/PurpleMyst/redditbg/internal/logger"
	"github.com/PurpleMyst/redditbg/internal/retry"
	"github.com/go-resty/resty/v2"
)

// defaultWorkers is the width of the in-flight resolution window. One
// listing page carries about this many candidates.
const defaultWorkers = 25

// Ledger is the slice of the dedup ledger the engine needs: terminal-outcome
// lookups and idempotent per-reference writes.
type Ledger interface {
	Contains(ctx context.Context, url string, names ...domain.LedgerName) (bool, error)
	Insert(ctx context.Context, name domain.LedgerName, url string) error
}

// Store is the persistence primitive for accepted images.
type Store interface {
	Write(ctx context.Context, url string, data []byte) (string, error)
}

// Puller produces candidate references one at a time. A false result means
// the sequence has ended.
type Puller interface {
	Next(ctx context.Context) (string, bool)
}

// Stats holds counters for one engine run.
type Stats struct {
	Touched   int64 // references pulled, including ledger-known ones
	Accepted  int64 // newly persisted images, capped at the quota
	Skipped   int64 // references the ledger already knew
	Invalid   int64 // references that reached a terminal failure this run
	StartTime time.Time
	EndTime   time.Time
}

// Config holds tunables for the resolution engine.
type Config struct {
	Workers int      // in-flight resolution window width; <=0 uses the default
	Display Geometry // target display shape
}

// Engine resolves candidate references: it fetches each reference's bytes
// under the retry policy, classifies the payload (direct image, imgur
// gallery, reddit gallery, in that order), persists accepted images and
// records every terminal outcome in the ledger. All resolutions, top-level
// and gallery-nested alike, share one bounded concurrency window and one
// acceptance quota.
type Engine struct {
	ledger  Ledger
	store   Store
	client  *resty.Client
	policy  *retry.Policy
	quota   *Quota
	display Geometry
	logger  *logger.Logger

	// sem bounds the number of in-flight resolutions. A slot is held for a
	// resolution's own network and image work and released before gallery
	// expansion, so nested batches can never deadlock the window.
	sem chan struct{}

	stats Stats

	// fatal carries the first ledger failure; once set, no new work is
	// pulled anywhere.
	fatalMu sync.Mutex
	fatal   error
}

// NewEngine creates a resolution engine for a single run.
// Parameters:
//   - ledger: dedup ledger; a failure here is fatal to the run.
//   - store: image store the accepted images go to.
//   - client: HTTP client carrying the user agent and the per-request timeout.
//   - policy: retry policy applied to every body fetch.
//   - quota: shared acceptance budget for this run.
//   - cfg: engine tunables.
//   - log: logger; nil uses the default logger.
// Returns:
//   - *Engine: initialized engine.
func NewEngine(ledger Ledger, store Store, client *resty.Client, policy *retry.Policy, quota *Quota, cfg *Config, log *logger.Logger) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Engine{
		ledger:  ledger,
		store:   store,
		client:  client,
		policy:  policy,
		quota:   quota,
		display: cfg.Display,
		logger:  log,
		sem:     make(chan struct{}, workers),
	}
}

// log returns a logger from context if available, otherwise the engine's own.
func (e *Engine) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return e.logger
}

// Run pulls references from refs until the sequence ends or the quota is
// satisfied, resolving each through the bounded window. In-flight resolutions
// always run to completion; only the pulling of new work stops early.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - refs: pull-based reference producer.
// Returns:
//   - *Stats: run counters; Accepted is capped at the quota.
//   - error: non-nil only for run-fatal failures (a ledger write or lookup
//     that did not commit, or context cancellation).
func (e *Engine) Run(ctx context.Context, refs Puller) (*Stats, error) {
	e.stats.StartTime = time.Now()

	e.log(ctx).WithFields(logger.Fields{
		"need":    e.quota.Need(),
		"workers": cap(e.sem),
	}).Info("Starting resolution run")

	if e.quota.Need() > 0 {
		e.fetchAll(ctx, refs.Next)
	}

	e.stats.Accepted = e.quota.ReportedAccepted()
	e.stats.EndTime = time.Now()

	logger.With(logger.Fields{
		logger.FieldCount:      e.stats.Accepted,
		logger.FieldDurationMs: e.stats.EndTime.Sub(e.stats.StartTime).Milliseconds(),
	}).Info(ctx, "Resolution run completed: touched=%d, accepted=%d, skipped=%d, invalid=%d",
		e.stats.Touched, e.stats.Accepted, e.stats.Skipped, e.stats.Invalid)

	if err := e.fatalErr(); err != nil {
		return &e.stats, err
	}
	return &e.stats, ctx.Err()
}

// fetchAll drives one batch of references through the shared window. Every
// pulled reference counts as touched, including ones the ledger already
// knows. Pulling stops once the quota is satisfied, a fatal error is
// recorded, or the context is cancelled; dispatched resolutions are always
// waited for. Gallery expansion re-enters here with the members, so the
// window and quota stay global.
func (e *Engine) fetchAll(ctx context.Context, next func(context.Context) (string, bool)) int {
	var wg sync.WaitGroup
	touched := 0

pull:
	for !e.quota.Satisfied() && e.fatalErr() == nil && ctx.Err() == nil {
		url, ok := next(ctx)
		if !ok {
			break
		}
		touched++
		atomic.AddInt64(&e.stats.Touched, 1)

		seen, err := e.ledger.Contains(ctx, url, domain.LedgerDownloaded, domain.LedgerInvalid)
		if err != nil {
			e.recordFatal(fmt.Errorf("ledger lookup failed: %w", err))
			break
		}
		if seen {
			atomic.AddInt64(&e.stats.Skipped, 1)
			continue
		}

		// Take a window slot before dispatching; the pull loop itself blocks
		// when the window is full.
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			break pull
		}

		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			e.resolveOne(ctx, u)
		}(url)
	}

	wg.Wait()
	return touched
}

// resolveOne fetches one reference and walks the classifier chain: direct
// image, imgur gallery, reddit gallery. Any terminal failure marks the
// reference invalid; errors never escape past this boundary. The caller must
// hold one window slot; resolveOne releases it exactly once, before gallery
// expansion so member resolutions can use it.
func (e *Engine) resolveOne(ctx context.Context, url string) {
	released := false
	release := func() {
		if !released {
			released = true
			<-e.sem
		}
	}
	defer release()

	log := e.log(ctx).WithField(logger.FieldURL, url)

	body, err := e.download(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a verdict on the reference; leave it unmarked.
			log.Debug("Fetch abandoned by cancellation")
			return
		}
		e.markInvalid(ctx, url, fmt.Errorf("failed to fetch: %w", err))
		return
	}

	err = e.acceptImage(ctx, url, body)
	if err == nil {
		return
	}
	var aspectErr *AspectRatioError
	if errors.As(err, &aspectErr) {
		// The body decoded fine and is simply the wrong shape. That verdict
		// is final: it never falls through to the gallery classifiers.
		e.markInvalid(ctx, url, err)
		return
	}
	var persistErr *PersistError
	if errors.As(err, &persistErr) {
		// Classification succeeded, the disk write did not. Fatal for this
		// reference only; siblings keep running.
		e.markInvalid(ctx, url, err)
		return
	}
	log.WithError(err).Debug("Not a direct image, trying gallery classifiers")

	members, perr := parseImgurGallery(body)
	if perr == nil {
		release()
		e.expandGallery(ctx, url, members)
		return
	}
	log.WithError(perr).Debug("Not an imgur gallery")

	members, perr = parseRedditGallery(body)
	if perr == nil {
		release()
		e.expandGallery(ctx, url, members)
		return
	}
	log.WithError(perr).Debug("Not a reddit gallery")

	e.markInvalid(ctx, url, errors.New("unable to parse as anything known"))
}

// download fetches the reference body under the retry policy. Non-2xx
// statuses are errors so they burn retry attempts exactly like transport
// failures; the policy does not care which kind it got.
func (e *Engine) download(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := e.policy.Do(ctx, func() error {
		resp, rerr := e.client.R().
			SetContext(ctx).
			SetHeader("Accept", "image/*").
			Get(url)
		if rerr != nil {
			return fmt.Errorf("request failed: %w", rerr)
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("request returned status %d", resp.StatusCode())
		}
		body = resp.Body()
		return nil
	})
	return body, err
}

// acceptImage decodes body as a direct image, validates its shape against the
// display, re-renders it to display size and persists it atomically. On
// success the shared quota is bumped. The downloaded-ledger entry is not
// written here: reconciliation recovers it from the store filename, which
// also covers crashes between the write and the ledger commit.
func (e *Engine) acceptImage(ctx context.Context, url string, body []byte) error {
	data, err := renderCandidate(body, e.display)
	if err != nil {
		return err
	}

	path, err := e.store.Write(ctx, url, data)
	if err != nil {
		return &PersistError{Err: err}
	}

	accepted := e.quota.MarkAccepted()
	logger.With(logger.Fields{
		logger.FieldCount: accepted,
		logger.FieldSize:  len(data),
	}).Info(ctx, "Accepted image: url=%s, path=%s", url, path)
	return nil
}

// expandGallery resolves a gallery's members through the same window and
// quota. A gallery whose members were all examined is fully mined and marked
// invalid so later runs skip it; if the quota cut the expansion short, the
// reference stays unmarked and a future run resumes mining it.
func (e *Engine) expandGallery(ctx context.Context, url string, members []string) {
	log := e.log(ctx).WithFields(logger.Fields{
		logger.FieldURL: url,
		"members":       len(members),
	})
	log.Debug("Expanding gallery")

	touched := e.fetchAll(ctx, slicePuller(members))
	if touched >= len(members) {
		log.Debug("Gallery fully mined")
		e.markInvalid(ctx, url, nil)
		return
	}
	log.WithField("touched", touched).Debug("Gallery left unmarked for a future run")
}

// markInvalid records a terminal outcome for the reference. A ledger write
// failure here is fatal to the whole run: without a working ledger nothing
// can promise "never refetch".
func (e *Engine) markInvalid(ctx context.Context, url string, cause error) {
	atomic.AddInt64(&e.stats.Invalid, 1)

	log := e.log(ctx).WithField(logger.FieldURL, url)
	if cause != nil {
		log = log.WithError(cause)
	}
	log.Debug("Marking reference invalid")

	if err := e.ledger.Insert(ctx, domain.LedgerInvalid, url); err != nil {
		e.recordFatal(fmt.Errorf("ledger insert failed: %w", err))
	}
}

func (e *Engine) recordFatal(err error) {
	e.fatalMu.Lock()
	if e.fatal == nil {
		e.fatal = err
	}
	e.fatalMu.Unlock()
}

func (e *Engine) fatalErr() error {
	e.fatalMu.Lock()
	defer e.fatalMu.Unlock()
	return e.fatal
}

// slicePuller adapts a fixed member list to the pull interface used by
// fetchAll.
func slicePuller(urls []string) func(context.Context) (string, bool) {
	i := 0
	return func(context.Context) (string, bool) {
		if i >= len(urls) {
			return "", false
		}
		u := urls[i]
		i++
		return u, true
	}
}
