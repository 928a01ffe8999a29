package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retry policy configuration.
type Config struct {
	Retries int           // number of waits before giving up
	MinWait time.Duration // first wait duration
	MaxWait time.Duration // wait duration cap
	Jitter  float64       // per-wait randomization fraction (0.3 = ±30%)
}

// DefaultConfig returns the policy used for every network call: ten waits
// growing geometrically from one second to fifteen, each jittered ±30%.
// Parameters: none.
// Returns:
//   - *Config: default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		Retries: 10,
		MinWait: time.Second,
		MaxWait: 15 * time.Second,
		Jitter:  0.3,
	}
}

// Policy turns retry attempts into jittered waits and, once the configured
// number of waits is spent, into giving up. The decision depends only on the
// attempt count, never on the error kind: connection resets and HTTP-level
// failures are retried alike.
type Policy struct {
	retries    uint64
	minWait    time.Duration
	maxWait    time.Duration
	jitter     float64
	multiplier float64
}

// New creates a Policy from the given configuration.
// Parameters:
//   - cfg: retry configuration; nil uses DefaultConfig.
// Returns:
//   - *Policy: initialized policy.
func New(cfg *Config) *Policy {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}

	// Choose the growth factor so the waits span min..max over the
	// configured number of steps.
	multiplier := 1.0
	if retries > 1 && cfg.MinWait > 0 && cfg.MaxWait > cfg.MinWait {
		ratio := float64(cfg.MaxWait) / float64(cfg.MinWait)
		multiplier = math.Pow(ratio, 1/float64(retries-1))
	}

	return &Policy{
		retries:    uint64(retries),
		minWait:    cfg.MinWait,
		maxWait:    cfg.MaxWait,
		jitter:     cfg.Jitter,
		multiplier: multiplier,
	}
}

// Schedule returns a fresh backoff schedule for one logical operation.
// Parameters: none.
// Returns:
//   - backoff.BackOff: schedule yielding the configured number of waits,
//     then backoff.Stop.
func (p *Policy) Schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.minWait
	b.MaxInterval = p.maxWait
	b.Multiplier = p.multiplier
	b.RandomizationFactor = p.jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, p.retries)
}

// Do runs op, retrying on error according to the policy. Once the waits are
// exhausted the last error is returned to the caller verbatim. Context
// cancellation aborts both waits and further attempts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - op: operation to run; retried while it returns an error.
// Returns:
//   - error: nil on success, ctx.Err() on cancellation, otherwise the
//     operation's final error.
func (p *Policy) Do(ctx context.Context, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(p.Schedule(), ctx))
}
