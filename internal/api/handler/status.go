package handler

import (
	"context"
	"net/http"

	"github.com/PurpleMyst/redditbg/internal/domain"
	"github.com/gin-gonic/gin"
)

// recentRuns is how many acquisition runs the status endpoint reports.
const recentRuns = 10

// PoolCounter is the slice of the image store the status endpoint needs.
type PoolCounter interface {
	Count(ctx context.Context) (int, error)
}

// LedgerCounter is the slice of the ledger the status endpoint needs.
type LedgerCounter interface {
	Count(ctx context.Context, name domain.LedgerName) (int64, error)
}

// RunLister is the slice of run history the status endpoint needs.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.FetchRun, error)
}

// StatusHandler reports the daemon's pool, ledger and run-history state.
type StatusHandler struct {
	pool   PoolCounter
	ledger LedgerCounter
	runs   RunLister
	target int
}

// NewStatusHandler creates a status handler.
// Parameters:
//   - pool: image store to count.
//   - ledger: ledger to count per name.
//   - runs: run history to list.
//   - target: configured pool target size, echoed in the response.
// Returns:
//   - *StatusHandler: initialized handler.
func NewStatusHandler(pool PoolCounter, ledger LedgerCounter, runs RunLister, target int) *StatusHandler {
	return &StatusHandler{
		pool:   pool,
		ledger: ledger,
		runs:   runs,
		target: target,
	}
}

// Status returns the current pool size, per-ledger entry counts and the most
// recent acquisition runs.
func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.pool.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count store"})
		return
	}

	ledgers := gin.H{}
	for _, name := range []domain.LedgerName{
		domain.LedgerDownloaded,
		domain.LedgerInvalid,
		domain.LedgerApplied,
	} {
		n, err := h.ledger.Count(ctx, name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count ledger"})
			return
		}
		ledgers[string(name)] = n
	}

	runs, err := h.runs.ListRecent(ctx, recentRuns)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"store": gin.H{
			"count":  count,
			"target": h.target,
		},
		"ledgers": ledgers,
		"runs":    runs,
	})
}
