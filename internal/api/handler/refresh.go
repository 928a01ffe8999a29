package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Refresher queues an immediate acquisition cycle. A false return means a
// cycle is already queued.
type Refresher interface {
	TriggerRefresh() bool
}

// RefreshHandler lets local tooling kick off a cycle without waiting for the
// daemon's next tick.
type RefreshHandler struct {
	refresher Refresher
}

// NewRefreshHandler creates a refresh handler.
// Parameters:
//   - refresher: cycle queue to trigger.
// Returns:
//   - *RefreshHandler: initialized handler.
func NewRefreshHandler(refresher Refresher) *RefreshHandler {
	return &RefreshHandler{refresher: refresher}
}

// Refresh queues an acquisition cycle. Returns 202 when queued and 409 when
// one is already pending.
func (h *RefreshHandler) Refresh(c *gin.Context) {
	if !h.refresher.TriggerRefresh() {
		c.JSON(http.StatusConflict, gin.H{"queued": false, "reason": "a cycle is already pending"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}
