package fetcher

import "sync/atomic"

// Quota tracks how many newly accepted images a run is allowed before the
// engine stops pulling work. The counter is shared by every concurrent
// resolution, top-level and gallery-nested alike, and is only touched through
// atomic operations.
type Quota struct {
	need     int64
	accepted int64
}

// NewQuota creates a quota for one run.
// Parameters:
//   - need: number of new acceptances allowed; values below zero clamp to zero.
// Returns:
//   - *Quota: initialized quota.
func NewQuota(need int) *Quota {
	if need < 0 {
		need = 0
	}
	return &Quota{need: int64(need)}
}

// Need returns the acceptance budget the quota was created with.
func (q *Quota) Need() int64 {
	return q.need
}

// MarkAccepted records one accepted image and returns the new total.
func (q *Quota) MarkAccepted() int64 {
	return atomic.AddInt64(&q.accepted, 1)
}

// Accepted returns how many images have been accepted so far. In-flight work
// finishing after the quota is met can push this past Need; report
// ReportedAccepted to callers instead.
func (q *Quota) Accepted() int64 {
	return atomic.LoadInt64(&q.accepted)
}

// ReportedAccepted returns the accepted count capped at the budget.
func (q *Quota) ReportedAccepted() int64 {
	accepted := q.Accepted()
	if accepted > q.need {
		return q.need
	}
	return accepted
}

// Satisfied reports whether the run has accepted everything it needs.
func (q *Quota) Satisfied() bool {
	return q.Accepted() >= q.need
}
