package domain

import "time"

// RunStatus represents the status of an acquisition run.
// Values include RunStatusRunning, RunStatusCompleted, and RunStatusFailed.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// FetchRun represents one acquisition run and its outcome counters.
type FetchRun struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	Source      string     `gorm:"type:text;not null;index" json:"source"`
	Status      RunStatus  `gorm:"default:running" json:"status"`
	Need        int        `gorm:"default:0" json:"need"`
	Touched     int64      `gorm:"default:0" json:"touched"`
	Accepted    int64      `gorm:"default:0" json:"accepted"`
	Skipped     int64      `gorm:"default:0" json:"skipped"`
	Invalid     int64      `gorm:"default:0" json:"invalid"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorLog    string     `json:"error_log,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for FetchRun.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (FetchRun) TableName() string {
	return "fetch_runs"
}
