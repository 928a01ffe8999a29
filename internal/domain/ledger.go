package domain

import "time"

// LedgerName identifies one durable set of reference identities.
// Values include LedgerDownloaded, LedgerInvalid, and LedgerApplied.
type LedgerName string

const (
	// LedgerDownloaded holds references whose image is (or was) in the store.
	LedgerDownloaded LedgerName = "downloaded"
	// LedgerInvalid holds references that resolved to a terminal failure.
	LedgerInvalid LedgerName = "invalid"
	// LedgerApplied holds perceptual hashes of wallpapers already applied.
	LedgerApplied LedgerName = "applied"
)

// LedgerEntry records one reference identity under one ledger name.
// A reference appears in at most one of the pipeline ledgers at a time; once
// written it is never retried unless the row is externally cleared.
type LedgerEntry struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      LedgerName `gorm:"type:text;not null;uniqueIndex:idx_ledger_name_url" json:"name"`
	URL       string     `gorm:"type:text;not null;uniqueIndex:idx_ledger_name_url" json:"url"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for LedgerEntry.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
