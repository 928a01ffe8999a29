package source

import (
	"context"

	"github.com/PurpleMyst/redditbg/internal/domain"
)

// Source defines the interface for paginated listing sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	// Parameters: none.
	// Returns:
	//   - string: display-friendly source name.
	GetDisplayName() string

	// FetchPage fetches one page of candidate references.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - after: pagination token from the previous page, or empty for the
	//     first page.
	// Returns:
	//   - domain.Page: references plus the token for the next page; an empty
	//     token means the listing is exhausted.
	//   - error: non-nil if the page request fails.
	FetchPage(ctx context.Context, after string) (domain.Page, error)
}
