package reddit

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PurpleMyst/redditbg/internal/domain"
	"github.com/go-resty/resty/v2"
)

const (
	SourceID   = "reddit"
	SourceName = "Reddit"

	// DefaultBaseURL is the public listing endpoint root.
	DefaultBaseURL = "https://www.reddit.com"
)

// listingResponse mirrors the JSON shape of a subreddit "new" listing.
type listingResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				URL    string `json:"url"`
				Over18 bool   `json:"over_18"`
			} `json:"data"`
		} `json:"children"`
		After string `json:"after"`
	} `json:"data"`
}

// Adapter implements the Source interface over the reddit listing API. One
// adapter pages through the combined "new" listing of its subreddits.
type Adapter struct {
	client     *resty.Client
	baseURL    string
	subreddits []string
}

// NewAdapter creates a new reddit listing adapter.
// Parameters:
//   - client: HTTP client shared with the rest of the pipeline; carries the
//     user agent and request timeout.
//   - baseURL: listing endpoint root; empty uses DefaultBaseURL.
//   - subreddits: subreddit names combined into one listing.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(client *resty.Client, baseURL string, subreddits []string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{
		client:     client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		subreddits: subreddits,
	}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID + ":" + strings.Join(a.subreddits, "+")
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

// FetchPage fetches one listing page. Candidates flagged over_18 are dropped
// here, before they can enter the stream buffer.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - after: pagination token, empty for the first page.
// Returns:
//   - domain.Page: references in listing order plus the next token.
//   - error: non-nil on transport failure, a non-200 status, or an
//     undecodable body.
func (a *Adapter) FetchPage(ctx context.Context, after string) (domain.Page, error) {
	url := fmt.Sprintf("%s/r/%s/new.json", a.baseURL, strings.Join(a.subreddits, "+"))

	req := a.client.R().
		SetContext(ctx).
		SetResult(&listingResponse{})
	if after != "" {
		req.SetQueryParam("after", after)
	}

	resp, err := req.Get(url)
	if err != nil {
		return domain.Page{}, fmt.Errorf("failed to fetch listing page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return domain.Page{}, fmt.Errorf("listing request returned status %d", resp.StatusCode())
	}

	listing, ok := resp.Result().(*listingResponse)
	if !ok || listing == nil {
		return domain.Page{}, fmt.Errorf("failed to decode listing response")
	}

	page := domain.Page{After: listing.Data.After}
	for _, child := range listing.Data.Children {
		if child.Data.Over18 {
			continue
		}
		if child.Data.URL == "" {
			continue
		}
		page.References = append(page.References, child.Data.URL)
	}
	return page, nil
}
