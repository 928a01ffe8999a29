package source

import (
	"context"

	"github.com/PurpleMyst/redditbg/internal/domain"
	"github.com/PurpleMyst/redditbg/internal/logger"
	"github.com/PurpleMyst/redditbg/internal/retry"
)

// streamState is the stream's position in its page-request cycle.
type streamState int

const (
	// stateNeedMore: nothing buffered, a page must be requested.
	stateNeedMore streamState = iota
	// stateFetching: a page request is outstanding; Next blocks on it.
	stateFetching
	// stateFetched: buffered references are available to emit.
	stateFetched
	// stateExhausted: no further references will ever be produced.
	stateExhausted
)

// Stream turns a paginated Source into a pull-based sequence of references.
// Each call to Next emits one buffered reference, requesting the next page
// (under the retry policy) whenever the buffer drains and a pagination token
// remains. A page failure that survives the retry policy is logged and ends
// the stream; it is never propagated to the consumer. Not safe for concurrent
// use: the pipeline pulls from a single goroutine.
type Stream struct {
	src    Source
	policy *retry.Policy
	logger *logger.Logger

	state  streamState
	after  string
	buffer []string
}

// NewStream creates a Stream over the given source.
// Parameters:
//   - src: paginated source to pull pages from.
//   - policy: retry policy applied to every page request.
//   - log: logger for stream-level events; nil uses the default logger.
// Returns:
//   - *Stream: stream positioned before the first page.
func NewStream(src Source, policy *retry.Policy, log *logger.Logger) *Stream {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Stream{
		src:    src,
		policy: policy,
		logger: log.WithField(logger.FieldSource, src.GetSourceID()),
		state:  stateNeedMore,
	}
}

// Next returns the next candidate reference. It blocks while a page request
// is in flight and returns false once the listing is exhausted, whether
// because the upstream reported no further page token or because a page
// request failed for good. References within one page are emitted
// most-recent-first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - string: next reference URL.
//   - bool: false when the stream has ended.
func (s *Stream) Next(ctx context.Context) (string, bool) {
	for {
		switch s.state {
		case stateExhausted:
			return "", false

		case stateFetched:
			url := s.buffer[len(s.buffer)-1]
			s.buffer = s.buffer[:len(s.buffer)-1]
			if len(s.buffer) == 0 {
				// Without a token the terminal page must not be re-queried.
				if s.after == "" {
					s.state = stateExhausted
				} else {
					s.state = stateNeedMore
				}
			}
			return url, true

		case stateNeedMore:
			s.state = stateFetching
			page, err := s.fetchPage(ctx)
			if err != nil {
				s.logger.WithError(err).Warn("Listing stream stopped: page request failed after retries")
				s.state = stateExhausted
				return "", false
			}
			s.after = page.After
			if len(page.References) == 0 {
				if s.after == "" {
					s.state = stateExhausted
					return "", false
				}
				// Empty page but more to come: request the next one.
				s.state = stateNeedMore
				continue
			}
			s.buffer = append(s.buffer[:0], page.References...)
			s.state = stateFetched

		case stateFetching:
			// Page requests resolve within Next, so a pull can never observe
			// this state; treat it as a request in progress and resume.
			s.state = stateNeedMore
		}
	}
}

// fetchPage requests one listing page under the retry policy, carrying the
// current pagination token.
func (s *Stream) fetchPage(ctx context.Context) (page domain.Page, err error) {
	err = s.policy.Do(ctx, func() error {
		p, ferr := s.src.FetchPage(ctx, s.after)
		if ferr != nil {
			return ferr
		}
		page = p
		return nil
	})
	return page, err
}
