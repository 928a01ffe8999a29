package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PurpleMyst/redditbg/internal/domain"
	"github.com/PurpleMyst/redditbg/internal/retry"
)

// fakeSource serves a scripted sequence of pages keyed by the after token.
type fakeSource struct {
	pages map[string]domain.Page
	errs  map[string]error
	calls []string
}

func (f *fakeSource) GetSourceID() string    { return "fake" }
func (f *fakeSource) GetDisplayName() string { return "Fake" }

func (f *fakeSource) FetchPage(ctx context.Context, after string) (domain.Page, error) {
	f.calls = append(f.calls, after)
	if err, ok := f.errs[after]; ok {
		return domain.Page{}, err
	}
	page, ok := f.pages[after]
	if !ok {
		return domain.Page{}, errors.New("unexpected page request")
	}
	return page, nil
}

func fastPolicy(retries int) *retry.Policy {
	return retry.New(&retry.Config{
		Retries: retries,
		MinWait: time.Microsecond,
		MaxWait: 10 * time.Microsecond,
		Jitter:  0.3,
	})
}

func drain(t *testing.T, s *Stream, max int) []string {
	t.Helper()
	var got []string
	for i := 0; i < max; i++ {
		url, ok := s.Next(context.Background())
		if !ok {
			return got
		}
		got = append(got, url)
	}
	t.Fatalf("stream did not terminate within %d pulls", max)
	return nil
}

func TestStreamSinglePageThenExhausted(t *testing.T) {
	src := &fakeSource{pages: map[string]domain.Page{
		"": {After: "", References: []string{"http://x/a.png"}},
	}}
	s := NewStream(src, fastPolicy(1), nil)

	got := drain(t, s, 10)
	if len(got) != 1 || got[0] != "http://x/a.png" {
		t.Fatalf("expected exactly [http://x/a.png], got %v", got)
	}

	// A terminal token-less page must never be requested again.
	if len(src.calls) != 1 {
		t.Errorf("expected 1 page request, got %d (%v)", len(src.calls), src.calls)
	}

	// The exhausted state is sticky.
	if _, ok := s.Next(context.Background()); ok {
		t.Error("exhausted stream produced another reference")
	}
}

func TestStreamEmitsMostRecentFirst(t *testing.T) {
	src := &fakeSource{pages: map[string]domain.Page{
		"": {After: "", References: []string{"one", "two", "three"}},
	}}
	s := NewStream(src, fastPolicy(1), nil)

	got := drain(t, s, 10)
	want := []string{"three", "two", "one"}
	if len(got) != len(want) {
		t.Fatalf("expected %d references, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reference %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStreamCarriesTokenAcrossPages(t *testing.T) {
	src := &fakeSource{pages: map[string]domain.Page{
		"":   {After: "t1", References: []string{"a"}},
		"t1": {After: "t2", References: []string{"b"}},
		"t2": {After: "", References: []string{"c"}},
	}}
	s := NewStream(src, fastPolicy(1), nil)

	got := drain(t, s, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 references, got %v", got)
	}

	wantCalls := []string{"", "t1", "t2"}
	if len(src.calls) != len(wantCalls) {
		t.Fatalf("expected calls %v, got %v", wantCalls, src.calls)
	}
	for i := range wantCalls {
		if src.calls[i] != wantCalls[i] {
			t.Errorf("call %d used token %q, want %q", i, src.calls[i], wantCalls[i])
		}
	}
}

func TestStreamSkipsEmptyPageWithToken(t *testing.T) {
	src := &fakeSource{pages: map[string]domain.Page{
		"":   {After: "t1", References: nil},
		"t1": {After: "", References: []string{"a"}},
	}}
	s := NewStream(src, fastPolicy(1), nil)

	got := drain(t, s, 10)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected [a], got %v", got)
	}
}

func TestStreamExhaustsOnEmptyTerminalPage(t *testing.T) {
	src := &fakeSource{pages: map[string]domain.Page{
		"": {After: "", References: nil},
	}}
	s := NewStream(src, fastPolicy(1), nil)

	if url, ok := s.Next(context.Background()); ok {
		t.Fatalf("expected immediate exhaustion, got %q", url)
	}
	if len(src.calls) != 1 {
		t.Errorf("expected 1 page request, got %d", len(src.calls))
	}
}

func TestStreamExhaustsAfterRetriesFail(t *testing.T) {
	src := &fakeSource{
		pages: map[string]domain.Page{
			"": {After: "t1", References: []string{"a"}},
		},
		errs: map[string]error{
			"t1": errors.New("connection refused"),
		},
	}
	s := NewStream(src, fastPolicy(2), nil)

	got := drain(t, s, 10)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected [a] before the failure, got %v", got)
	}

	// First page once, failing page once plus two retries.
	if len(src.calls) != 4 {
		t.Errorf("expected 4 page requests, got %d (%v)", len(src.calls), src.calls)
	}
}
