package service

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PurpleMyst/redditbg/internal/config"
	"github.com/PurpleMyst/redditbg/internal/domain"
	"github.com/PurpleMyst/redditbg/internal/repository"
	"github.com/PurpleMyst/redditbg/internal/store"
)

// pngBytes renders a small 16:9 PNG the pipeline will accept against a
// 1920x1080 display.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

// listingBody builds a reddit "new" listing response carrying the given urls.
func listingBody(t *testing.T, urls []string, after string) []byte {
	t.Helper()
	type child struct {
		Data struct {
			URL    string `json:"url"`
			Over18 bool   `json:"over_18"`
		} `json:"data"`
	}
	children := make([]child, 0, len(urls))
	for _, u := range urls {
		var c child
		c.Data.URL = u
		children = append(children, c)
	}
	body, err := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"children": children,
			"after":    after,
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal listing: %v", err)
	}
	return body
}

// acquireFixture is one wired-up acquisition environment: an HTTP server
// standing in for reddit, a sqlite ledger and a temp-dir store.
type acquireFixture struct {
	svc        *AcquireService
	ledgerRepo *repository.LedgerRepository
	store      *store.Store
	server     *httptest.Server

	listingHits atomic.Int64
	imageHits   atomic.Int64
}

// newAcquireFixture serves imageURLCount image paths from one terminal
// listing page and wires an AcquireService with the given pool target at it.
func newAcquireFixture(t *testing.T, target, imageURLCount int) *acquireFixture {
	t.Helper()

	f := &acquireFixture{}
	img := pngBytes(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/r/test/new.json", func(w http.ResponseWriter, r *http.Request) {
		f.listingHits.Add(1)
		urls := make([]string, 0, imageURLCount)
		for i := 0; i < imageURLCount; i++ {
			urls = append(urls, f.server.URL+"/img/"+string(rune('a'+i))+".png")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(listingBody(t, urls, ""))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		f.imageHits.Add(1)
		w.Write(img)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	f.ledgerRepo = repository.NewLedgerRepository(db)

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	f.store = st

	cfg := &config.Config{
		Store:   config.StoreConfig{Dir: st.Dir()},
		Listing: config.ListingConfig{Subreddits: []string{"test"}, BaseURL: f.server.URL, UserAgent: "redditbg-test"},
		Display: config.DisplayConfig{Width: 1920, Height: 1080, RatioEpsilon: 0.01},
		Fetch:   config.FetchConfig{Target: target, Workers: 4, Timeout: 5 * time.Second},
		Backoff: config.BackoffConfig{Retries: 1, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond, Jitter: 0.3},
	}
	f.svc = NewAcquireService(f.ledgerRepo, repository.NewRunRepository(db), st, cfg, nil)
	return f
}

func TestAcquireFillsThePool(t *testing.T) {
	f := newAcquireFixture(t, 2, 2)
	ctx := context.Background()

	accepted, err := f.svc.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if accepted != 2 {
		t.Errorf("expected 2 accepted, got %d", accepted)
	}

	count, err := f.store.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 stored images, got %d", count)
	}

	// The post-run reconcile registers both writes as downloaded.
	for _, suffix := range []string{"/img/a.png", "/img/b.png"} {
		seen, err := f.ledgerRepo.Contains(ctx, f.server.URL+suffix, domain.LedgerDownloaded)
		if err != nil {
			t.Fatalf("ledger lookup failed: %v", err)
		}
		if !seen {
			t.Errorf("expected %s in the downloaded ledger", suffix)
		}
	}
}

func TestAcquireReportsAtMostNeed(t *testing.T) {
	f := newAcquireFixture(t, 2, 5)

	accepted, err := f.svc.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if accepted > 2 {
		t.Errorf("accepted %d exceeds the quota of 2", accepted)
	}
}

func TestAcquireFullPoolSkipsTheNetwork(t *testing.T) {
	f := newAcquireFixture(t, 1, 3)
	ctx := context.Background()

	if _, err := f.store.Write(ctx, "https://i.redd.it/existing.png", pngBytes(t)); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	accepted, err := f.svc.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if accepted != 0 {
		t.Errorf("expected 0 accepted for a full pool, got %d", accepted)
	}
	if hits := f.listingHits.Load(); hits != 0 {
		t.Errorf("expected no listing requests for a full pool, got %d", hits)
	}
}

func TestAcquireNeverRefetchesResolvedReferences(t *testing.T) {
	f := newAcquireFixture(t, 2, 2)
	ctx := context.Background()

	if _, err := f.svc.Acquire(ctx); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	firstImageHits := f.imageHits.Load()

	// Empty the pool so the second run has a reason to pull the listing;
	// the ledger alone must keep the references from being refetched.
	entries, err := f.store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, e := range entries {
		if err := f.store.Remove(ctx, e.URL); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
	}

	accepted, err := f.svc.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if accepted != 0 {
		t.Errorf("expected 0 accepted on the second run, got %d", accepted)
	}
	if hits := f.imageHits.Load(); hits != firstImageHits {
		t.Errorf("expected no further image fetches, got %d extra", hits-firstImageHits)
	}
}

func TestAcquireMarksUnrecognizedContentInvalid(t *testing.T) {
	var fx *acquireFixture

	mux := http.NewServeMux()
	mux.HandleFunc("/r/test/new.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(listingBody(t, []string{fx.server.URL + "/junk"}, ""))
	})
	mux.HandleFunc("/junk", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>nothing to see</body></html>"))
	})

	fx = newAcquireFixture(t, 1, 0)
	fx.server.Config.Handler = mux

	ctx := context.Background()
	accepted, err := fx.svc.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if accepted != 0 {
		t.Errorf("expected 0 accepted, got %d", accepted)
	}

	seen, err := fx.ledgerRepo.Contains(ctx, fx.server.URL+"/junk", domain.LedgerInvalid)
	if err != nil {
		t.Fatalf("ledger lookup failed: %v", err)
	}
	if !seen {
		t.Error("expected the unrecognized reference in the invalid ledger")
	}
}
