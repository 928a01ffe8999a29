package fetcher

import (
	"sort"
	"testing"
)

const redditGalleryPage = `<!DOCTYPE html>
<html>
<body>
<script id="data">window.___r = {"posts":{"models":{"t3_abcdef":{"media":{"mediaMetadata":{"m1":{"s":{"u":"https://preview.redd.it/one.jpg"}},"m2":{"s":{"u":"https://preview.redd.it/two.jpg"}}}}}}}};</script>
</body>
</html>`

func TestParseRedditGalleryExtractsMembers(t *testing.T) {
	urls, err := parseRedditGallery([]byte(redditGalleryPage))
	if err != nil {
		t.Fatalf("expected gallery to parse, got %v", err)
	}

	sort.Strings(urls)
	want := []string{
		"https://preview.redd.it/one.jpg",
		"https://preview.redd.it/two.jpg",
	}
	if len(urls) != len(want) {
		t.Fatalf("expected %d members, got %d (%v)", len(want), len(urls), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("member %d: expected %q, got %q", i, want[i], urls[i])
		}
	}
}

func TestParseRedditGalleryAcceptsEmptyModels(t *testing.T) {
	page := `<html><body><script id="data">window.___r = {"posts":{"models":{}}};</script></body></html>`
	urls, err := parseRedditGallery([]byte(page))
	if err != nil {
		t.Fatalf("expected an empty gallery to parse, got %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("expected no members, got %v", urls)
	}
}

func TestParseRedditGalleryRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no data script",
			body: `<html><body><script>window.___r = {"posts":{"models":{}}};</script></body></html>`,
		},
		{
			name: "data script without state marker",
			body: `<html><body><script id="data">var config = {"posts":{"models":{}}};</script></body></html>`,
		},
		{
			name: "state blob is not json",
			body: `<html><body><script id="data">window.___r = {broken};</script></body></html>`,
		},
		{
			name: "state without models",
			body: `<html><body><script id="data">window.___r = {"posts":{}};</script></body></html>`,
		},
		{
			name: "model without media metadata",
			body: `<html><body><script id="data">window.___r = {"posts":{"models":{"t3_x":{"media":{}}}}};</script></body></html>`,
		},
		{
			name: "member without url",
			body: `<html><body><script id="data">window.___r = {"posts":{"models":{"t3_x":{"media":{"mediaMetadata":{"m1":{"s":{}}}}}}}};</script></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseRedditGallery([]byte(tt.body)); err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}
