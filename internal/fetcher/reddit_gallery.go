package fetcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// redditGalleryMarker opens the state blob in a reddit gallery's data script.
const redditGalleryMarker = "window.___r"

// redditGallery mirrors the slice of reddit's embedded page state that holds
// gallery media. The interesting urls sit at
// posts.models.<id>.media.mediaMetadata.<id>.s.u.
type redditGallery struct {
	Posts struct {
		Models map[string]redditModel `json:"models"`
	} `json:"posts"`
}

type redditModel struct {
	Media struct {
		MediaMetadata map[string]redditMediaMetadata `json:"mediaMetadata"`
	} `json:"media"`
}

type redditMediaMetadata struct {
	S struct {
		U string `json:"u"`
	} `json:"s"`
}

// parseRedditGallery extracts the member references of a reddit gallery page.
// The page carries a `script#data` tag opening with `window.___r = {...}`;
// the first `{` through the last `}` of its text is the JSON state blob. Any
// structural defect rejects the whole gallery; no partial galleries are
// produced.
// Parameters:
//   - body: raw page bytes.
// Returns:
//   - []string: member reference urls (model iteration order is unspecified).
//   - error: non-nil when the body is not a reddit gallery.
func parseRedditGallery(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	sel := doc.Find("script#data").First()
	if sel.Length() == 0 {
		return nil, errors.New(`no script tag with id "data"`)
	}
	text := sel.Text()
	if !strings.HasPrefix(strings.TrimSpace(text), redditGalleryMarker) {
		return nil, fmt.Errorf("data script does not open with %q", redditGalleryMarker)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, errors.New("no JSON object in data script")
	}

	var gallery redditGallery
	if err := json.Unmarshal([]byte(text[start:end+1]), &gallery); err != nil {
		return nil, fmt.Errorf("failed to parse gallery payload: %w", err)
	}
	if gallery.Posts.Models == nil {
		return nil, errors.New("gallery payload has no post models")
	}

	var urls []string
	for _, model := range gallery.Posts.Models {
		if model.Media.MediaMetadata == nil {
			return nil, errors.New("post model without media metadata")
		}
		for _, meta := range model.Media.MediaMetadata {
			if meta.S.U == "" {
				return nil, errors.New("gallery member without a url")
			}
			urls = append(urls, meta.S.U)
		}
	}
	return urls, nil
}
