package fetcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imgurMarker identifies the script tag carrying an imgur gallery's post data.
const imgurMarker = "postDataJSON"

// imgurGallery mirrors the JSON payload embedded in an imgur gallery page.
type imgurGallery struct {
	Media []imgurMedia `json:"media"`
}

type imgurMedia struct {
	URL string `json:"url"`
}

// parseImgurGallery extracts the member references of an imgur gallery page.
// The page embeds `window.postDataJSON = "..."`: a script whose quoted string
// literal is itself JSON. Any structural defect (no marker script, missing
// quotes, malformed JSON, members without urls) rejects the whole gallery; no
// partial galleries are produced.
// Parameters:
//   - body: raw page bytes.
// Returns:
//   - []string: member reference urls in payload order.
//   - error: non-nil when the body is not an imgur gallery.
func parseImgurGallery(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var text string
	found := false
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		t := sel.Text()
		if strings.Contains(t, imgurMarker) {
			text = t
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil, fmt.Errorf("no script containing %q", imgurMarker)
	}

	start := strings.IndexAny(text, `'"`)
	end := strings.LastIndexAny(text, `'"`)
	if start == -1 || end <= start {
		return nil, errors.New("could not find quoted post data")
	}

	var inner string
	if err := json.Unmarshal([]byte(text[start:end+1]), &inner); err != nil {
		return nil, fmt.Errorf("post data is not a JSON string: %w", err)
	}

	var gallery imgurGallery
	if err := json.Unmarshal([]byte(inner), &gallery); err != nil {
		return nil, fmt.Errorf("failed to parse gallery payload: %w", err)
	}
	if gallery.Media == nil {
		return nil, errors.New("gallery payload has no media list")
	}

	urls := make([]string, 0, len(gallery.Media))
	for _, media := range gallery.Media {
		if media.URL == "" {
			return nil, errors.New("gallery member without a url")
		}
		urls = append(urls, media.URL)
	}
	return urls, nil
}
