package fetcher

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Geometry is the target display shape accepted images must fit.
type Geometry struct {
	Width        int
	Height       int
	RatioEpsilon float64
}

// Ratio returns the display's width:height aspect ratio.
func (g Geometry) Ratio() float64 {
	return float64(g.Width) / float64(g.Height)
}

// AspectRatioError reports a decodable image whose shape does not fit the
// display. It is a terminal verdict: a body that decoded this far is an
// image, so the gallery classifiers never get a look at it.
type AspectRatioError struct {
	ImageWidth    int
	ImageHeight   int
	DisplayWidth  int
	DisplayHeight int
}

func (e *AspectRatioError) Error() string {
	return fmt.Sprintf("aspect ratio not within epsilon (%d:%d instead of %d:%d)",
		e.ImageWidth, e.ImageHeight, e.DisplayWidth, e.DisplayHeight)
}

// PersistError reports a failure while writing an accepted image to the
// store. Classification succeeded; only the disk write failed.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist image: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// renderCandidate decodes body as an image, validates its aspect ratio
// against the display and re-renders it to the display's exact dimensions as
// PNG. PNG, JPEG, GIF, WebP and BMP payloads are recognized.
// Parameters:
//   - body: raw candidate bytes.
//   - display: target geometry.
// Returns:
//   - []byte: PNG-encoded image at display size.
//   - error: a decode error for non-image bodies, *AspectRatioError for
//     ill-fitting images, or an encode error.
func renderCandidate(body []byte, display Geometry) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	iw, ih := bounds.Dx(), bounds.Dy()
	if ih == 0 {
		return nil, fmt.Errorf("image has zero height")
	}
	if math.Abs(float64(iw)/float64(ih)-display.Ratio()) > display.RatioEpsilon {
		return nil, &AspectRatioError{
			ImageWidth:    iw,
			ImageHeight:   ih,
			DisplayWidth:  display.Width,
			DisplayHeight: display.Height,
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, display.Width, display.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
