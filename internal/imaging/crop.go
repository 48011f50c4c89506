package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// CropResult contains the cropped image data
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts region r from img and optionally rescales it.
//
// This is the caller-side step after a user accepts a detected card: the
// detection result only carries geometry, and the chosen bounds are cut out
// here. A scale of 1 (or <= 0) keeps the original resolution.
func Crop(img image.Image, r image.Rectangle, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	r = r.Add(bounds.Min)

	if r.Empty() {
		return nil, errors.Errorf("invalid crop region %v: width and height must be positive", r)
	}
	if !r.In(bounds) {
		return nil, errors.Errorf("crop region %v outside image bounds %v", r, bounds)
	}

	cropped := imaging.Crop(img, r)

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 || newHeight < 1 {
			return nil, errors.Errorf("scale %.3f shrinks crop to nothing", scale)
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, errors.Wrap(err, "failed to encode cropped image")
	}

	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Scale maps working-copy coordinates back to the source image, per axis
// (source = resized * factor).
type Scale struct {
	X, Y float64
}

// Identity is the Scale of an image that was not resized.
var Identity = Scale{X: 1, Y: 1}

// Downscale shrinks img so that its longer side is at most maxSide pixels.
//
// It returns the resized image and the per-axis factors that map its
// coordinates back to the source. Both sides are rounded to whole pixels, so
// on very wide or tall images the two factors differ noticeably. Images
// already small enough are returned as-is with Identity. A box filter is used:
// it is fast and averages away sensor noise, which helps the detectors more
// than sharpness.
func Downscale(img image.Image, maxSide int) (image.Image, Scale) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if maxSide <= 0 || longest <= maxSide {
		return img, Identity
	}

	factor := float64(longest) / float64(maxSide)
	nw := int(float64(w)/factor + 0.5)
	nh := int(float64(h)/factor + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	resized := imaging.Resize(img, nw, nh, imaging.Box)
	return resized, Scale{X: float64(w) / float64(nw), Y: float64(h) / float64(nh)}
}
