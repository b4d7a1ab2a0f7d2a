package planner

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// EncodeImage downscales img to fit within maxSide pixels and returns it as base64-encoded PNG.
// Images already small enough are not resampled.
func EncodeImage(img image.Image, maxSide int) (string, error) {
	b := img.Bounds()
	if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", errors.Wrap(err, "encoding snapshot")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
