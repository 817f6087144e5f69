package imgproc

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Thumbnail resizes img to fit within maxDim (preserving aspect ratio),
// encodes it as WebP, and returns the base64-encoded bytes (spec §4.11
// step 7).
func Thumbnail(img image.Image, maxDim int, quality float32) (string, error) {
	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, resized, &webp.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
