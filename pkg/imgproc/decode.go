package imgproc

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/chai2010/webp"

	"github.com/photon-img/photon/internal/perr"
)

// Decoded is the result of decoding one image's bytes.
type Decoded struct {
	Image  image.Image
	Format string
	Width  int
	Height int
}

// DecodeFromBytes decodes buf using content-guessed format (never the
// file extension) and enforces maxDimension on the larger side, per
// spec §4.11 step 4.
func DecodeFromBytes(buf []byte, path string, maxDimension int) (Decoded, error) {
	format := sniffFormat(buf)
	var img image.Image
	var err error

	if format == "webp" {
		img, err = webp.Decode(bytes.NewReader(buf))
	} else {
		img, format, err = image.Decode(bytes.NewReader(buf))
	}
	if err != nil {
		return Decoded{}, perr.DecodeFailed(path, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDimension > 0 {
		if m := max(w, h); m > maxDimension {
			return Decoded{}, perr.ImageTooLarge(path, m, maxDimension)
		}
	}

	return Decoded{Image: img, Format: format, Width: w, Height: h}, nil
}
