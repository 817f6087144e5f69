// Package visualenc produces 768-dim L2-normalized image embeddings
// from raw bytes via SigLIP's vision tower.
package visualenc

import (
	"image"

	"github.com/disintegration/imaging"
)

// Preprocess resizes img to size×size with Lanczos3, converts to RGB,
// normalizes pixels to [-1,1] via (p/255 - 0.5)/0.5, and packs the
// result into NCHW float32 layout (1×3×H×W), matching spec §4.4. The
// per-channel loop walks the resized image's raw pixel buffer directly
// rather than calling At(x,y) per pixel, avoiding repeated bounds
// checks on a hot path that runs once per image.
func Preprocess(img image.Image, size int) []float32 {
	resized := imaging.Resize(img, size, size, imaging.Lanczos)
	nrgba := imaging.Clone(resized) // ensures a packed *image.NRGBA regardless of source color model

	out := make([]float32, 3*size*size)
	plane := size * size
	stride := nrgba.Stride
	pix := nrgba.Pix

	for y := 0; y < size; y++ {
		rowOff := y * stride
		for x := 0; x < size; x++ {
			p := rowOff + x*4
			r := float32(pix[p])
			g := float32(pix[p+1])
			b := float32(pix[p+2])

			idx := y*size + x
			out[idx] = (r/255 - 0.5) / 0.5
			out[plane+idx] = (g/255 - 0.5) / 0.5
			out[2*plane+idx] = (b/255 - 0.5) / 0.5
		}
	}
	return out
}

// ImageSizeForModel derives the expected square input size from a
// configured SigLIP model name, per spec §4.11: "siglip-base-patch16"
// implies 224, "siglip-base-patch16-384" implies 384.
func ImageSizeForModel(model string) int {
	if len(model) >= 4 && model[len(model)-4:] == "-384" {
		return 384
	}
	return 224
}
