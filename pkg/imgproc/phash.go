package imgproc

import (
	"encoding/hex"
	"image"

	"github.com/disintegration/imaging"
)

// Hasher computes a DoubleGradient perceptual hash at a fixed 16x16
// resolution. It holds no state beyond its size, so one Hasher built on
// the orchestrator is shared by every image.
type Hasher struct {
	size int
}

// NewHasher returns a 16x16 DoubleGradient hasher, the fixed resolution
// spec §4.11 specifies.
func NewHasher() *Hasher {
	return &Hasher{size: 16}
}

// Hash computes the perceptual hash of img and returns it as a hex
// string. DoubleGradient compares each pixel to both its right and
// below neighbor, producing 2*size*(size-1) bits — for size=16 that's
// 480 bits (60 bytes).
func (h *Hasher) Hash(img image.Image) string {
	small := imaging.Resize(img, h.size, h.size, imaging.Lanczos)
	gray := make([][]float64, h.size)
	for y := 0; y < h.size; y++ {
		gray[y] = make([]float64, h.size)
		for x := 0; x < h.size; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			gray[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	var bits []bool
	// Horizontal gradient: each pixel vs its right neighbor.
	for y := 0; y < h.size; y++ {
		for x := 0; x < h.size-1; x++ {
			bits = append(bits, gray[y][x] > gray[y][x+1])
		}
	}
	// Vertical gradient: each pixel vs the one below it.
	for y := 0; y < h.size-1; y++ {
		for x := 0; x < h.size; x++ {
			bits = append(bits, gray[y][x] > gray[y+1][x])
		}
	}

	packed := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	return hex.EncodeToString(packed)
}
