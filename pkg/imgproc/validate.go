// Package imgproc implements the per-image pipeline stages from spec
// §4.11: validation, hashing, decoding, EXIF extraction, perceptual
// hashing, and thumbnailing.
package imgproc

import (
	"bytes"
	"os"

	"github.com/photon-img/photon/internal/perr"
)

// magicSignatures lists the full byte signatures Validate checks,
// longest/most specific first where prefixes would otherwise collide.
// TIFF deliberately requires the full 4-byte signature, not just the
// two-byte endianness marker, per spec §4.11 step 1.
var magicSignatures = []struct {
	format string
	sig    []byte
}{
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"gif", []byte("GIF87a")},
	{"gif", []byte("GIF89a")},
	{"bmp", []byte{0x42, 0x4D}},
	{"tiff", []byte{0x49, 0x49, 0x2A, 0x00}}, // "II*\x00", little-endian
	{"tiff", []byte{0x4D, 0x4D, 0x00, 0x2A}}, // "MM\x00*", big-endian
}

// sniffFormat returns the format name for buf's magic bytes, or ""
// if none match. WebP needs a two-offset check (RIFF....WEBP) so it's
// handled separately from the simple-prefix table.
func sniffFormat(buf []byte) string {
	for _, m := range magicSignatures {
		if len(buf) >= len(m.sig) && bytes.Equal(buf[:len(m.sig)], m.sig) {
			return m.format
		}
	}
	if len(buf) >= 12 && bytes.Equal(buf[0:4], []byte("RIFF")) && bytes.Equal(buf[8:12], []byte("WEBP")) {
		return "webp"
	}
	return ""
}

// Validate checks path exists, its size is within maxFileSizeBytes (an
// exact byte comparison, not an integer-divided MB threshold), and its
// content begins with a recognized image signature.
func Validate(path string, maxFileSizeBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return perr.FileNotFound(path, err)
	}
	if info.Size() > maxFileSizeBytes {
		return perr.FileTooLarge(path, info.Size(), maxFileSizeBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return perr.FileNotFound(path, err)
	}
	defer f.Close()

	head := make([]byte, 12)
	n, _ := f.Read(head)
	if sniffFormat(head[:n]) == "" {
		return perr.UnsupportedFormat(path)
	}
	return nil
}
