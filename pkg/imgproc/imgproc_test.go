package imgproc_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/imgproc"
)

func writeJPEG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func TestValidateMissingFile(t *testing.T) {
	err := imgproc.Validate(filepath.Join(t.TempDir(), "nope.jpg"), 1000)
	require.Error(t, err)
	var perrErr *perr.Error
	require.ErrorAs(t, err, &perrErr)
	require.Equal(t, perr.StageValidation, perrErr.Stage)
}

func TestValidateFileTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.jpg")
	writeJPEG(t, path, 4, 4)
	info, err := os.Stat(path)
	require.NoError(t, err)

	err = imgproc.Validate(path, info.Size()-1)
	require.Error(t, err)
	err = imgproc.Validate(path, info.Size())
	require.NoError(t, err)
}

func TestValidateZeroLengthFileFailsUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.jpg")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	err := imgproc.Validate(path, 1000)
	require.Error(t, err)
}

func TestValidateTiffRequiresFullSignature(t *testing.T) {
	dir := t.TempDir()
	// Just "II" without the full 4-byte TIFF signature must NOT pass.
	partial := filepath.Join(dir, "fake.tiff")
	require.NoError(t, os.WriteFile(partial, []byte("II\x00\x00garbage"), 0o644))
	require.Error(t, imgproc.Validate(partial, 1000))

	full := filepath.Join(dir, "real.tiff")
	require.NoError(t, os.WriteFile(full, append([]byte{0x49, 0x49, 0x2A, 0x00}, make([]byte, 16)...), 0o644))
	require.NoError(t, imgproc.Validate(full, 1000))
}

func TestDecodeFromBytesRejectsOversizedDimension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.jpg")
	data := writeJPEG(t, path, 100, 50)

	_, err := imgproc.DecodeFromBytes(data, path, 99)
	require.Error(t, err)
	var perrErr *perr.Error
	require.ErrorAs(t, err, &perrErr)
}

func TestDecodeFromBytesCorruptBodyFailsDecodeNotPanic(t *testing.T) {
	buf := append([]byte{0xFF, 0xD8, 0xFF}, make([]byte, 20)...) // valid magic, garbage body
	_, err := imgproc.DecodeFromBytes(buf, "corrupt.jpg", 10000)
	require.Error(t, err)
}

func TestDecodeFromBytesSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.jpg")
	data := writeJPEG(t, path, 32, 16)

	decoded, err := imgproc.DecodeFromBytes(data, path, 10000)
	require.NoError(t, err)
	require.Equal(t, "jpeg", decoded.Format)
	require.Equal(t, 32, decoded.Width)
	require.Equal(t, 16, decoded.Height)
}

func TestContentHashFromBytesIsStableAndHexEncoded(t *testing.T) {
	a := imgproc.ContentHashFromBytes([]byte("hello"))
	b := imgproc.ContentHashFromBytes([]byte("hello"))
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestHasherProducesStableHashForSameImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 0, 255})
		}
	}
	h := imgproc.NewHasher()
	first := h.Hash(img)
	second := h.Hash(img)
	require.Equal(t, first, second)
	require.NotEmpty(t, first)
}

func TestThumbnailProducesNonEmptyBase64(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	out, err := imgproc.Thumbnail(img, 64, 80)
	require.NoError(t, err)
	require.NotEmpty(t, out)
}
