package imgproc

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// ContentHashFromBytes returns the BLAKE3 hex digest of buf.
func ContentHashFromBytes(buf []byte) string {
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// ContentHashFromReader streams r through BLAKE3 without buffering the
// whole input in memory, for the batch driver's skip-existing
// pre-filter (spec §4.12 step 2).
func ContentHashFromReader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
