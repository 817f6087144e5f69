// Package labelbank holds a contiguous N×768 matrix of text embeddings
// for a subset of the vocabulary, with a disk cache protocol keyed by
// vocabulary content hash.
package labelbank

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

const headerSize = 16

// LabelBank is a row-major, flat f32 matrix: row i is the L2-normalized
// text embedding of the term with encoded_index i.
type LabelBank struct {
	dim    int
	matrix []float32 // len == termCount*dim
}

// New creates an empty bank with the given embedding dimension.
func New(dim int) *LabelBank {
	return &LabelBank{dim: dim}
}

// Dim returns the embedding dimension.
func (b *LabelBank) Dim() int { return b.dim }

// TermCount returns the number of rows.
func (b *LabelBank) TermCount() int {
	if b.dim == 0 {
		return 0
	}
	return len(b.matrix) / b.dim
}

// Row returns row i as a slice view into the underlying matrix. The
// slice must not be retained past the next mutation of b.
func (b *LabelBank) Row(i int) []float32 {
	return b.matrix[i*b.dim : (i+1)*b.dim]
}

// Matrix returns the full flat row-major matrix.
func (b *LabelBank) Matrix() []float32 { return b.matrix }

// AppendRows appends raw rows (already L2-normalized, dim-sized each)
// in bulk; used by the text encoder when it produces a fresh chunk.
func (b *LabelBank) AppendRows(rows [][]float32) error {
	for _, row := range rows {
		if len(row) != b.dim {
			return fmt.Errorf("labelbank: row has dimension %d, want %d", len(row), b.dim)
		}
	}
	for _, row := range rows {
		b.matrix = append(b.matrix, row...)
	}
	return nil
}

// Append concatenates other's rows onto b. Returns an error (rather
// than panicking) on dimension mismatch, and leaves b unchanged on
// error per spec §8 boundary behavior.
func (b *LabelBank) Append(other *LabelBank) error {
	if other.TermCount() == 0 {
		return nil
	}
	if b.dim != 0 && b.dim != other.dim {
		return fmt.Errorf("labelbank: cannot append dim %d onto dim %d", other.dim, b.dim)
	}
	if b.dim == 0 {
		b.dim = other.dim
	}
	b.matrix = append(b.matrix, other.matrix...)
	return nil
}

// meta is the JSON sidecar written alongside the binary cache.
type meta struct {
	VocabularyHash string `json:"vocabulary_hash"`
	EmbeddingDim   uint32 `json:"embedding_dim"`
	TermCount      uint32 `json:"term_count"`
}

// Save writes the binary matrix to binPath and the sidecar JSON to
// metaPath, both atomically-enough for a batch CLI (write-then-rename
// is not required here since a partial write is simply re-encoded on
// next startup per spec §5 progressive-encoder lifecycle).
func Save(b *LabelBank, binPath, metaPath string, vocabularyHash [32]byte) error {
	f, err := os.Create(binPath)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(b.dim))
	binary.LittleEndian.PutUint32(header[4:8], uint32(b.TermCount()))
	if _, err := f.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, v := range b.matrix {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := f.Write(buf); err != nil {
			return err
		}
	}

	m := meta{
		VocabularyHash: hex.EncodeToString(vocabularyHash[:]),
		EmbeddingDim:   uint32(b.dim),
		TermCount:      uint32(b.TermCount()),
	}
	metaBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, metaBytes, 0o644)
}

// Load reads the binary matrix and sidecar. It returns ErrCacheStale
// when the sidecar's vocabulary hash does not match currentHash, per
// the cache protocol in spec §4.3/§8 invariant 10 — the caller must
// treat that as "ignore the cache, re-encode".
func Load(binPath, metaPath string, currentHash [32]byte) (*LabelBank, error) {
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	var m meta
	if err := json.Unmarshal(metaBytes, &m); err != nil {
		return nil, fmt.Errorf("labelbank: corrupt meta sidecar: %w", err)
	}
	if m.VocabularyHash != hex.EncodeToString(currentHash[:]) {
		return nil, ErrCacheStale
	}

	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("labelbank: truncated cache file")
	}
	dim := int(binary.LittleEndian.Uint32(data[0:4]))
	termCount := int(binary.LittleEndian.Uint32(data[4:8]))
	expected := headerSize + termCount*dim*4
	if len(data) != expected {
		return nil, fmt.Errorf("labelbank: cache size %d does not match header (want %d)", len(data), expected)
	}

	matrix := make([]float32, termCount*dim)
	off := headerSize
	for i := range matrix {
		bits := binary.LittleEndian.Uint32(data[off : off+4])
		matrix[i] = math.Float32frombits(bits)
		off += 4
	}
	return &LabelBank{dim: dim, matrix: matrix}, nil
}

// ErrCacheStale is returned by Load when the sidecar's vocabulary hash
// does not match the vocabulary currently in use.
var ErrCacheStale = fmt.Errorf("labelbank: cache is stale (vocabulary hash mismatch)")
