package progressive_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/pkg/labelbank"
	"github.com/photon-img/photon/pkg/progressive"
	"github.com/photon-img/photon/pkg/tagscorer"
	"github.com/photon-img/photon/pkg/textenc"
	"github.com/photon-img/photon/pkg/vocab"
)

func buildVocab(t *testing.T, n int) *vocab.Vocabulary {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wordnet.tsv")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := f.WriteString("term" + itoa(i) + "\tsn" + itoa(i) + "\tterm " + itoa(i) + "\tanimal\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
	v, err := vocab.Load(path, "")
	require.NoError(t, err)
	return v
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

// fakeEncoder always succeeds, producing a deterministic row per index.
type fakeEncoder struct {
	failChunkAt int // chunk call index that should fail; -1 disables
	calls       int
}

func (f *fakeEncoder) EncodeVocabularyChunked(v *vocab.Vocabulary, chunkSize int, indices []int, onProgress func(textenc.ChunkProgress)) (*labelbank.LabelBank, []int, error) {
	call := f.calls
	f.calls++
	if f.failChunkAt == call {
		return labelbank.New(tagscorer.EmbeddingDim), nil, nil
	}
	bank := labelbank.New(tagscorer.EmbeddingDim)
	rows := make([][]float32, len(indices))
	for i := range indices {
		rows[i] = make([]float32, tagscorer.EmbeddingDim)
	}
	_ = bank.AppendRows(rows)
	return bank, indices, nil
}

func TestStartInstallsSeedScorerBeforeReturning(t *testing.T) {
	v := buildVocab(t, 20)
	enc := &fakeEncoder{failChunkAt: -1}
	r := progressive.New(enc, tagscorer.Config{MaxTags: 5, MinConfidence: 0}, progressive.CachePaths{}, nil)

	err := r.StartSynchronous(v, 5, "", 5, v.ContentHash())
	require.NoError(t, err)
	require.NotNil(t, r.Scorer())
}

func TestStartSynchronousSkipsCacheOnChunkFailure(t *testing.T) {
	v := buildVocab(t, 20)
	enc := &fakeEncoder{failChunkAt: 1} // seed succeeds (call 0), first remainder chunk fails (call 1)
	dir := t.TempDir()
	cache := progressive.CachePaths{BinPath: filepath.Join(dir, "bank.bin"), MetaPath: filepath.Join(dir, "bank.json")}
	r := progressive.New(enc, tagscorer.Config{MaxTags: 5}, cache, nil)

	err := r.StartSynchronous(v, 5, "", 5, v.ContentHash())
	require.NoError(t, err)
	_, statErr := os.Stat(cache.BinPath)
	require.True(t, os.IsNotExist(statErr), "cache should not be written when a chunk failed")
}

func TestStartSynchronousSavesCacheWhenAllChunksSucceed(t *testing.T) {
	v := buildVocab(t, 10)
	enc := &fakeEncoder{failChunkAt: -1}
	dir := t.TempDir()
	cache := progressive.CachePaths{BinPath: filepath.Join(dir, "bank.bin"), MetaPath: filepath.Join(dir, "bank.json")}
	r := progressive.New(enc, tagscorer.Config{MaxTags: 5}, cache, nil)

	err := r.StartSynchronous(v, 5, "", 5, v.ContentHash())
	require.NoError(t, err)
	_, statErr := os.Stat(cache.BinPath)
	require.NoError(t, statErr)
}
