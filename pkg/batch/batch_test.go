package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/pkg/batch"
	"github.com/photon-img/photon/pkg/imgproc"
	"github.com/photon-img/photon/pkg/record"
)

func writeFile(t *testing.T, path string, contents []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, contents, 0o644))
}

func TestDiscoverFindsImagesAndIgnoresNonImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), []byte("x"))
	writeFile(t, filepath.Join(dir, "b.txt"), []byte("x"))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, filepath.Join(sub, "c.PNG"), []byte("x"))

	files, err := batch.Discover(context.Background(), []string{dir}, 0, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestDiscoverRespectsMaxDepth(t *testing.T) {
	dir := t.TempDir()
	deep := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	writeFile(t, filepath.Join(deep, "deep.jpg"), []byte("x"))
	writeFile(t, filepath.Join(dir, "shallow.jpg"), []byte("x"))

	files, err := batch.Discover(context.Background(), []string{dir}, 1, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, filepath.Join(dir, "shallow.jpg"), files[0])
}

func TestLoadExistingHashesMissingFileReturnsEmptySet(t *testing.T) {
	hashes, err := batch.LoadExistingHashes(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.NoError(t, err)
	require.Empty(t, hashes)
}

func TestLoadExistingHashesParsesJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	imgs := []record.ProcessedImage{{ContentHash: "abc"}, {ContentHash: "def"}}
	data, err := json.Marshal(imgs)
	require.NoError(t, err)
	writeFile(t, path, data)

	hashes, err := batch.LoadExistingHashes(path, nil)
	require.NoError(t, err)
	require.True(t, hashes["abc"])
	require.True(t, hashes["def"])
}

func TestLoadExistingHashesParsesJSONLSkippingCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	var buf []byte
	rec1, _ := json.Marshal(record.NewCoreRecord(record.ProcessedImage{ContentHash: "hash1"}))
	rec2, _ := json.Marshal(record.NewCoreRecord(record.ProcessedImage{ContentHash: "hash2"}))
	buf = append(buf, rec1...)
	buf = append(buf, '\n')
	buf = append(buf, []byte("{not valid json")...)
	buf = append(buf, '\n')
	buf = append(buf, rec2...)
	buf = append(buf, '\n')
	writeFile(t, path, buf)

	hashes, err := batch.LoadExistingHashes(path, nil)
	require.NoError(t, err)
	require.Len(t, hashes, 2)
	require.True(t, hashes["hash1"])
	require.True(t, hashes["hash2"])
}

func TestRunSkipsFilesWithMatchingHash(t *testing.T) {
	dir := t.TempDir()
	skipPath := filepath.Join(dir, "skip.jpg")
	keepPath := filepath.Join(dir, "keep.jpg")
	writeFile(t, skipPath, []byte("same-content-skip"))
	writeFile(t, keepPath, []byte("different-content-keep"))

	data, err := os.ReadFile(skipPath)
	require.NoError(t, err)
	hash := imgproc.ContentHashFromBytes(data)
	skipSet := map[string]bool{hash: true}

	process := func(ctx context.Context, path string) (record.ProcessedImage, error) {
		return record.ProcessedImage{FilePath: path}, nil
	}

	results, err := batch.Run(context.Background(), []string{skipPath, keepPath}, 2, skipSet, process, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, keepPath, results[0].Path)
}

func TestRunContinuesAfterPerFileError(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	writeFile(t, a, []byte("a"))
	writeFile(t, b, []byte("b"))

	process := func(ctx context.Context, path string) (record.ProcessedImage, error) {
		if path == a {
			return record.ProcessedImage{}, errors.New("boom")
		}
		return record.ProcessedImage{FilePath: path}, nil
	}

	results, err := batch.Run(context.Background(), []string{a, b}, 2, nil, process, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var sawError, sawSuccess bool
	for _, r := range results {
		if r.Path == a {
			require.Error(t, r.Err)
			sawError = true
		}
		if r.Path == b {
			require.NoError(t, r.Err)
			sawSuccess = true
		}
	}
	require.True(t, sawError)
	require.True(t, sawSuccess)
}

func TestJSONLWriterAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := batch.NewJSONLWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(record.ProcessedImage{ContentHash: "a"}))
	require.NoError(t, w.Write(record.ProcessedImage{ContentHash: "b"}))
	require.NoError(t, w.Close())

	hashes, err := batch.LoadExistingHashes(path, nil)
	require.NoError(t, err)
	require.Len(t, hashes, 2)
}

func TestJSONArrayWriterMergesExistingRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	existing := []record.ProcessedImage{{ContentHash: "old"}}
	w := batch.NewJSONArrayWriter(path, existing)
	require.NoError(t, w.Write(record.ProcessedImage{ContentHash: "new"}))
	require.NoError(t, w.Close())

	hashes, err := batch.LoadExistingHashes(path, nil)
	require.NoError(t, err)
	require.True(t, hashes["old"])
	require.True(t, hashes["new"])
}
