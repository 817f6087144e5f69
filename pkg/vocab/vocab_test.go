package vocab_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/pkg/vocab"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMergesSupplementalOverride(t *testing.T) {
	dir := t.TempDir()
	wordnet := writeFile(t, dir, "wordnet.tsv", ""+
		"labrador_retriever\tsn1\tlabrador retriever\tretriever,dog,canine\n"+
		"retriever\tsn2\tretriever\tdog,canine\n")
	supplemental := writeFile(t, dir, "supplemental.tsv", ""+
		"labrador_retriever\tbreed\n"+
		"golden_hour\tlighting\n")

	v, err := vocab.Load(wordnet, supplemental)
	require.NoError(t, err)
	require.Equal(t, 3, v.Len())

	idx, ok := v.IndexOf("labrador_retriever")
	require.True(t, ok)
	term := v.TermAt(idx)
	require.Equal(t, "breed", term.Category)
	require.Equal(t, []string{"retriever", "dog", "canine"}, term.Hypernyms)

	idx, ok = v.IndexOf("golden_hour")
	require.True(t, ok)
	term = v.TermAt(idx)
	require.True(t, term.IsSupplemental())
	require.Equal(t, "golden hour", term.DisplayName)
}

func TestLoadDuplicateRawNameIsFatal(t *testing.T) {
	dir := t.TempDir()
	wordnet := writeFile(t, dir, "wordnet.tsv", ""+
		"dog\tsn1\tdog\tcanine\n"+
		"dog\tsn2\tdog\tcanine\n")

	_, err := vocab.Load(wordnet, "")
	require.Error(t, err)
}

func TestContentHashStableAndSubset(t *testing.T) {
	dir := t.TempDir()
	wordnet := writeFile(t, dir, "wordnet.tsv", ""+
		"dog\tsn1\tdog\tcanine\n"+
		"cat\tsn2\tcat\tfeline\n")

	v1, err := vocab.Load(wordnet, "")
	require.NoError(t, err)
	v2, err := vocab.Load(wordnet, "")
	require.NoError(t, err)
	require.Equal(t, v1.ContentHash(), v2.ContentHash())

	sub := v1.Subset([]int{1})
	require.Equal(t, 1, sub.Len())
	idx, ok := sub.IndexOf("cat")
	require.True(t, ok)
	require.Equal(t, 0, idx)
}
