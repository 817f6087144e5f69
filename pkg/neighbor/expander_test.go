package neighbor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/pkg/neighbor"
	"github.com/photon-img/photon/pkg/vocab"
)

func TestFindSiblingsSharesFirstHypernym(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wordnet.tsv")
	require.NoError(t, os.WriteFile(path, []byte(""+
		"labrador_retriever\tsn1\tlabrador retriever\tretriever,dog,canine\n"+
		"golden_retriever\tsn2\tgolden retriever\tretriever,dog,canine\n"+
		"poodle\tsn3\tpoodle\tdog,canine\n"+
		"siamese_cat\tsn4\tsiamese cat\tcat,feline\n"), 0o644))

	v, err := vocab.Load(path, "")
	require.NoError(t, err)

	labIdx, _ := v.IndexOf("labrador_retriever")
	goldenIdx, _ := v.IndexOf("golden_retriever")
	siblings := neighbor.FindSiblings(v, labIdx)
	require.Equal(t, []int{goldenIdx}, siblings)
}

func TestSupplementalTermsHaveNoSiblings(t *testing.T) {
	dir := t.TempDir()
	wordnet := filepath.Join(dir, "wordnet.tsv")
	require.NoError(t, os.WriteFile(wordnet, []byte("dog\tsn1\tdog\tcanine\n"), 0o644))
	supplemental := filepath.Join(dir, "supplemental.tsv")
	require.NoError(t, os.WriteFile(supplemental, []byte("golden_hour\tlighting\n"), 0o644))

	v, err := vocab.Load(wordnet, supplemental)
	require.NoError(t, err)
	idx, _ := v.IndexOf("golden_hour")
	require.Empty(t, neighbor.FindSiblings(v, idx))
}

func TestExpandAllDedupsAndExcludesPromoted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wordnet.tsv")
	require.NoError(t, os.WriteFile(path, []byte(""+
		"a\tsn1\ta\tanimal\n"+
		"b\tsn2\tb\tanimal\n"+
		"c\tsn3\tc\tanimal\n"), 0o644))
	v, err := vocab.Load(path, "")
	require.NoError(t, err)

	aIdx, _ := v.IndexOf("a")
	bIdx, _ := v.IndexOf("b")
	cIdx, _ := v.IndexOf("c")

	out := neighbor.ExpandAll(v, []int{aIdx, bIdx})
	require.ElementsMatch(t, []int{cIdx}, out)
}
