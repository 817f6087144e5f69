package tagging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/labelbank"
	"github.com/photon-img/photon/pkg/relevance"
	"github.com/photon-img/photon/pkg/tagging"
	"github.com/photon-img/photon/pkg/tagscorer"
	"github.com/photon-img/photon/pkg/vocab"
)

func buildSiblingVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wordnet.tsv")
	require.NoError(t, os.WriteFile(path, []byte(""+
		"labrador\tsn1\tlabrador\tdog\n"+
		"poodle\tsn2\tpoodle\tdog\n"+ // sibling of labrador (same first hypernym)
		"tabby\tsn3\ttabby\tcat\n"), 0o644))
	v, err := vocab.Load(path, "")
	require.NoError(t, err)
	return v
}

func TestTagImageReturnsScorerUnavailableBeforeScorerInstalled(t *testing.T) {
	v := buildSiblingVocab(t)
	tracker := relevance.New(v, relevance.DefaultConfig(), func() uint64 { return 1 })
	engine := tagging.New(tagging.Static(nil), tracker, 1)

	_, err := engine.TagImage(make([]float32, tagscorer.EmbeddingDim))
	require.Error(t, err)
	var perrErr *perr.Error
	require.ErrorAs(t, err, &perrErr)
	require.Equal(t, perr.StageTagging, perrErr.Stage)
}

func TestTagImageScoresWithoutPanicWhenRelevanceDisabled(t *testing.T) {
	v := buildSiblingVocab(t)
	labIdx, poodleIdx, tabbyIdx := mustIndex(t, v, "labrador"), mustIndex(t, v, "poodle"), mustIndex(t, v, "tabby")

	bank := labelbank.New(tagscorer.EmbeddingDim)
	rowFor := func(x float32) []float32 {
		r := make([]float32, tagscorer.EmbeddingDim)
		r[0] = x
		return r
	}
	require.NoError(t, bank.AppendRows([][]float32{rowFor(1), rowFor(0), rowFor(0)}))
	scorer := tagscorer.New(bank, []int{labIdx, poodleIdx, tabbyIdx}, v, tagscorer.Config{MinConfidence: 0, MaxTags: 10})

	// No tracker installed: relevance tracking is disabled (spec §6), so
	// TagImage must fall back to the non-pooled Score path rather than
	// dereferencing a nil tracker.
	engine := tagging.New(tagging.Static(scorer), nil, 1)

	embedding := make([]float32, tagscorer.EmbeddingDim)
	embedding[0] = 1
	tags, err := engine.TagImage(embedding)
	require.NoError(t, err)
	require.NotEmpty(t, tags)
}

func mustIndex(t *testing.T, v *vocab.Vocabulary, term string) int {
	t.Helper()
	idx, ok := v.IndexOf(term)
	require.True(t, ok)
	return idx
}

func TestTagImagePromotesSiblingsAfterSweepPromotion(t *testing.T) {
	v := buildSiblingVocab(t)
	labIdx, _ := v.IndexOf("labrador")
	poodleIdx, _ := v.IndexOf("poodle")
	tabbyIdx, _ := v.IndexOf("tabby")

	bank := labelbank.New(tagscorer.EmbeddingDim)
	rowFor := func(v float32) []float32 {
		r := make([]float32, tagscorer.EmbeddingDim)
		r[0] = v
		return r
	}
	require.NoError(t, bank.AppendRows([][]float32{rowFor(1), rowFor(0), rowFor(0)}))
	scorer := tagscorer.New(bank, []int{labIdx, poodleIdx, tabbyIdx}, v, tagscorer.Config{MinConfidence: 0, MaxTags: 10})

	cfg := relevance.DefaultConfig()
	cfg.PromotionThreshold = 0.01
	now := func() uint64 { return 1 }
	tracker := relevance.NewAllCold(v, cfg, now)
	// labrador starts Warm so a single high-confidence hit promotes it to Active on sweep.
	tracker.PromoteToWarm([]int{labIdx})
	// poodle stays Cold so we can observe it being promoted to Warm via sibling expansion.

	engine := tagging.New(tagging.Static(scorer), tracker, 1) // sweep every image

	embedding := make([]float32, tagscorer.EmbeddingDim)
	embedding[0] = 1
	_, err := engine.TagImage(embedding)
	require.NoError(t, err)

	require.Equal(t, relevance.Active, tracker.Pool(labIdx))
	require.Equal(t, relevance.Warm, tracker.Pool(poodleIdx)) // promoted via sibling expansion
	require.Equal(t, relevance.Cold, tracker.Pool(tabbyIdx))  // not a sibling, untouched
}
