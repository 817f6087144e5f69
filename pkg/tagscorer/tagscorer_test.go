package tagscorer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/labelbank"
	"github.com/photon-img/photon/pkg/relevance"
	"github.com/photon-img/photon/pkg/tagscorer"
	"github.com/photon-img/photon/pkg/vocab"
)

func buildVocabAndBank(t *testing.T) (*vocab.Vocabulary, *labelbank.LabelBank) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wordnet.tsv")
	require.NoError(t, os.WriteFile(path, []byte(""+
		"dog\tsn1\tdog\tcanine\n"+
		"cat\tsn2\tcat\tfeline\n"+
		"car\tsn3\tcar\tvehicle\n"), 0o644))
	v, err := vocab.Load(path, "")
	require.NoError(t, err)

	bank := labelbank.New(tagscorer.EmbeddingDim)
	row := func(first float32) []float32 {
		r := make([]float32, tagscorer.EmbeddingDim)
		r[0] = first
		for i := 1; i < len(r); i++ {
			r[i] = 0
		}
		return r
	}
	// Rows aligned 1:1 with vocab order: dog, cat, car.
	require.NoError(t, bank.AppendRows([][]float32{row(1), row(0.5), row(-1)}))
	return v, bank
}

func embeddingWithFirst(first float32) []float32 {
	e := make([]float32, tagscorer.EmbeddingDim)
	e[0] = first
	return e
}

func TestScoreRejectsWrongDimension(t *testing.T) {
	v, bank := buildVocabAndBank(t)
	s := tagscorer.New(bank, []int{0, 1, 2}, v, tagscorer.Config{MaxTags: 10})
	_, err := s.Score([]float32{1, 2, 3})
	require.Error(t, err)
	var perrErr *perr.Error
	require.ErrorAs(t, err, &perrErr)
}

func TestScoreFiltersSortsAndTruncates(t *testing.T) {
	v, bank := buildVocabAndBank(t)
	s := tagscorer.New(bank, []int{0, 1, 2}, v, tagscorer.Config{
		MinConfidence: 0.01,
		MaxTags:       1,
	})

	tags, err := s.Score(embeddingWithFirst(1))
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, "dog", tags[0].Name) // cosine=1 dominates cat (0.5) and car (-1)
}

func TestScoreMaxTagsZeroIsEmpty(t *testing.T) {
	v, bank := buildVocabAndBank(t)
	s := tagscorer.New(bank, []int{0, 1, 2}, v, tagscorer.Config{MaxTags: 0})
	tags, err := s.Score(embeddingWithFirst(1))
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestScoreEmptyBankIsEmptyWithoutError(t *testing.T) {
	v, _ := buildVocabAndBank(t)
	empty := labelbank.New(tagscorer.EmbeddingDim)
	s := tagscorer.New(empty, nil, v, tagscorer.Config{MaxTags: 10})
	tags, err := s.Score(embeddingWithFirst(1))
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestScoreWithPoolsOnlyScoresActiveUnlessWarmDue(t *testing.T) {
	v, bank := buildVocabAndBank(t)
	cfg := relevance.DefaultConfig()
	cfg.WarmCheckInterval = 2
	now := func() uint64 { return 1 }
	tracker := relevance.NewAllCold(v, cfg, now)
	// Make "cat" Warm; "dog" and "car" stay Cold (NewAllCold has no
	// Active terms).
	dogIdx, _ := v.IndexOf("dog")
	catIdx, _ := v.IndexOf("cat")
	tracker.PromoteToWarm([]int{catIdx})
	_ = dogIdx

	s := tagscorer.New(bank, []int{0, 1, 2}, v, tagscorer.Config{MinConfidence: 0, MaxTags: 10})

	// First call: images_processed starts at 0, ShouldCheckWarm() is true (0 % 2 == 0).
	result, err := s.ScoreWithPools(embeddingWithFirst(1), tracker)
	require.NoError(t, err)
	// cat is Warm and gets included since warm check fires on the very first call.
	names := map[string]bool{}
	for _, tag := range result.Tags {
		names[tag.Name] = true
	}
	require.True(t, names["cat"])
	require.False(t, names["car"]) // car is Cold, never scored
}
