// Package tagscorer turns an image embedding into a ranked, deduplicated
// tag list using SigLIP's sigmoid calibration against a label bank (spec
// §4.5).
package tagscorer

import (
	"math"
	"sort"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/hierarchy"
	"github.com/photon-img/photon/pkg/labelbank"
	"github.com/photon-img/photon/pkg/record"
	"github.com/photon-img/photon/pkg/relevance"
	"github.com/photon-img/photon/pkg/vocab"
)

// EmbeddingDim is the shared SigLIP embedding width.
const EmbeddingDim = 768

// Sigmoid calibration constants for siglip-base-patch16-{224,384}. These
// are model-specific and would need re-derivation for a different SigLIP
// checkpoint (spec §9).
const (
	sigmoidScale = 117.33
	sigmoidBias  = -12.93
)

// Config mirrors spec §6's tagging.* knobs consumed by scoring.
type Config struct {
	MinConfidence       float32
	MaxTags             int
	DeduplicateAncestors bool
	ShowPaths           bool
	PathMaxDepth        int
}

// TagScorer owns a label bank and the mapping from its rows back to
// vocabulary indices. EncodingMap lets the bank be a strict subset of
// the vocabulary while progressive encoding is still running.
type TagScorer struct {
	bank        *labelbank.LabelBank
	encodingMap []int
	vocabulary  *vocab.Vocabulary
	config      Config
}

// New builds a TagScorer. len(encodingMap) must equal bank.TermCount();
// callers assemble both together (progressive encoder, seed encoder) so
// this is an invariant, not a user-facing validation.
func New(bank *labelbank.LabelBank, encodingMap []int, v *vocab.Vocabulary, cfg Config) *TagScorer {
	return &TagScorer{bank: bank, encodingMap: encodingMap, vocabulary: v, config: cfg}
}

func confidence(cosine float32) float32 {
	logit := sigmoidScale*cosine + sigmoidBias
	return float32(1 / (1 + math.Exp(-float64(logit))))
}

func cosine(image []float32, bank *labelbank.LabelBank, row int) float32 {
	var sum float32
	b := bank.Row(row)
	for j, v := range image {
		sum += v * b[j]
	}
	return sum
}

// hit is a scored row before it's mapped through encodingMap.
type hit struct {
	vocabIdx   int
	confidence float32
}

// Vocabulary returns the full vocabulary this scorer maps encoded rows
// against (not just the encoded subset).
func (s *TagScorer) Vocabulary() *vocab.Vocabulary { return s.vocabulary }

// Score scores every row in the bank, independent of any relevance
// pool. Used for the non-progressive, fully-encoded vocabulary case.
func (s *TagScorer) Score(imageEmbedding []float32) ([]record.Tag, error) {
	if len(imageEmbedding) != EmbeddingDim {
		return nil, perr.DimensionMismatch(len(imageEmbedding), EmbeddingDim)
	}
	if s.bank.TermCount() == 0 || s.config.MaxTags == 0 {
		return []record.Tag{}, nil
	}

	hits := make([]hit, s.bank.TermCount())
	for row := 0; row < s.bank.TermCount(); row++ {
		hits[row] = hit{
			vocabIdx:   s.encodingMap[row],
			confidence: confidence(cosine(imageEmbedding, s.bank, row)),
		}
	}
	return s.finish(hits)
}

// ScorePool scores only the rows whose vocabulary index currently sits
// in pool. Takes the tracker by read access only — no write lock.
func (s *TagScorer) ScorePool(imageEmbedding []float32, tracker *relevance.Tracker, pool relevance.Pool) []hit {
	hits := make([]hit, 0, s.bank.TermCount())
	for row := 0; row < s.bank.TermCount(); row++ {
		vocabIdx := s.encodingMap[row]
		if tracker.Pool(vocabIdx) != pool {
			continue
		}
		hits = append(hits, hit{vocabIdx: vocabIdx, confidence: confidence(cosine(imageEmbedding, s.bank, row))})
	}
	return hits
}

// ScoringResult pairs the final tag list with the raw hits the caller
// must feed into the tracker's RecordHits (recording is the caller's
// responsibility, per spec §4.5).
type ScoringResult struct {
	Tags []record.Tag
	Hits []relevance.Hit
}

// ScoreWithPools scores Active every call and Warm on the tracker's own
// sampling cadence, then runs the shared filter/sort/truncate/dedup
// pipeline over the combined hits.
func (s *TagScorer) ScoreWithPools(imageEmbedding []float32, tracker *relevance.Tracker) (ScoringResult, error) {
	if len(imageEmbedding) != EmbeddingDim {
		return ScoringResult{}, perr.DimensionMismatch(len(imageEmbedding), EmbeddingDim)
	}

	var combined []hit
	combined = append(combined, s.ScorePool(imageEmbedding, tracker, relevance.Active)...)
	if tracker.ShouldCheckWarm() {
		combined = append(combined, s.ScorePool(imageEmbedding, tracker, relevance.Warm)...)
	}

	rawHits := make([]relevance.Hit, len(combined))
	for i, h := range combined {
		rawHits[i] = relevance.Hit{VocabIdx: h.vocabIdx, Confidence: h.confidence}
	}

	tags, err := s.finish(combined)
	if err != nil {
		return ScoringResult{}, err
	}
	return ScoringResult{Tags: tags, Hits: rawHits}, nil
}

// finish applies the shared filter/sort/truncate/dedup/path pipeline
// both score paths share (spec §4.5).
func (s *TagScorer) finish(hits []hit) ([]record.Tag, error) {
	filtered := hits[:0:0]
	for _, h := range hits {
		if h.confidence >= s.config.MinConfidence {
			filtered = append(filtered, h)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].confidence != filtered[j].confidence {
			return filtered[i].confidence > filtered[j].confidence
		}
		return filtered[i].vocabIdx < filtered[j].vocabIdx
	})

	if s.config.MaxTags > 0 && len(filtered) > s.config.MaxTags {
		filtered = filtered[:s.config.MaxTags]
	} else if s.config.MaxTags == 0 {
		filtered = nil
	}

	tags := make([]record.Tag, len(filtered))
	for i, h := range filtered {
		term := s.vocabulary.TermAt(h.vocabIdx)
		tags[i] = record.Tag{
			Name:       term.DisplayName,
			Confidence: float64(h.confidence),
			Category:   term.Category,
		}
	}

	if s.config.DeduplicateAncestors {
		tags = hierarchy.DeduplicateAncestors(tags, s.vocabulary)
	}
	if s.config.ShowPaths {
		tags = hierarchy.AnnotatePaths(tags, s.vocabulary, s.config.PathMaxDepth)
	}
	return tags, nil
}
