// Package tagging is the facade that ties the tag scorer, relevance
// tracker, and neighbor expander together into the exact phased
// operation spec §5 requires, so the lock ordering invariant
// (RelevanceTracker before TagScorer, never nested) lives in one place
// instead of being re-derived at every call site.
package tagging

import (
	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/neighbor"
	"github.com/photon-img/photon/pkg/record"
	"github.com/photon-img/photon/pkg/relevance"
	"github.com/photon-img/photon/pkg/tagscorer"
)

// ScorerSource supplies the currently-installed scorer. Both a static
// single-scorer wrapper and progressive.Runner satisfy this.
type ScorerSource interface {
	Scorer() *tagscorer.TagScorer
}

// staticSource wraps a single TagScorer for the non-progressive case
// (vocabulary fully encoded up front, no background swapping).
type staticSource struct{ scorer *tagscorer.TagScorer }

func (s staticSource) Scorer() *tagscorer.TagScorer { return s.scorer }

// Static wraps a fixed TagScorer as a ScorerSource.
func Static(s *tagscorer.TagScorer) ScorerSource { return staticSource{scorer: s} }

// Engine scores one image at a time following spec §5's three phases.
type Engine struct {
	scorerSource  ScorerSource
	tracker       *relevance.Tracker
	sweepInterval uint64
}

// New builds an Engine. sweepInterval == 0 disables periodic sweeping.
func New(scorerSource ScorerSource, tracker *relevance.Tracker, sweepInterval uint64) *Engine {
	return &Engine{scorerSource: scorerSource, tracker: tracker, sweepInterval: sweepInterval}
}

// TagImage runs the phased scoring dance for one image's embedding. If
// no scorer is installed yet, it returns ScorerUnavailable — callers
// degrade to an empty tag list and continue (spec §4.11 step 10), they
// do not fail the image. If relevance tracking is disabled (no tracker
// installed), scoring falls back to the non-pooled Score path (spec
// §4.5) and phases 2 and 3 are skipped entirely.
func (e *Engine) TagImage(embedding []float32) ([]record.Tag, error) {
	// Phase 1 (score): scorer read lock only.
	scorer := e.scorerSource.Scorer()
	if scorer == nil {
		return nil, perr.ScorerUnavailable()
	}

	if e.tracker == nil {
		return scorer.Score(embedding)
	}

	result, err := scorer.ScoreWithPools(embedding, e.tracker)
	if err != nil {
		return nil, err
	}

	// Phase 2 (record): tracker write lock only.
	e.tracker.RecordHits(result.Hits, nil)
	var promoted []int
	if e.sweepInterval > 0 && e.tracker.ImagesProcessed()%e.sweepInterval == 0 {
		promoted = e.tracker.Sweep()
	}

	// Phase 3 (expand): scorer read lock, released, then tracker read
	// lock, released, then tracker write lock. Never nested with the
	// scorer lock.
	if len(promoted) > 0 {
		e.expandAndPromote(promoted)
	}

	return result.Tags, nil
}

func (e *Engine) expandAndPromote(promoted []int) {
	scorer := e.scorerSource.Scorer()
	if scorer == nil {
		return
	}
	expanded := neighbor.ExpandAll(scorer.Vocabulary(), promoted)

	var cold []int
	for _, idx := range expanded {
		if e.tracker.Pool(idx) == relevance.Cold {
			cold = append(cold, idx)
		}
	}
	if len(cold) > 0 {
		e.tracker.PromoteToWarm(cold)
	}
}
