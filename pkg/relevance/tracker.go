// Package relevance implements the three-pool (Active/Warm/Cold)
// relevance tracker described in spec §4.6: per-term hit statistics
// drive periodic pool transitions so the tag scorer's hot path only
// scores a small Active subset of the vocabulary.
package relevance

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/photon-img/photon/pkg/vocab"
)

// Pool is a term's current relevance bucket.
type Pool int

const (
	Active Pool = iota
	Warm
	Cold
)

func (p Pool) String() string {
	switch p {
	case Active:
		return "active"
	case Warm:
		return "warm"
	default:
		return "cold"
	}
}

func (p Pool) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Pool) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "active":
		*p = Active
	case "warm":
		*p = Warm
	default:
		*p = Cold
	}
	return nil
}

// Stats is the per-term accounting from spec §3 TermStats.
type Stats struct {
	HitCount               uint32  `json:"hit_count"`
	ScoreSum               float32 `json:"score_sum"`
	LastHitTS              uint64  `json:"last_hit_ts"`
	WarmChecksWithoutHit   uint32  `json:"warm_checks_without_hit"`
	Pool                   Pool    `json:"pool"`
}

// AvgConfidence returns ScoreSum/HitCount, or 0 when there have been no
// hits.
func (s Stats) AvgConfidence() float32 {
	if s.HitCount == 0 {
		return 0
	}
	return s.ScoreSum / float32(s.HitCount)
}

// Config holds the tunables from spec §6 tagging.relevance.*.
type Config struct {
	WarmCheckInterval  uint64
	SweepInterval      uint64
	PromotionThreshold float32
	ActiveDemotionDays uint64
	WarmDemotionChecks uint32
	ColdStartGrace     uint64 // fixed at 1000 per spec §4.6, exposed for tests
}

// DefaultConfig returns the spec-documented defaults plus the fixed
// cold_start_grace constant from spec §4.6's transition table.
func DefaultConfig() Config {
	return Config{
		WarmCheckInterval:  50,
		SweepInterval:      500,
		PromotionThreshold: 0.5,
		ActiveDemotionDays: 30,
		WarmDemotionChecks: 5,
		ColdStartGrace:     1000,
	}
}

// NowFunc is injected so tests can control "current time" deterministically.
type NowFunc func() uint64

// Tracker is the per-vocabulary-term statistics store, held behind a
// reader-writer lock per spec §5 ("RelevanceTracker: reader-writer
// lock; scoring acquires read lock, hit recording and sweeps acquire
// write lock").
type Tracker struct {
	mu sync.RWMutex

	vocabulary      *vocab.Vocabulary
	stats           []Stats
	imagesProcessed uint64
	config          Config
	now             NowFunc
}

// New creates a Tracker for v with every term starting Active, matching
// spec §4.6 "Construction": at progressive-encoder/blocking-encoder
// completion, all encoded terms start Active.
func New(v *vocab.Vocabulary, cfg Config, now NowFunc) *Tracker {
	stats := make([]Stats, v.Len())
	for i := range stats {
		stats[i].Pool = Active
	}
	return &Tracker{vocabulary: v, stats: stats, config: cfg, now: now}
}

// NewAllCold creates a Tracker with every term starting Cold. Used when
// a vocabulary is constructed but no encoding has happened yet.
func NewAllCold(v *vocab.Vocabulary, cfg Config, now NowFunc) *Tracker {
	return &Tracker{vocabulary: v, stats: make([]Stats, v.Len()), config: cfg, now: now}
}

// ImagesProcessed returns the number of RecordHits calls so far.
func (t *Tracker) ImagesProcessed() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.imagesProcessed
}

// Pool returns a term's current pool. Out-of-range indices return Cold
// (safe default) per spec §4.6.
func (t *Tracker) Pool(vocabIdx int) Pool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if vocabIdx < 0 || vocabIdx >= len(t.stats) {
		return Cold
	}
	return t.stats[vocabIdx].Pool
}

// Stats returns a copy of a term's stats. Out-of-range indices return
// the zero value.
func (t *Tracker) Stats(vocabIdx int) Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if vocabIdx < 0 || vocabIdx >= len(t.stats) {
		return Stats{}
	}
	return t.stats[vocabIdx]
}

// Hit is a single scored term to record.
type Hit struct {
	VocabIdx   int
	Confidence float32
}

// RecordHits applies hits from one image's scoring pass. Out-of-range
// indices are logged-and-skipped, never panicking (spec §8 boundary
// behavior). ImagesProcessed is incremented exactly once regardless of
// how many (if any) hits are valid.
func (t *Tracker) RecordHits(hits []Hit, onOutOfRange func(idx int)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, h := range hits {
		if h.VocabIdx < 0 || h.VocabIdx >= len(t.stats) {
			if onOutOfRange != nil {
				onOutOfRange(h.VocabIdx)
			}
			continue
		}
		s := &t.stats[h.VocabIdx]
		s.HitCount++
		s.ScoreSum += h.Confidence
		s.LastHitTS = now
		s.WarmChecksWithoutHit = 0
	}
	t.imagesProcessed++
}

// ShouldCheckWarm reports whether the Warm pool should be sampled this
// image, per spec §4.6: images_processed % warm_check_interval == 0.
// Per spec §9's documented open question, this fires on image 0 (the
// very first image) — that behavior is preserved deliberately.
func (t *Tracker) ShouldCheckWarm() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.config.WarmCheckInterval == 0 {
		return false
	}
	return t.imagesProcessed%t.config.WarmCheckInterval == 0
}

// Sweep applies the pool transition rules in spec §4.6's table and
// returns the vocabulary indices newly promoted to Active (for
// NeighborExpander to fan out from).
func (t *Tracker) Sweep() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var promoted []int

	for i := range t.stats {
		s := &t.stats[i]
		switch s.Pool {
		case Active:
			if s.HitCount == 0 && t.imagesProcessed > t.config.ColdStartGrace {
				s.Pool = Warm
			} else if s.LastHitTS > 0 && now > s.LastHitTS && (now-s.LastHitTS) > t.config.ActiveDemotionDays*86400 {
				s.Pool = Warm
			}
		case Warm:
			if s.HitCount > 0 && s.AvgConfidence() >= t.config.PromotionThreshold {
				s.Pool = Active
				promoted = append(promoted, i)
				continue
			}
			s.WarmChecksWithoutHit++
			if s.WarmChecksWithoutHit >= t.config.WarmDemotionChecks {
				s.Pool = Cold
			}
		case Cold:
			// never auto-promoted
		}
	}
	return promoted
}

// PromoteToWarm moves valid indices from Cold or Active into Warm. Used
// by neighbor expansion after a sweep (spec §4.7).
func (t *Tracker) PromoteToWarm(indices []int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, idx := range indices {
		if idx < 0 || idx >= len(t.stats) {
			continue
		}
		t.stats[idx].Pool = Warm
	}
}

// persisted is the JSON shape from spec §6: "terms keyed by raw_name".
type persisted struct {
	Version         int              `json:"version"`
	ImagesProcessed uint64           `json:"images_processed"`
	Terms           map[string]Stats `json:"terms"`
}

// Save writes the tracker state as JSON keyed by term raw_name, so it
// survives vocabulary reordering (spec §3/§4.6).
func (t *Tracker) Save(path string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := persisted{Version: 1, ImagesProcessed: t.imagesProcessed, Terms: make(map[string]Stats, len(t.stats))}
	for i, s := range t.stats {
		out.Terms[t.vocabulary.TermAt(i).RawName] = s
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads tracker state from path for vocabulary v. Terms present in
// the file but no longer in v are dropped; terms in v absent from the
// file default to Cold with zero stats (spec §4.6 persistence format).
func Load(path string, v *vocab.Vocabulary, cfg Config, now NowFunc) (*Tracker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in persisted
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("relevance: corrupt state file: %w", err)
	}

	t := &Tracker{vocabulary: v, stats: make([]Stats, v.Len()), config: cfg, now: now, imagesProcessed: in.ImagesProcessed}
	for i := 0; i < v.Len(); i++ {
		raw := v.TermAt(i).RawName
		if s, ok := in.Terms[raw]; ok {
			t.stats[i] = s
		} else {
			t.stats[i] = Stats{Pool: Cold}
		}
	}
	return t, nil
}
