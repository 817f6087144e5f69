// Package progressive runs the background label-bank encoder: a small
// seed vocabulary is encoded synchronously so scoring can start
// immediately, then the remainder of the vocabulary is encoded chunk by
// chunk in the background, swapping in a wider TagScorer as each chunk
// lands (spec §4.9).
package progressive

import (
	"log/slog"
	"sync"

	"github.com/photon-img/photon/pkg/labelbank"
	"github.com/photon-img/photon/pkg/seed"
	"github.com/photon-img/photon/pkg/tagscorer"
	"github.com/photon-img/photon/pkg/textenc"
	"github.com/photon-img/photon/pkg/vocab"
)

const DefaultChunkSize = 5000

// Encoder abstracts the one textenc.Encoder method progressive needs,
// so this package can be tested without an ONNX session.
type Encoder interface {
	EncodeVocabularyChunked(v *vocab.Vocabulary, chunkSize int, indices []int, onProgress func(textenc.ChunkProgress)) (*labelbank.LabelBank, []int, error)
}

// CachePaths names where the finished bank is persisted on disk.
type CachePaths struct {
	BinPath  string
	MetaPath string
}

// Runner owns the shared scorer slot. Scoring code reads Scorer() under
// a read lock; the background task swaps it under a write lock after
// each successful chunk (spec §5 "TagScorer: read-mostly via RWMutex").
type Runner struct {
	mu     sync.RWMutex
	scorer *tagscorer.TagScorer

	encoder Encoder
	config  tagscorer.Config
	cache   CachePaths
	logger  *slog.Logger
}

// New creates a Runner. The encoder and config are held for the
// lifetime of the run; Start does the seed encode and installs the
// first scorer before returning.
func New(encoder Encoder, cfg tagscorer.Config, cache CachePaths, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{encoder: encoder, config: cfg, cache: cache, logger: logger}
}

// Scorer returns the current scorer. Safe to call concurrently with
// Start's background swap.
func (r *Runner) Scorer() *tagscorer.TagScorer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scorer
}

// runMode selects whether the remainder encode runs on a background
// goroutine (Start) or inline on the caller's goroutine
// (StartSynchronous).
type runMode int

const (
	modeBackground runMode = iota
	modeSynchronous
)

// Start computes the seed set, encodes it synchronously, installs the
// resulting scorer, then spawns (or, in synchronous mode, runs inline)
// the remaining-vocabulary encode. Before Start returns the scorer slot
// is guaranteed non-nil, per spec §4.9 invariant 1.
func (r *Runner) Start(v *vocab.Vocabulary, targetSize int, seedTermsPath string, chunkSize int, vocabularyHash [32]byte) error {
	return r.start(v, targetSize, seedTermsPath, chunkSize, vocabularyHash, modeBackground)
}

// StartSynchronous runs the whole protocol (seed + remainder) on the
// calling goroutine: the graceful fallback spec §4.9 step 5 describes
// for environments with no background task runtime.
func (r *Runner) StartSynchronous(v *vocab.Vocabulary, targetSize int, seedTermsPath string, chunkSize int, vocabularyHash [32]byte) error {
	return r.start(v, targetSize, seedTermsPath, chunkSize, vocabularyHash, modeSynchronous)
}

func (r *Runner) start(v *vocab.Vocabulary, targetSize int, seedTermsPath string, chunkSize int, vocabularyHash [32]byte, mode runMode) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	seedIndices, err := seed.Select(v, targetSize, seedTermsPath)
	if err != nil {
		return err
	}

	seedBank, succeeded, err := r.encoder.EncodeVocabularyChunked(v, chunkSize, seedIndices, nil)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.scorer = tagscorer.New(seedBank, succeeded, v, r.config)
	r.mu.Unlock()

	encodedSet := make(map[int]bool, len(succeeded))
	for _, idx := range succeeded {
		encodedSet[idx] = true
	}
	var remaining []int
	for i := 0; i < v.Len(); i++ {
		if !encodedSet[i] {
			remaining = append(remaining, i)
		}
	}
	if len(remaining) == 0 {
		r.persist(seedBank, vocabularyHash, 0, 0)
		return nil
	}

	run := func() {
		r.runRemainder(v, remaining, chunkSize, seedBank, succeeded, vocabularyHash)
	}
	if mode == modeSynchronous {
		run()
	} else {
		go run()
	}
	return nil
}

// runRemainder encodes the remaining vocabulary in chunks, swapping in a
// growing scorer after each successful chunk (spec §4.9 step 4).
func (r *Runner) runRemainder(v *vocab.Vocabulary, remaining []int, chunkSize int, seedBank *labelbank.LabelBank, succeeded []int, vocabularyHash [32]byte) {
	runningBank := seedBank
	encodedIndices := append([]int(nil), succeeded...)
	failedChunks := 0
	total := (len(remaining) + chunkSize - 1) / chunkSize

	for start := 0; start < len(remaining); start += chunkSize {
		end := min(start+chunkSize, len(remaining))
		chunkIdx := remaining[start:end]

		chunkBank, chunkSucceeded, err := r.encoder.EncodeVocabularyChunked(v, len(chunkIdx), chunkIdx, nil)
		if err != nil || chunkBank.TermCount() == 0 {
			failedChunks++
			r.logger.Warn("progressive encoder: chunk failed", "error", err)
			continue
		}

		// Grow a copy so a scorer already installed keeps a bank whose
		// row count matches its encoding map.
		nextBank := labelbank.New(runningBank.Dim())
		err = nextBank.Append(runningBank)
		if err == nil {
			err = nextBank.Append(chunkBank)
		}
		if err != nil {
			failedChunks++
			r.logger.Warn("progressive encoder: chunk append failed", "error", err)
			continue
		}
		runningBank = nextBank
		encodedIndices = append(encodedIndices, chunkSucceeded...)

		next := tagscorer.New(runningBank, append([]int(nil), encodedIndices...), v, r.config)
		r.mu.Lock()
		r.scorer = next
		r.mu.Unlock()
	}

	if failedChunks == 0 {
		r.persist(runningBank, vocabularyHash, total, failedChunks)
	} else {
		r.logger.Warn("progressive encoder: skipping disk cache save", "failed_chunks", failedChunks, "total_chunks", total)
	}
}

func (r *Runner) persist(bank *labelbank.LabelBank, vocabularyHash [32]byte, total, failed int) {
	if r.cache.BinPath == "" {
		return
	}
	if err := labelbank.Save(bank, r.cache.BinPath, r.cache.MetaPath, vocabularyHash); err != nil {
		r.logger.Warn("progressive encoder: failed to save label bank cache", "error", err)
	}
}
