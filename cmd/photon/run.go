package photon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/photon-img/photon/internal/config"
	"github.com/photon-img/photon/internal/onnxenv"
	"github.com/photon-img/photon/internal/onnxsession"
	"github.com/photon-img/photon/internal/runid"
	"github.com/photon-img/photon/internal/tokenizer"
	"github.com/photon-img/photon/pkg/batch"
	"github.com/photon-img/photon/pkg/labelbank"
	"github.com/photon-img/photon/pkg/pipeline"
	"github.com/photon-img/photon/pkg/progressive"
	"github.com/photon-img/photon/pkg/record"
	"github.com/photon-img/photon/pkg/relevance"
	"github.com/photon-img/photon/pkg/tagging"
	"github.com/photon-img/photon/pkg/tagscorer"
	"github.com/photon-img/photon/pkg/textenc"
	"github.com/photon-img/photon/pkg/visualenc"
	"github.com/photon-img/photon/pkg/vocab"
)

type runFlags struct {
	output        string
	format        string
	maxDepth      int
	visualModel   string
	textModel     string
	tokenizerFile string
	wordnetFile   string
	supplemental  string
	seedTerms     string
	bankBin       string
	bankMeta      string
	relevanceFile string
	maxBatch      int
	maxSeq        int
}

func newRunCmd(root *rootFlags) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:     "run <paths...>",
		Short:   "Process images into tagged, embedded output records",
		GroupID: "core",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), root, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "photon-output.jsonl", "output file path")
	cmd.Flags().StringVar(&flags.format, "format", "jsonl", "output format: jsonl or json")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", 10, "maximum directory recursion depth")
	cmd.Flags().StringVar(&flags.visualModel, "visual-model", "assets/siglip-visual.onnx", "path to the SigLIP vision tower ONNX model")
	cmd.Flags().StringVar(&flags.textModel, "text-model", "assets/siglip-text.onnx", "path to the SigLIP text tower ONNX model")
	cmd.Flags().StringVar(&flags.tokenizerFile, "tokenizer", "assets/vocab.tsv", "path to the tokenizer vocab file")
	cmd.Flags().StringVar(&flags.wordnetFile, "wordnet", "assets/wordnet.tsv", "path to the WordNet term file")
	cmd.Flags().StringVar(&flags.supplemental, "supplemental", "assets/supplemental.tsv", "path to the supplemental term file")
	cmd.Flags().StringVar(&flags.seedTerms, "seed-terms", "assets/seed_terms.txt", "path to the curated seed term list")
	cmd.Flags().StringVar(&flags.bankBin, "label-bank", "cache/label_bank.bin", "path to the label bank binary cache")
	cmd.Flags().StringVar(&flags.bankMeta, "label-bank-meta", "cache/label_bank.meta", "path to the label bank cache sidecar")
	cmd.Flags().StringVar(&flags.relevanceFile, "relevance-state", "cache/relevance.json", "path to the relevance tracker state file")
	cmd.Flags().IntVar(&flags.maxBatch, "text-max-batch", 64, "max batch size for the text tower session")
	cmd.Flags().IntVar(&flags.maxSeq, "text-max-seq", 32, "max token sequence length for the text tower session")

	return cmd
}

func runRun(ctx context.Context, root *rootFlags, flags runFlags, paths []string) error {
	id := runid.New()
	logger := slog.Default().With("run_id", id)

	cfg, err := config.Load(root.configPath, nil, logger)
	if err != nil {
		return err
	}

	files, err := batch.Discover(ctx, paths, flags.maxDepth, logger)
	if err != nil {
		return err
	}
	logger.Info("discovered files", "count", len(files))

	skipHashes, err := batch.LoadExistingHashes(flags.output, logger)
	if err != nil {
		return err
	}

	releaseEnv, err := onnxenv.Acquire(root.onnxLibPath)
	if err != nil {
		return fmt.Errorf("photon run: %w", err)
	}
	defer releaseEnv()

	visualSession, err := onnxsession.NewVisualSession(flags.visualModel, int(cfg.Embedding.ImageSize), tagscorer.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("photon run: load visual model: %w", err)
	}
	defer visualSession.Close()
	visualEncoder := visualenc.New(visualSession.Session, visualSession.Input, visualSession.Output, int(cfg.Embedding.ImageSize))

	var taggingEngine *tagging.Engine
	if cfg.Tagging.Enabled {
		engine, closeEngine, err := buildTaggingEngine(ctx, cfg, flags, logger)
		if err != nil {
			logger.Warn("tagging disabled: failed to build tag scorer", "error", err)
		} else {
			taggingEngine = engine
			defer closeEngine()
		}
	}

	limits := pipeline.Limits{
		MaxFileSizeBytes:  int64(cfg.Limits.MaxFileSizeMB) * 1024 * 1024,
		MaxImageDimension: int(cfg.Limits.MaxImageDimension),
		DecodeTimeout:     time.Duration(cfg.Limits.DecodeTimeoutMs) * time.Millisecond,
		EmbedTimeout:      time.Duration(cfg.Limits.EmbedTimeoutMs) * time.Millisecond,
	}
	thumbnail := pipeline.ThumbnailConfig{
		Enabled: cfg.Thumbnail.Enabled,
		Size:    int(cfg.Thumbnail.Size),
		Quality: cfg.Thumbnail.Quality,
	}
	orch := pipeline.New(limits, thumbnail, int(cfg.Embedding.ImageSize), visualEncoder, taggingEngine, logger)

	var writer batch.Writer
	if flags.format == "json" {
		existing, err := loadExistingRecords(flags.output)
		if err != nil {
			return err
		}
		writer = batch.NewJSONArrayWriter(flags.output, existing)
	} else {
		writer, err = batch.NewJSONLWriter(flags.output)
		if err != nil {
			return err
		}
	}
	defer writer.Close()

	results, err := batch.Run(ctx, files, int(cfg.Processing.ParallelWorkers), skipHashes, orch.ProcessImage, writer, logger)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("run complete", "processed", len(results), "failed", failed)
	return nil
}

// buildTaggingEngine loads the vocabulary and either a cached label
// bank or, on a cache miss, runs the progressive encoder (seed encode
// plus background remainder, or the whole vocabulary synchronously when
// progressive encoding is disabled), then wraps the scorer in a
// tagging.Engine that is relevance-tracked when relevance is enabled.
func buildTaggingEngine(ctx context.Context, cfg config.Config, flags runFlags, logger *slog.Logger) (*tagging.Engine, func() error, error) {
	v, err := vocab.Load(flags.wordnetFile, flags.supplemental)
	if err != nil {
		return nil, nil, fmt.Errorf("load vocabulary: %w", err)
	}
	vocabHash := v.ContentHash()

	textSession, err := onnxsession.NewTextSession(flags.textModel, flags.maxBatch, flags.maxSeq, tagscorer.EmbeddingDim)
	if err != nil {
		return nil, nil, fmt.Errorf("load text model: %w", err)
	}
	vocabTok, err := tokenizer.Load(flags.tokenizerFile, 100, 0, 101, 102, flags.maxSeq)
	if err != nil {
		textSession.Close()
		return nil, nil, fmt.Errorf("load tokenizer: %w", err)
	}
	textEncoder := textenc.New(textSession.Session, vocabTok, textSession.InputIDs, textSession.AttentionMask, textSession.PoolerOutput, flags.maxBatch, flags.maxSeq)

	scorerCfg := tagscorer.Config{
		MinConfidence:        cfg.Tagging.MinConfidence,
		MaxTags:              int(cfg.Tagging.MaxTags),
		DeduplicateAncestors: cfg.Tagging.DeduplicateAncestors,
		ShowPaths:            cfg.Tagging.ShowPaths,
		PathMaxDepth:         int(cfg.Tagging.PathMaxDepth),
	}

	var tracker *relevance.Tracker
	if cfg.Tagging.Relevance.Enabled {
		rcfg := relevance.Config{
			WarmCheckInterval:  uint64(cfg.Tagging.Relevance.WarmCheckInterval),
			SweepInterval:      uint64(cfg.Tagging.Relevance.SweepInterval),
			PromotionThreshold: cfg.Tagging.Relevance.PromotionThreshold,
			ActiveDemotionDays: uint64(cfg.Tagging.Relevance.ActiveDemotionDays),
			WarmDemotionChecks: cfg.Tagging.Relevance.WarmDemotionChecks,
			ColdStartGrace:     relevance.DefaultConfig().ColdStartGrace,
		}
		now := func() uint64 { return uint64(time.Now().Unix()) }
		if t, err := relevance.Load(flags.relevanceFile, v, rcfg, now); err == nil {
			tracker = t
		} else {
			tracker = relevance.New(v, rcfg, now)
		}
	}

	closeSession := func() error {
		if tracker != nil {
			_ = tracker.Save(flags.relevanceFile)
		}
		return textSession.Close()
	}

	if bank, err := labelbank.Load(flags.bankBin, flags.bankMeta, vocabHash); err == nil {
		encodingMap := make([]int, bank.TermCount())
		for i := range encodingMap {
			encodingMap[i] = i
		}
		scorer := tagscorer.New(bank, encodingMap, v, scorerCfg)
		sweepInterval := uint64(0)
		if tracker != nil {
			sweepInterval = rcfgSweepInterval(cfg)
		}
		return tagging.New(tagging.Static(scorer), tracker, sweepInterval), closeSession, nil
	}

	cache := progressive.CachePaths{BinPath: flags.bankBin, MetaPath: flags.bankMeta}
	runner := progressive.New(textEncoder, scorerCfg, cache, logger)
	targetSize := int(cfg.Tagging.Progressive.SeedSize)
	chunkSize := int(cfg.Tagging.Progressive.ChunkSize)
	if cfg.Tagging.Progressive.Enabled {
		if err := runner.Start(v, targetSize, flags.seedTerms, chunkSize, vocabHash); err != nil {
			return nil, nil, fmt.Errorf("start progressive encoder: %w", err)
		}
	} else {
		if err := runner.StartSynchronous(v, targetSize, flags.seedTerms, chunkSize, vocabHash); err != nil {
			return nil, nil, fmt.Errorf("encode vocabulary: %w", err)
		}
	}

	sweepInterval := uint64(0)
	if tracker != nil {
		sweepInterval = rcfgSweepInterval(cfg)
	}
	return tagging.New(runner, tracker, sweepInterval), closeSession, nil
}

func rcfgSweepInterval(cfg config.Config) uint64 {
	return uint64(cfg.Tagging.Relevance.SweepInterval)
}

// loadExistingRecords reads a prior JSON-array output file so
// NewJSONArrayWriter can merge new results into it instead of
// discarding what's already there. A missing file just means there's
// nothing to merge.
func loadExistingRecords(path string) ([]record.ProcessedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var existing []record.ProcessedImage
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, nil
	}
	return existing, nil
}
