package photon

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/photon-img/photon/internal/onnxenv"
	"github.com/photon-img/photon/internal/onnxsession"
	"github.com/photon-img/photon/internal/tokenizer"
	"github.com/photon-img/photon/pkg/progressive"
	"github.com/photon-img/photon/pkg/tagscorer"
	"github.com/photon-img/photon/pkg/textenc"
	"github.com/photon-img/photon/pkg/vocab"
)

type vocabBuildFlags struct {
	wordnetFile   string
	supplemental  string
	seedTerms     string
	textModel     string
	tokenizerFile string
	bankBin       string
	bankMeta      string
	maxBatch      int
	maxSeq        int
	chunkSize     int
	seedSize      int
	full          bool
}

func newVocabCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vocab",
		Short:   "Vocabulary and label bank maintenance",
		GroupID: "core",
	}
	cmd.AddCommand(newVocabBuildCmd(root))
	return cmd
}

func newVocabBuildCmd(root *rootFlags) *cobra.Command {
	var flags vocabBuildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Encode the vocabulary (or a seed subset of it) into a label bank cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVocabBuild(root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.wordnetFile, "wordnet", "assets/wordnet.tsv", "path to the WordNet term file")
	cmd.Flags().StringVar(&flags.supplemental, "supplemental", "assets/supplemental.tsv", "path to the supplemental term file")
	cmd.Flags().StringVar(&flags.seedTerms, "seed-terms", "assets/seed_terms.txt", "path to the curated seed term list")
	cmd.Flags().StringVar(&flags.textModel, "text-model", "assets/siglip-text.onnx", "path to the SigLIP text tower ONNX model")
	cmd.Flags().StringVar(&flags.tokenizerFile, "tokenizer", "assets/vocab.tsv", "path to the tokenizer vocab file")
	cmd.Flags().StringVar(&flags.bankBin, "label-bank", "cache/label_bank.bin", "output path for the label bank binary")
	cmd.Flags().StringVar(&flags.bankMeta, "label-bank-meta", "cache/label_bank.meta", "output path for the label bank sidecar")
	cmd.Flags().IntVar(&flags.maxBatch, "text-max-batch", 64, "max batch size for the text tower session")
	cmd.Flags().IntVar(&flags.maxSeq, "text-max-seq", 32, "max token sequence length for the text tower session")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", progressive.DefaultChunkSize, "terms encoded per chunk")
	cmd.Flags().IntVar(&flags.seedSize, "seed-size", 2000, "target seed vocabulary size")
	cmd.Flags().BoolVar(&flags.full, "full", false, "encode the entire vocabulary synchronously instead of just the seed set")

	return cmd
}

func runVocabBuild(root *rootFlags, flags vocabBuildFlags) error {
	logger := slog.Default()

	releaseEnv, err := onnxenv.Acquire(root.onnxLibPath)
	if err != nil {
		return fmt.Errorf("photon vocab build: %w", err)
	}
	defer releaseEnv()

	v, err := vocab.Load(flags.wordnetFile, flags.supplemental)
	if err != nil {
		return fmt.Errorf("photon vocab build: load vocabulary: %w", err)
	}
	logger.Info("vocabulary loaded", "terms", v.Len())

	textSession, err := onnxsession.NewTextSession(flags.textModel, flags.maxBatch, flags.maxSeq, tagscorer.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("photon vocab build: load text model: %w", err)
	}
	defer textSession.Close()

	vocabTok, err := tokenizer.Load(flags.tokenizerFile, 100, 0, 101, 102, flags.maxSeq)
	if err != nil {
		return fmt.Errorf("photon vocab build: load tokenizer: %w", err)
	}
	textEncoder := textenc.New(textSession.Session, vocabTok, textSession.InputIDs, textSession.AttentionMask, textSession.PoolerOutput, flags.maxBatch, flags.maxSeq)

	cache := progressive.CachePaths{BinPath: flags.bankBin, MetaPath: flags.bankMeta}
	runner := progressive.New(textEncoder, tagscorer.Config{}, cache, logger)

	vocabHash := v.ContentHash()
	if flags.full {
		if err := runner.StartSynchronous(v, flags.seedSize, flags.seedTerms, flags.chunkSize, vocabHash); err != nil {
			return fmt.Errorf("photon vocab build: encode vocabulary: %w", err)
		}
	} else {
		if err := runner.Start(v, flags.seedSize, flags.seedTerms, flags.chunkSize, vocabHash); err != nil {
			return fmt.Errorf("photon vocab build: encode seed vocabulary: %w", err)
		}
	}

	logger.Info("label bank built", "vocabulary_terms", v.Len(), "cache", flags.bankBin)
	return nil
}
