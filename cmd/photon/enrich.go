package photon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/photon-img/photon/internal/config"
	"github.com/photon-img/photon/internal/runid"
	"github.com/photon-img/photon/pkg/enrich"
	"github.com/photon-img/photon/pkg/enrich/providers/anthropic"
	"github.com/photon-img/photon/pkg/enrich/providers/bedrock"
	"github.com/photon-img/photon/pkg/enrich/providers/openai"
	"github.com/photon-img/photon/pkg/record"
)

type enrichFlags struct {
	output string
}

func newEnrichCmd(root *rootFlags) *cobra.Command {
	var flags enrichFlags

	cmd := &cobra.Command{
		Use:     "enrich <input.jsonl>",
		Short:   "Run the second-pass LLM description stage over a prior run's Core records",
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrich(cmd.Context(), root, flags, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output path for enrichment patches (default: appended to the input file)")

	return cmd
}

func runEnrich(ctx context.Context, root *rootFlags, flags enrichFlags, inputPath string) error {
	id := runid.New()
	logger := slog.Default().With("run_id", id)

	cfg, err := config.Load(root.configPath, nil, logger)
	if err != nil {
		return err
	}

	images, err := readCoreRecords(inputPath)
	if err != nil {
		return err
	}
	logger.Info("loaded core records", "count", len(images))

	provider, err := buildProvider(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("photon enrich: %w", err)
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = inputPath
	}
	f, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("photon enrich: open output: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)

	opts := enrich.Options{
		Parallel:      int(cfg.LLM.Parallel),
		Timeout:       time.Duration(cfg.Limits.LLMTimeoutMs) * time.Millisecond,
		RetryAttempts: int(cfg.LLM.RetryAttempts),
		RetryDelay:    time.Duration(cfg.LLM.RetryDelayMs) * time.Millisecond,
		MaxFileSizeMB: int64(cfg.LLM.MaxFileSizeMB),
	}

	failed := 0
	enrich.Run(ctx, images, provider, opts, func(patch record.EnrichmentPatch, err error) {
		if err != nil {
			failed++
			logger.Warn("enrichment failed", "content_hash", patch.ContentHash, "error", err)
			return
		}
		if encErr := enc.Encode(record.NewEnrichmentRecord(patch)); encErr != nil {
			logger.Error("failed to write enrichment record", "error", encErr)
		}
	}, logger)

	logger.Info("enrichment complete", "processed", len(images), "failed", failed)
	return nil
}

func buildProvider(ctx context.Context, cfg config.LLM) (enrich.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "openai":
		return openai.New(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "bedrock":
		return bedrock.New(ctx, cfg.Model)
	default:
		return nil, fmt.Errorf("unrecognized llm.provider %q (want anthropic, openai, or bedrock)", cfg.Provider)
	}
}

// readCoreRecords reads a JSONL stream of OutputRecords and returns the
// Core ones, in order, for the enrich stage to process.
func readCoreRecords(path string) ([]record.ProcessedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("photon enrich: open input: %w", err)
	}
	defer f.Close()

	var images []record.ProcessedImage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record.OutputRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Type == record.RecordTypeCore && rec.Core != nil {
			images = append(images, *rec.Core)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return images, nil
}
