// Package config loads and validates Photon's TOML configuration file
// (spec §6), applying ${ENV_VAR} expansion to credential fields and
// range validation at load time.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Processing mirrors the [processing] TOML table.
type Processing struct {
	ParallelWorkers uint32 `toml:"parallel_workers"`
}

// Limits mirrors the [limits] TOML table.
type Limits struct {
	MaxFileSizeMB     uint64 `toml:"max_file_size_mb"`
	MaxImageDimension uint32 `toml:"max_image_dimension"`
	DecodeTimeoutMs   uint64 `toml:"decode_timeout_ms"`
	EmbedTimeoutMs    uint64 `toml:"embed_timeout_ms"`
	LLMTimeoutMs      uint64 `toml:"llm_timeout_ms"`
}

// Embedding mirrors the [embedding] TOML table. ImageSize is
// auto-derived from Model if left zero.
type Embedding struct {
	Model     string `toml:"model"`
	ImageSize uint32 `toml:"image_size"`
}

// Thumbnail mirrors the [thumbnail] TOML table.
type Thumbnail struct {
	Enabled bool    `toml:"enabled"`
	Size    uint32  `toml:"size"`
	Quality float32 `toml:"quality"`
}

// Progressive mirrors the [tagging.progressive] TOML table.
type Progressive struct {
	Enabled   bool   `toml:"enabled"`
	SeedSize  uint32 `toml:"seed_size"`
	ChunkSize uint32 `toml:"chunk_size"`
}

// Relevance mirrors the [tagging.relevance] TOML table.
type Relevance struct {
	Enabled            bool    `toml:"enabled"`
	WarmCheckInterval  uint32  `toml:"warm_check_interval"`
	SweepInterval      uint32  `toml:"sweep_interval"`
	PromotionThreshold float32 `toml:"promotion_threshold"`
	ActiveDemotionDays uint32  `toml:"active_demotion_days"`
	WarmDemotionChecks uint32  `toml:"warm_demotion_checks"`
	NeighborExpansion  bool    `toml:"neighbor_expansion"`
}

// Tagging mirrors the [tagging] TOML table.
type Tagging struct {
	Enabled              bool        `toml:"enabled"`
	MinConfidence        float32     `toml:"min_confidence"`
	MaxTags              uint32      `toml:"max_tags"`
	DeduplicateAncestors bool        `toml:"deduplicate_ancestors"`
	ShowPaths            bool        `toml:"show_paths"`
	PathMaxDepth         uint32      `toml:"path_max_depth"`
	Progressive          Progressive `toml:"progressive"`
	Relevance            Relevance   `toml:"relevance"`
}

// LLM mirrors the [llm] TOML table. APIKey and BaseURL support
// ${ENV_VAR} expansion (applied post-decode).
type LLM struct {
	Provider      string `toml:"provider"`
	Model         string `toml:"model"`
	APIKey        string `toml:"api_key"`
	BaseURL       string `toml:"base_url"`
	Parallel      uint32 `toml:"parallel"`
	RetryAttempts uint32 `toml:"retry_attempts"`
	RetryDelayMs  uint64 `toml:"retry_delay_ms"`
	MaxFileSizeMB uint64 `toml:"max_file_size_mb"`
}

// Config is the fully decoded, validated configuration.
type Config struct {
	Processing Processing `toml:"processing"`
	Limits     Limits     `toml:"limits"`
	Embedding  Embedding  `toml:"embedding"`
	Thumbnail  Thumbnail  `toml:"thumbnail"`
	Tagging    Tagging    `toml:"tagging"`
	LLM        LLM        `toml:"llm"`
}

// Default returns a Config populated with spec §6's documented
// defaults, before any file is decoded over it.
func Default() Config {
	return Config{
		Processing: Processing{ParallelWorkers: 4},
		Limits: Limits{
			MaxFileSizeMB:     100,
			MaxImageDimension: 10000,
			DecodeTimeoutMs:   10000,
			EmbedTimeoutMs:    30000,
			LLMTimeoutMs:      60000,
		},
		Embedding: Embedding{Model: "siglip-base-patch16"},
		Thumbnail: Thumbnail{Enabled: true, Size: 256, Quality: 80},
		Tagging: Tagging{
			Enabled:       true,
			MinConfidence: 0.3,
			MaxTags:       10,
			PathMaxDepth:  3,
			Progressive:   Progressive{SeedSize: 2000, ChunkSize: 5000},
			Relevance: Relevance{
				WarmCheckInterval:  50,
				SweepInterval:      100,
				PromotionThreshold: 0.5,
				ActiveDemotionDays: 30,
				WarmDemotionChecks: 20,
				NeighborExpansion:  true,
			},
		},
		LLM: LLM{Parallel: 4, RetryAttempts: 3, RetryDelayMs: 500, MaxFileSizeMB: 100},
	}
}

// imageSizeForModel maps the two recognized model names to their
// native input resolution (spec §6's "image_size auto-derived").
func imageSizeForModel(model string) (uint32, bool) {
	switch model {
	case "siglip-base-patch16":
		return 224, true
	case "siglip-base-patch16-384":
		return 384, true
	default:
		return 0, false
	}
}

// Load decodes path as TOML over Default(), expands ${ENV_VAR}
// references in credential fields, auto-corrects image_size, and
// validates every range from spec §6. env is used for expansion
// lookups (os.Getenv in production, a fake map in tests).
func Load(path string, env func(string) string, logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if env == nil {
		env = os.Getenv
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	expand(&cfg, env)

	if wantSize, ok := imageSizeForModel(cfg.Embedding.Model); ok {
		if cfg.Embedding.ImageSize == 0 {
			cfg.Embedding.ImageSize = wantSize
		} else if cfg.Embedding.ImageSize != wantSize {
			logger.Warn("config: embedding.image_size does not match embedding.model, overriding",
				"model", cfg.Embedding.Model, "configured_size", cfg.Embedding.ImageSize, "corrected_size", wantSize)
			cfg.Embedding.ImageSize = wantSize
		}
	} else if cfg.Embedding.ImageSize == 0 {
		return Config{}, fmt.Errorf("config: unrecognized embedding.model %q and no image_size given", cfg.Embedding.Model)
	}

	if cfg.Tagging.Progressive.Enabled && cfg.Tagging.Relevance.Enabled {
		logger.Warn("config: tagging.progressive.enabled and tagging.relevance.enabled are both true; relevance tracking is effectively disabled while progressive encoding runs")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// expand applies ${ENV_VAR} expansion to every credential-bearing
// string field, lenient per-field: an unset variable expands to "".
func expand(cfg *Config, env func(string) string) {
	cfg.LLM.APIKey = os.Expand(cfg.LLM.APIKey, env)
	cfg.LLM.BaseURL = os.Expand(cfg.LLM.BaseURL, env)
}

func validate(cfg Config) error {
	if cfg.Processing.ParallelWorkers == 0 {
		return fmt.Errorf("config: processing.parallel_workers must be > 0")
	}
	if cfg.Limits.MaxFileSizeMB == 0 {
		return fmt.Errorf("config: limits.max_file_size_mb must be > 0")
	}
	if cfg.Limits.MaxImageDimension == 0 {
		return fmt.Errorf("config: limits.max_image_dimension must be > 0")
	}
	if cfg.Limits.DecodeTimeoutMs == 0 {
		return fmt.Errorf("config: limits.decode_timeout_ms must be > 0")
	}
	if cfg.Limits.EmbedTimeoutMs == 0 {
		return fmt.Errorf("config: limits.embed_timeout_ms must be > 0")
	}
	if cfg.Limits.LLMTimeoutMs == 0 {
		return fmt.Errorf("config: limits.llm_timeout_ms must be > 0")
	}
	if cfg.Tagging.Enabled {
		if cfg.Tagging.MinConfidence < 0 || cfg.Tagging.MinConfidence > 1 {
			return fmt.Errorf("config: tagging.min_confidence must be in [0,1], got %v", cfg.Tagging.MinConfidence)
		}
		if cfg.Tagging.MaxTags == 0 {
			return fmt.Errorf("config: tagging.max_tags must be > 0")
		}
	}
	if cfg.LLM.Parallel > 8 {
		return fmt.Errorf("config: llm.parallel must be <= 8, got %d", cfg.LLM.Parallel)
	}
	return nil
}
