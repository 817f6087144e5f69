package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photon-img/photon/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photon.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `[embedding]
model = "siglip-base-patch16"
`)
	cfg, err := config.Load(path, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(4), cfg.Processing.ParallelWorkers)
	require.Equal(t, uint64(100), cfg.Limits.MaxFileSizeMB)
	require.Equal(t, uint32(224), cfg.Embedding.ImageSize)
}

func TestLoadAutoCorrectsImageSizeForKnownModel(t *testing.T) {
	path := writeConfig(t, `
[embedding]
model = "siglip-base-patch16-384"
image_size = 224
`)
	cfg, err := config.Load(path, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(384), cfg.Embedding.ImageSize)
}

func TestLoadRejectsUnrecognizedModelWithNoImageSize(t *testing.T) {
	path := writeConfig(t, `
[embedding]
model = "not-a-real-model"
`)
	_, err := config.Load(path, nil, nil)
	require.Error(t, err)
}

func TestLoadRejectsOutOfRangeMinConfidence(t *testing.T) {
	path := writeConfig(t, `
[embedding]
model = "siglip-base-patch16"
[tagging]
enabled = true
min_confidence = 1.5
max_tags = 10
`)
	_, err := config.Load(path, nil, nil)
	require.Error(t, err)
}

func TestLoadRejectsZeroParallelWorkers(t *testing.T) {
	path := writeConfig(t, `
[processing]
parallel_workers = 0
[embedding]
model = "siglip-base-patch16"
`)
	_, err := config.Load(path, nil, nil)
	require.Error(t, err)
}

func TestLoadExpandsEnvVarsInLLMCredentials(t *testing.T) {
	path := writeConfig(t, `
[embedding]
model = "siglip-base-patch16"
[llm]
api_key = "${TEST_PHOTON_API_KEY}"
`)
	env := map[string]string{"TEST_PHOTON_API_KEY": "secret-value"}
	cfg, err := config.Load(path, func(name string) string { return env[name] }, nil)
	require.NoError(t, err)
	require.Equal(t, "secret-value", cfg.LLM.APIKey)
}

func TestLoadRejectsLLMParallelAboveEight(t *testing.T) {
	path := writeConfig(t, `
[embedding]
model = "siglip-base-patch16"
[llm]
parallel = 9
`)
	_, err := config.Load(path, nil, nil)
	require.Error(t, err)
}
