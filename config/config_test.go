package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oylhq/oyl/apperr"
	"github.com/oylhq/oyl/config"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestValidateRejectsOverlapNotBelowSize(t *testing.T) {
	cfg := config.Default()
	cfg.Chunking.Size = 100
	cfg.Chunking.Overlap = 100

	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, apperr.IsConfig(err))

	cfg.Chunking.Overlap = 150
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeOverlap(t *testing.T) {
	cfg := config.Default()
	cfg.Chunking.Overlap = -1
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveTopK(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.TopK = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Generation = "anthropic"
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, apperr.IsConfig(err))
}

func TestValidateRejectsUnknownVectorStore(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Type = "faiss"
	require.Error(t, cfg.Validate())
}

func TestValidateOpenAIRequiresKey(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Embedding = config.ProviderOpenAI
	cfg.OpenAI.APIKey = ""
	require.Error(t, cfg.Validate())

	cfg.OpenAI.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load("testdata/does-not-exist.yaml")
	require.NoError(t, err)
	require.Equal(t, config.Default().Chunking, cfg.Chunking)
	require.Equal(t, config.Default().Models, cfg.Models)
}
