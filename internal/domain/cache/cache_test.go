package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 15*time.Minute, cfg.SearchTTL)
	require.Equal(t, 24*time.Hour, cfg.EmbeddingTTL)
}

func TestEmbeddingKey_IsDeterministicPerModelAndText(t *testing.T) {
	k1 := EmbeddingKey("text-embedding-3-small", "hello world")
	k2 := EmbeddingKey("text-embedding-3-small", "hello world")
	require.Equal(t, k1, k2)
}

func TestEmbeddingKey_DiffersByModel(t *testing.T) {
	k1 := EmbeddingKey("model-a", "hello world")
	k2 := EmbeddingKey("model-b", "hello world")
	require.NotEqual(t, k1, k2)
}

func TestEmbeddingKey_DiffersByText(t *testing.T) {
	k1 := EmbeddingKey("model-a", "hello")
	k2 := EmbeddingKey("model-a", "world")
	require.NotEqual(t, k1, k2)
}
