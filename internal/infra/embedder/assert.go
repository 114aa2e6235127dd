package embedder

import (
	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
)

var (
	_ ingestion.Embedder = (*ChatGPTEmbedder)(nil)
	_ retrieval.Embedder = (*ChatGPTEmbedder)(nil)
	_ ingestion.Embedder = (*DeterministicEmbedder)(nil)
	_ retrieval.Embedder = (*DeterministicEmbedder)(nil)
)
