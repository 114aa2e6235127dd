package retrieval

import "context"

// ChunkSearch is the read-side collaborator implemented by the metadata
// store (C1), exercising both the pgvector ANN path and Postgres full-text
// search.
type ChunkSearch interface {
	SearchSemantic(ctx context.Context, q Query, embedding []float32, limit int) ([]Candidate, error)
	SearchLexical(ctx context.Context, q Query, rawQuery string, limit int) ([]Candidate, error)
}

// GraphSearch is the optional entity-graph collaborator, queried only when
// a collection has graph mode enabled.
type GraphSearch interface {
	SearchGraph(ctx context.Context, q Query, limit int) ([]Candidate, error)
}

// Embedder produces a query embedding; shared with the ingestion domain's
// Embedder shape but kept as its own interface so retrieval does not import
// ingestion.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Reranker reorders fused candidates by a finer-grained relevance signal.
// Any failure must degrade to the unreranked order, never fail the request.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)
}

// EmbeddingCache and ResultCache are the C5 get/set interfaces, declared
// here next to their consumer and narrowed to what retrieval needs; the
// cache package itself defines only the invalidation interface.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, model, text string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, model, text string, embedding []float32) error
}

type ResultCache interface {
	GetResult(ctx context.Context, key string) (Result, bool, error)
	SetResult(ctx context.Context, key string, result Result) error
}
