package retrieval

import (
	"github.com/google/uuid"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeSemantic     Mode = "semantic"
	ModeKeyword      Mode = "keyword"
	ModeHybrid       Mode = "hybrid"
	ModeHierarchical Mode = "hierarchical"
	ModeGraph        Mode = "graph"
)

// Query is a single retrieval request, already authorization-scoped to one
// owner and collection.
type Query struct {
	OwnerID      int64
	CollectionID uuid.UUID
	Text         string
	Mode         Mode
	TopK         int
	Rerank       bool
	DocumentIDs  []uuid.UUID
	Filter       map[string]any
}

// Candidate is one chunk surfaced by a single retrieval strategy, before
// fusion/reranking.
type Candidate struct {
	ChunkID       uuid.UUID
	DocumentID    uuid.UUID
	DocumentTitle string
	ChunkIndex    int
	Content       string
	Score         float64
}

// Result is the final, ranked, tie-broken output of a Retrieve call.
type Result struct {
	Candidates []Candidate
	Mode       Mode
	Reranked   bool
	Diagnostics Diagnostics
}

// Diagnostics surfaces retrieval internals useful for debugging a request,
// without being authoritative over the result itself.
type Diagnostics struct {
	SemanticCount int
	KeywordCount  int
	FusedCount    int
	RerankApplied bool
	RerankError   string
	CacheHit      bool
}

// AllowedFilterKeys is the whitelist of metadata_filter keys a collection's
// retrieval requests may use. Service.validateFilter checks keys against its
// own copy of the same three names and rejects any other key with a
// "validation" error (HTTP 400); there is no separate invalid_filter code.
func AllowedFilterKeys(cfg collection.Config) []string {
	return []string{"source", "mime_type", "tag"}
}
