package collection

import (
	"time"

	"github.com/google/uuid"
)

// SearchMode enumerates the retrieval strategies a collection may enable.
type SearchMode string

const (
	ModeSemantic     SearchMode = "semantic"
	ModeKeyword      SearchMode = "keyword"
	ModeHybrid       SearchMode = "hybrid"
	ModeHierarchical SearchMode = "hierarchical"
	ModeGraph        SearchMode = "graph"
)

// Config holds the per-collection knobs: chunk size, embedding model id,
// and the set of enabled search modes.
type Config struct {
	ChunkTokens    int          `json:"chunkTokens"`
	ChunkOverlap   int          `json:"chunkOverlap"`
	EmbeddingModel string       `json:"embeddingModel"`
	Dimension      int          `json:"dimension"`
	EnabledModes   []SearchMode `json:"enabledModes"`
	GraphEnabled   bool         `json:"graphEnabled"`
}

// Collection is a logical corpus owned by exactly one user.
type Collection struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     int64          `json:"ownerId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Config      Config         `json:"config"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CreateRequest is the payload for creating a collection.
type CreateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Config      Config         `json:"config"`
}

// UpdateRequest allows a partial update of mutable collection fields.
type UpdateRequest struct {
	Description *string        `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Config      *Config        `json:"config"`
}

// DefaultConfig fills in the collection defaults applied when a caller
// omits them at creation time.
func DefaultConfig() Config {
	return Config{
		ChunkTokens:    800,
		ChunkOverlap:   80,
		EmbeddingModel: "text-embedding-3-small",
		Dimension:      1536,
		EnabledModes:   []SearchMode{ModeSemantic, ModeKeyword, ModeHybrid},
	}
}
