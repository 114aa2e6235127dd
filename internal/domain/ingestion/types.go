package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a document through the ingestion state machine. Every
// transition is a compare-and-set on (id, expected status) — the only
// admissible concurrency primitive for advancing a document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Source describes how a document entered the system.
type Source string

const (
	SourceUpload Source = "upload"
	SourceURL    Source = "url"
)

// ProcessingInfo records the pipeline's own account of what happened to a
// document, for diagnostics — never authoritative over Status itself.
type ProcessingInfo struct {
	Parser         string `json:"parser,omitempty"`
	EmbeddingModel string `json:"embeddingModel,omitempty"`
	ParseMs        int64  `json:"parseMs,omitempty"`
	EmbedMs        int64  `json:"embedMs,omitempty"`
	PersistMs      int64  `json:"persistMs,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Document is a user-owned submission scoped to a collection.
type Document struct {
	ID           uuid.UUID      `json:"id"`
	CollectionID uuid.UUID      `json:"collectionId"`
	OwnerID      int64          `json:"ownerId"`
	Title        string         `json:"title"`
	Source       Source         `json:"source"`
	SourceURI    string         `json:"sourceUri,omitempty"`
	ContentHash  string         `json:"contentHash"`
	MimeType     string         `json:"mimeType"`
	SizeBytes    int64          `json:"sizeBytes"`
	Status       Status         `json:"status"`
	Attempt      int            `json:"attempt"`
	ChunkCount   int            `json:"chunkCount"`
	TotalTokens  int            `json:"totalTokens"`
	Metadata     map[string]any `json:"metadata"`
	Processing   ProcessingInfo `json:"processing"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Chunk is an embedded slice of a processed document.
type Chunk struct {
	ID           uuid.UUID `json:"id"`
	DocumentID   uuid.UUID `json:"documentId"`
	CollectionID uuid.UUID `json:"collectionId"`
	OwnerID      int64     `json:"ownerId"`
	ChunkIndex   int       `json:"chunkIndex"`
	Content      string    `json:"content"`
	TokenCount   int       `json:"tokenCount"`
	Embedding    []float32 `json:"embedding"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ParsedDocument is the output of a Parser: plain text plus whatever page or
// segment boundaries the parser found, used by the chunker.
type ParsedDocument struct {
	Text  string
	Pages int
}

// ChunkCandidate is a chunker's output before embedding/persistence.
type ChunkCandidate struct {
	Index      int
	Content    string
	TokenCount int
}

// UploadRequest is the payload for POST /documents when uploading raw bytes.
type UploadRequest struct {
	CollectionID uuid.UUID
	Title        string
	Filename     string
	Content      []byte
	Metadata     map[string]any
}

// URLRequest is the payload for POST /documents when ingesting from a URL.
type URLRequest struct {
	CollectionID uuid.UUID
	Title        string
	URL          string
	Metadata     map[string]any
}

// Filter scopes a document listing or chunk search.
type Filter struct {
	CollectionID *uuid.UUID
	Statuses     []Status
	DocumentIDs  []uuid.UUID
}
