package ingestion

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// ObjectStorage abstracts content-addressed blob storage (C2).
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string) (string, error)
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// Embedder produces embeddings for free-form text, batched by the caller.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Fetcher retrieves the raw bytes of a URL-sourced document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Parser turns raw bytes of a known MIME type into extractable text.
type Parser interface {
	Parse(ctx context.Context, data []byte) (ParsedDocument, error)
}

// Registry selects a Parser for a MIME type; selection is total — it always
// returns a usable parser, falling back to a plain-text reader.
type Registry interface {
	Select(mimeType string) Parser
}

// Chunker splits parsed text into token-budgeted, overlapping pieces.
type Chunker interface {
	Chunk(text string, targetTokens, overlap int) []ChunkCandidate
}

// Repository persists document metadata and performs the status CAS.
type Repository interface {
	Create(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, id uuid.UUID, ownerID int64) (Document, bool, error)
	// GetAny loads a document without owner scoping, for the worker pool's
	// internal use only — never exposed across a tenant boundary.
	GetAny(ctx context.Context, id uuid.UUID) (Document, bool, error)
	FindByContentHash(ctx context.Context, ownerID int64, collectionID uuid.UUID, hash string) (Document, bool, error)
	List(ctx context.Context, ownerID int64, filter Filter) ([]Document, error)
	Update(ctx context.Context, doc Document) (Document, error)
	// CompareAndSwapStatus atomically transitions status from `from` to `to`,
	// reporting false (no error) if another worker already moved it.
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to Status, info *ProcessingInfo) (bool, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID int64) error
	DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error
}

// ChunkRepository stores embedded chunks and serves the ANN/lexical search
// used by C4.
type ChunkRepository interface {
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
	DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error
}

// Completer persists a pipeline run's output atomically: the document's
// prior chunks are deleted, the new chunks are written, and the document is
// marked completed with its chunk/token counts and canonical content hash,
// all inside one transaction so a retry after a partial persist can never
// duplicate chunks.
type Completer interface {
	Complete(ctx context.Context, doc Document, chunks []Chunk) error
}

// JobQueue enqueues ingestion attempts for asynchronous processing.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
	EnqueueDelayed(ctx context.Context, job Job, delaySeconds int) error
}

// JobSource is the consumer side of the queue: a channel of jobs ready to
// run, fed by however many goroutines the transport needs (e.g. a single
// BRPOP loop). The WorkerPool fans this out across its N workers.
type JobSource interface {
	Jobs() <-chan Job
}

// Job is the durable unit of work the worker pool consumes.
type Job struct {
	DocumentID uuid.UUID `json:"documentId"`
	Attempt    int       `json:"attempt"`
}
