package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// stageError classifies a pipeline failure so the worker pool can decide
// between retrying and marking the document permanently failed.
type stageError struct {
	kind string // "transient" or "permanent"
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func transientErr(err error) error { return &stageError{kind: "transient", err: err} }
func permanentErr(err error) error { return &stageError{kind: "permanent", err: err} }

func isTransient(err error) bool {
	var se *stageError
	if e, ok := err.(*stageError); ok {
		se = e
		return se.kind == "transient"
	}
	return true // unknown errors are treated as transient, eligible for retry
}

// Pipeline runs the single-document parse → chunk → embed → persist
// sequence. Its only status change is the running → completed CAS that its
// Completer performs together with the chunk persist; every other
// transition is the worker pool's CAS responsibility. It never blocks a
// goroutine beyond one stage's I/O.
type Pipeline struct {
	Repo      Repository
	Completer Completer
	Storage   ObjectStorage
	Fetcher   Fetcher
	Parsers   Registry
	Chunker   Chunker
	Embedder  Embedder
	OwnerMeta func(uuid.UUID) (collectionID uuid.UUID, chunkTokens, overlap, dimension int, embeddingModel string)
}

// Run executes every stage for one document, returning the persisted chunk
// count and a classified error on failure.
func (p *Pipeline) Run(ctx context.Context, doc Document) (int, error) {
	collectionID, chunkTokens, overlap, dimension, embeddingModel := p.OwnerMeta(doc.ID)
	if chunkTokens <= 0 {
		chunkTokens = 800
	}

	raw, mimeType, err := p.fetch(ctx, doc)
	if err != nil {
		return 0, err
	}

	parsed, parseMs, err := p.parse(ctx, mimeType, raw)
	if err != nil {
		return 0, err
	}
	if parsed.Text == "" {
		return 0, permanentErr(fmt.Errorf("parser produced no extractable text"))
	}

	canonicalHash := canonicalTextHash(parsed.Text)
	if existing, found, err := p.Repo.FindByContentHash(ctx, doc.OwnerID, collectionID, canonicalHash); err != nil {
		return 0, transientErr(fmt.Errorf("dedupe check failed: %w", err))
	} else if found && existing.ID != doc.ID && existing.Status == StatusCompleted {
		return 0, permanentErr(fmt.Errorf("duplicate of completed document %s", existing.ID))
	}

	candidates := p.Chunker.Chunk(parsed.Text, chunkTokens, overlap)
	if len(candidates) == 0 {
		return 0, permanentErr(fmt.Errorf("chunker produced no chunks"))
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}

	embedStart := time.Now()
	vectors, err := p.Embedder.Embed(ctx, embeddingModel, texts)
	if err != nil {
		return 0, transientErr(fmt.Errorf("embedding failed: %w", err))
	}
	if len(vectors) != len(candidates) {
		return 0, permanentErr(fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(candidates)))
	}
	if dimension > 0 {
		for _, v := range vectors {
			if len(v) != dimension {
				return 0, permanentErr(fmt.Errorf("dimension_mismatch: embedding length %d does not match collection dimension %d", len(v), dimension))
			}
		}
	}
	embedMs := time.Since(embedStart).Milliseconds()

	persistStart := time.Now()
	now := time.Now().UTC()
	chunks := make([]Chunk, len(candidates))
	for i, c := range candidates {
		chunks[i] = Chunk{
			ID:           uuid.New(),
			DocumentID:   doc.ID,
			CollectionID: collectionID,
			OwnerID:      doc.OwnerID,
			ChunkIndex:   c.Index,
			Content:      c.Content,
			TokenCount:   c.TokenCount,
			Embedding:    vectors[i],
			CreatedAt:    now,
		}
	}

	doc.ContentHash = canonicalHash
	doc.Processing = ProcessingInfo{
		Parser:         mimeType,
		EmbeddingModel: embeddingModel,
		ParseMs:        parseMs,
		EmbedMs:        embedMs,
		PersistMs:      time.Since(persistStart).Milliseconds(),
	}
	if err := p.Completer.Complete(ctx, doc, chunks); err != nil {
		return 0, transientErr(fmt.Errorf("persisting chunks failed: %w", err))
	}

	return len(chunks), nil
}

// canonicalTextHash hashes a document's canonical parsed text, distinct from
// the raw-upload-bytes hash used for blob addressing and the synchronous
// upload-time duplicate check.
func canonicalTextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) fetch(ctx context.Context, doc Document) ([]byte, string, error) {
	if doc.Source == SourceURL {
		raw, mimeType, err := p.Fetcher.Fetch(ctx, doc.SourceURI)
		if err != nil {
			return nil, "", transientErr(fmt.Errorf("fetching url failed: %w", err))
		}
		return raw, mimeType, nil
	}
	reader, err := p.Storage.Get(ctx, blobKey(doc.OwnerID, doc.ContentHash, doc.Title))
	if err != nil {
		return nil, "", transientErr(fmt.Errorf("reading blob failed: %w", err))
	}
	defer reader.Close()
	buf := make([]byte, 0, doc.SizeBytes)
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	return buf, doc.MimeType, nil
}

func (p *Pipeline) parse(ctx context.Context, mimeType string, raw []byte) (ParsedDocument, int64, error) {
	start := time.Now()
	parser := p.Parsers.Select(mimeType)
	parsed, err := parser.Parse(ctx, raw)
	if err != nil {
		return ParsedDocument{}, 0, permanentErr(fmt.Errorf("parsing failed: %w", err))
	}
	return parsed, time.Since(start).Milliseconds(), nil
}
