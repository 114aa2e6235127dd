package ingestion

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPipeline_RunDedupesAgainstCompletedDocument(t *testing.T) {
	repo := newFakeRepository()
	completer := newFakeCompleter()
	collectionID := uuid.New()

	existing := Document{
		ID:           uuid.New(),
		CollectionID: collectionID,
		OwnerID:      1,
		Status:       StatusCompleted,
		ContentHash:  canonicalTextHash("same body"),
	}
	repo.docs[existing.ID] = existing

	doc := Document{
		ID:           uuid.New(),
		CollectionID: collectionID,
		OwnerID:      1,
		Status:       StatusRunning,
		Source:       SourceUpload,
		ContentHash:  "raw-bytes-hash",
		SizeBytes:    int64(len("same body")),
	}

	p := &Pipeline{
		Repo:      repo,
		Completer: completer,
		Storage:   &fakeObjectStorage{content: []byte("same body")},
		Fetcher:   &fakeFetcher{},
		Parsers:   &fakeRegistry{text: "same body"},
		Chunker:   &fakeChunker{},
		Embedder:  &fakeVectorEmbedder{dim: 4},
		OwnerMeta: func(uuid.UUID) (uuid.UUID, int, int, int, string) {
			return collectionID, 800, 80, 4, "test-model"
		},
	}

	_, err := p.Run(context.Background(), doc)
	require.Error(t, err)
	require.False(t, isTransient(err))
	require.Empty(t, completer.completed)
}

func TestPipeline_RunRejectsDimensionMismatch(t *testing.T) {
	repo := newFakeRepository()
	completer := newFakeCompleter()
	collectionID := uuid.New()

	doc := Document{
		ID:           uuid.New(),
		CollectionID: collectionID,
		OwnerID:      1,
		Status:       StatusRunning,
		Source:       SourceUpload,
		ContentHash:  "raw-bytes-hash",
		SizeBytes:    int64(len("some text")),
	}

	p := &Pipeline{
		Repo:      repo,
		Completer: completer,
		Storage:   &fakeObjectStorage{content: []byte("some text")},
		Fetcher:   &fakeFetcher{},
		Parsers:   &fakeRegistry{text: "some text"},
		Chunker:   &fakeChunker{},
		Embedder:  &fakeVectorEmbedder{dim: 3},
		OwnerMeta: func(uuid.UUID) (uuid.UUID, int, int, int, string) {
			return collectionID, 800, 80, 1536, "test-model"
		},
	}

	_, err := p.Run(context.Background(), doc)
	require.Error(t, err)
	require.False(t, isTransient(err))
	require.Empty(t, completer.completed)
}

func TestPipeline_RunPersistsAtomicallyOnSuccess(t *testing.T) {
	repo := newFakeRepository()
	completer := newFakeCompleter()
	collectionID := uuid.New()

	doc := Document{
		ID:           uuid.New(),
		CollectionID: collectionID,
		OwnerID:      1,
		Status:       StatusRunning,
		Source:       SourceUpload,
		ContentHash:  "raw-bytes-hash",
		SizeBytes:    int64(len("fresh content")),
	}

	p := &Pipeline{
		Repo:      repo,
		Completer: completer,
		Storage:   &fakeObjectStorage{content: []byte("fresh content")},
		Fetcher:   &fakeFetcher{},
		Parsers:   &fakeRegistry{text: "fresh content"},
		Chunker:   &fakeChunker{},
		Embedder:  &fakeVectorEmbedder{dim: 4},
		OwnerMeta: func(uuid.UUID) (uuid.UUID, int, int, int, string) {
			return collectionID, 800, 80, 4, "test-model"
		},
	}

	n, err := p.Run(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, completer.completed, 1)
	require.Equal(t, canonicalTextHash("fresh content"), completer.completed[0].doc.ContentHash)
}

type fakeObjectStorage struct {
	content []byte
}

func (f *fakeObjectStorage) Put(_ context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (f *fakeObjectStorage) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

func (f *fakeObjectStorage) Delete(_ context.Context, _ string) error { return nil }

func (f *fakeObjectStorage) SignedURL(_ context.Context, _ string) (string, error) {
	return "", nil
}

type fakeFetcher struct{}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, string, error) {
	return nil, "", nil
}

type fakeRegistry struct {
	text string
}

func (f *fakeRegistry) Select(_ string) Parser {
	return &fakeParser{text: f.text}
}

type fakeParser struct {
	text string
}

func (f *fakeParser) Parse(_ context.Context, _ []byte) (ParsedDocument, error) {
	return ParsedDocument{Text: f.text}, nil
}

type fakeChunker struct{}

func (f *fakeChunker) Chunk(text string, _, _ int) []ChunkCandidate {
	return []ChunkCandidate{{Index: 0, Content: text, TokenCount: len(text) / 4}}
}

type fakeVectorEmbedder struct {
	dim int
}

func (f *fakeVectorEmbedder) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

type completion struct {
	doc    Document
	chunks []Chunk
}

type fakeCompleter struct {
	completed []completion
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{}
}

func (f *fakeCompleter) Complete(_ context.Context, doc Document, chunks []Chunk) error {
	f.completed = append(f.completed, completion{doc: doc, chunks: chunks})
	return nil
}
