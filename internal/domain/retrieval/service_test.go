package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
)

func TestService_RetrieveRejectsMissingCollection(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Retrieve(context.Background(), Query{Text: "hello"})
	require.Error(t, err)
}

func TestService_RetrieveRejectsEmptyText(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Retrieve(context.Background(), Query{CollectionID: uuid.New()})
	require.Error(t, err)
}

func TestService_RetrieveRejectsTopKOutOfRange(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Retrieve(context.Background(), Query{CollectionID: uuid.New(), Text: "hello", TopK: 0})
	require.Error(t, err)

	_, err = svc.Retrieve(context.Background(), Query{CollectionID: uuid.New(), Text: "hello", TopK: 101})
	require.Error(t, err)
}

func TestService_RetrieveRejectsQueryTooLong(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Retrieve(context.Background(), Query{
		CollectionID: uuid.New(),
		Text:         strings.Repeat("a", 1001),
		TopK:         5,
	})
	require.Error(t, err)
}

func TestService_RetrieveRejectsDimensionMismatch(t *testing.T) {
	svc := newTestServiceWithEmbedder(t, &fakeChunkSearch{}, &wrongDimensionEmbedder{}, nil)
	_, err := svc.Retrieve(context.Background(), Query{CollectionID: uuid.New(), Text: "hello", Mode: ModeSemantic, TopK: 5})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "dimension_mismatch"))
}

func TestService_RetrieveRejectsDisallowedFilterKey(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Retrieve(context.Background(), Query{
		CollectionID: uuid.New(),
		Text:         "hello",
		Filter:       map[string]any{"not_allowed": "x"},
	})
	require.Error(t, err)
}

func TestService_RetrieveHybridFusesAndCaches(t *testing.T) {
	search := &fakeChunkSearch{
		semantic: []Candidate{{ChunkID: uuid.New(), Score: 0.9}},
		lexical:  []Candidate{{ChunkID: uuid.New(), Score: 0.5}},
	}
	svc := newTestService(t, search)

	q := Query{CollectionID: uuid.New(), Text: "hello", Mode: ModeHybrid, TopK: 5}
	result, err := svc.Retrieve(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	require.False(t, result.Diagnostics.CacheHit)

	// Second call for the same query should hit the cache.
	result2, err := svc.Retrieve(context.Background(), q)
	require.NoError(t, err)
	require.True(t, result2.Diagnostics.CacheHit)
}

func TestService_RetrieveRerankDegradesOnFailure(t *testing.T) {
	search := &fakeChunkSearch{semantic: []Candidate{{ChunkID: uuid.New(), Score: 0.9}}}
	svc := newTestServiceWithReranker(t, search, &fakeReranker{err: errors.New("boom")})

	q := Query{CollectionID: uuid.New(), Text: "hello", Mode: ModeSemantic, TopK: 5, Rerank: true}
	result, err := svc.Retrieve(context.Background(), q)
	require.NoError(t, err)
	require.False(t, result.Reranked)
	require.NotEmpty(t, result.Diagnostics.RerankError)
}

func newTestService(t *testing.T, search *fakeChunkSearch) Service {
	t.Helper()
	return newTestServiceWithReranker(t, search, nil)
}

func newTestServiceWithReranker(t *testing.T, search *fakeChunkSearch, reranker Reranker) Service {
	t.Helper()
	return newTestServiceWithEmbedder(t, search, &fakeEmbedder{}, reranker)
}

func newTestServiceWithEmbedder(t *testing.T, search *fakeChunkSearch, embedder Embedder, reranker Reranker) Service {
	t.Helper()
	if search == nil {
		search = &fakeChunkSearch{}
	}
	var cache ResultCache = newFakeResultCache()
	return NewService(
		Config{DefaultTopK: 5},
		search,
		nil,
		embedder,
		reranker,
		cache,
		nil,
		&fakeCollectionService{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

type fakeChunkSearch struct {
	semantic []Candidate
	lexical  []Candidate
}

func (f *fakeChunkSearch) SearchSemantic(_ context.Context, _ Query, _ []float32, limit int) ([]Candidate, error) {
	return capCandidates(f.semantic, limit), nil
}

func (f *fakeChunkSearch) SearchLexical(_ context.Context, _ Query, _ string, limit int) ([]Candidate, error) {
	return capCandidates(f.lexical, limit), nil
}

func capCandidates(in []Candidate, limit int) []Candidate {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type wrongDimensionEmbedder struct{}

func (wrongDimensionEmbedder) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2} // shorter than the collection's configured dimension
	}
	return out, nil
}

type fakeReranker struct {
	err error
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, candidates []Candidate) ([]Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return candidates, nil
}

type fakeResultCache struct {
	results map[string]Result
}

func newFakeResultCache() *fakeResultCache {
	return &fakeResultCache{results: make(map[string]Result)}
}

func (f *fakeResultCache) GetResult(_ context.Context, key string) (Result, bool, error) {
	r, ok := f.results[key]
	return r, ok, nil
}

func (f *fakeResultCache) SetResult(_ context.Context, key string, result Result) error {
	f.results[key] = result
	return nil
}

type fakeCollectionService struct{}

func (fakeCollectionService) Create(_ context.Context, ownerID int64, req collection.CreateRequest) (collection.Collection, error) {
	return collection.Collection{}, nil
}

func (fakeCollectionService) Get(_ context.Context, ownerID int64, id uuid.UUID) (collection.Collection, error) {
	cfg := collection.DefaultConfig()
	cfg.Dimension = 3 // matches fakeEmbedder's fixed-length output
	return collection.Collection{ID: id, OwnerID: ownerID, Config: cfg}, nil
}

func (fakeCollectionService) List(_ context.Context, ownerID int64) ([]collection.Collection, error) {
	return nil, nil
}

func (fakeCollectionService) Update(_ context.Context, ownerID int64, id uuid.UUID, req collection.UpdateRequest) (collection.Collection, error) {
	return collection.Collection{}, nil
}

func (fakeCollectionService) Delete(_ context.Context, ownerID int64, id uuid.UUID) error {
	return nil
}
