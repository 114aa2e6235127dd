package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
)

// Config holds retrieval-wide defaults.
type Config struct {
	DefaultTopK       int
	FanoutMultiplier  int
	HierarchicalDocs  int
	EmbeddingModel    string
}

// Service runs a retrieval request end to end: embed → search → fuse →
// tie-break sort → truncate to top_k → optional rerank, against the mode
// and collection config supplied. The reranker's order is returned as is,
// without a further sort.
type Service interface {
	Retrieve(ctx context.Context, q Query) (Result, error)
}

type service struct {
	cfg        Config
	search     ChunkSearch
	graph      GraphSearch
	embedder   Embedder
	reranker   Reranker
	resultCache ResultCache
	embedCache EmbeddingCache
	collections collection.Service
	logger     *slog.Logger
}

// NewService is a wire provider for the retrieval domain.
func NewService(cfg Config, search ChunkSearch, graph GraphSearch, embedder Embedder, reranker Reranker, resultCache ResultCache, embedCache EmbeddingCache, collections collection.Service, logger *slog.Logger) Service {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.FanoutMultiplier <= 0 {
		cfg.FanoutMultiplier = 2
	}
	if cfg.HierarchicalDocs <= 0 {
		cfg.HierarchicalDocs = 20
	}
	return &service{
		cfg: cfg, search: search, graph: graph, embedder: embedder, reranker: reranker,
		resultCache: resultCache, embedCache: embedCache, collections: collections,
		logger: logger.With("component", "retrieval.service"),
	}
}

func (s *service) Retrieve(ctx context.Context, q Query) (Result, error) {
	if q.CollectionID == uuid.Nil {
		return Result{}, apperrors.Wrap("validation", "collectionId is required", nil)
	}
	if q.Text == "" {
		return Result{}, apperrors.Wrap("validation", "query text is required", nil)
	}
	if utf8.RuneCountInString(q.Text) > 1000 {
		return Result{}, apperrors.Wrap("validation", "query text exceeds 1000 characters", nil)
	}
	if q.TopK < 1 || q.TopK > 100 {
		return Result{}, apperrors.Wrap("validation", "top_k must be between 1 and 100", nil)
	}
	if q.Mode == "" {
		q.Mode = ModeHybrid
	}
	if err := s.validateFilter(q); err != nil {
		return Result{}, err
	}

	col, err := s.collections.Get(ctx, q.OwnerID, q.CollectionID)
	if err != nil {
		return Result{}, err
	}

	cacheKey := searchCacheKey(q)
	if s.resultCache != nil {
		if cached, ok, cErr := s.resultCache.GetResult(ctx, cacheKey); cErr == nil && ok {
			cached.Diagnostics.CacheHit = true
			return cached, nil
		}
	}

	var diag Diagnostics
	var candidates []Candidate
	dimension := col.Config.Dimension

	switch q.Mode {
	case ModeSemantic:
		candidates, err = s.semantic(ctx, q, q.TopK, dimension)
		diag.SemanticCount = len(candidates)
	case ModeKeyword:
		candidates, err = s.keyword(ctx, q, q.TopK)
		diag.KeywordCount = len(candidates)
	case ModeHierarchical:
		candidates, err = s.hierarchical(ctx, q, dimension)
	case ModeGraph:
		if !col.Config.GraphEnabled || s.graph == nil {
			candidates, err = s.semantic(ctx, q, q.TopK, dimension)
		} else {
			candidates, err = s.graph.SearchGraph(ctx, q, q.TopK)
		}
	default: // hybrid
		candidates, diag, err = s.hybrid(ctx, q, dimension)
	}
	if err != nil {
		if apperrors.IsCode(err, "dimension_mismatch") {
			return Result{}, err
		}
		return Result{}, apperrors.Wrap("internal", "retrieval failed", err)
	}

	sortCandidates(candidates)
	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	diag.FusedCount = len(candidates)

	reranked := false
	if q.Rerank && s.reranker != nil && len(candidates) > 0 {
		out, rerankErr := s.reranker.Rerank(ctx, q.Text, candidates)
		if rerankErr != nil {
			s.logger.Warn("rerank failed, degrading to unreranked order", "error", rerankErr)
			diag.RerankError = rerankErr.Error()
		} else {
			candidates = out
			reranked = true
			diag.RerankApplied = true
		}
	}

	result := Result{Candidates: candidates, Mode: q.Mode, Reranked: reranked, Diagnostics: diag}
	if s.resultCache != nil {
		if cErr := s.resultCache.SetResult(ctx, cacheKey, result); cErr != nil {
			s.logger.Warn("failed to populate result cache", "error", cErr)
		}
	}
	return result, nil
}

// searchCacheKey canonicalizes a query into a deterministic cache key:
// "search:" + owner + ":" + hex(sha256(owner, collection, mode, top_k,
// rerank, query, sorted filter)).
func searchCacheKey(q Query) string {
	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, q.Filter[k]))
	}
	canonical := fmt.Sprintf("%d|%s|%s|%d|%t|%s|%s", q.OwnerID, q.CollectionID, q.Mode, q.TopK, q.Rerank, q.Text, pairs)
	sum := sha256.Sum256([]byte(canonical))
	return "search:" + fmt.Sprintf("%d", q.OwnerID) + ":" + hex.EncodeToString(sum[:])
}

func (s *service) hybrid(ctx context.Context, q Query, dimension int) ([]Candidate, Diagnostics, error) {
	fanout := q.TopK * s.cfg.FanoutMultiplier
	var semanticResults, keywordResults []Candidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semanticResults, err = s.semantic(gctx, q, fanout, dimension)
		return err
	})
	g.Go(func() error {
		var err error
		keywordResults, err = s.keyword(gctx, q, fanout)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Diagnostics{}, err
	}

	diag := Diagnostics{SemanticCount: len(semanticResults), KeywordCount: len(keywordResults)}
	return fuseRRF(semanticResults, keywordResults), diag, nil
}

func (s *service) semantic(ctx context.Context, q Query, limit int, dimension int) ([]Candidate, error) {
	embedding, err := s.embed(ctx, q, dimension)
	if err != nil {
		return nil, err
	}
	return s.search.SearchSemantic(ctx, q, embedding, limit)
}

func (s *service) keyword(ctx context.Context, q Query, limit int) ([]Candidate, error) {
	return s.search.SearchLexical(ctx, q, q.Text, limit)
}

// hierarchical aggregates the max chunk score per document, selects the
// top documents, then re-runs semantic search restricted to that set.
func (s *service) hierarchical(ctx context.Context, q Query, dimension int) ([]Candidate, error) {
	wide, err := s.semantic(ctx, q, q.TopK*s.cfg.FanoutMultiplier*4, dimension)
	if err != nil {
		return nil, err
	}
	best := make(map[uuid.UUID]float64)
	for _, c := range wide {
		if c.Score > best[c.DocumentID] {
			best[c.DocumentID] = c.Score
		}
	}
	type docScore struct {
		id    uuid.UUID
		score float64
	}
	docs := make([]docScore, 0, len(best))
	for id, score := range best {
		docs = append(docs, docScore{id, score})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].score > docs[j].score })
	if len(docs) > s.cfg.HierarchicalDocs {
		docs = docs[:s.cfg.HierarchicalDocs]
	}
	ids := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		ids[i] = d.id
	}
	restricted := q
	restricted.DocumentIDs = ids
	return s.semantic(ctx, restricted, q.TopK, dimension)
}

func (s *service) embed(ctx context.Context, q Query, dimension int) ([]float32, error) {
	model := s.cfg.EmbeddingModel
	if s.embedCache != nil {
		if cached, ok, err := s.embedCache.GetEmbedding(ctx, model, q.Text); err == nil && ok {
			if dimension > 0 && len(cached) != dimension {
				return nil, apperrors.WrapDetails("dimension_mismatch", "query embedding dimension does not match collection configuration", nil, map[string]any{"expected": dimension, "actual": len(cached)})
			}
			return cached, nil
		}
	}
	vectors, err := s.embedder.Embed(ctx, model, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	vec := vectors[0]
	if dimension > 0 && len(vec) != dimension {
		return nil, apperrors.WrapDetails("dimension_mismatch", "query embedding dimension does not match collection configuration", nil, map[string]any{"expected": dimension, "actual": len(vec)})
	}
	if s.embedCache != nil {
		_ = s.embedCache.SetEmbedding(ctx, model, q.Text, vec)
	}
	return vec, nil
}

func (s *service) validateFilter(q Query) error {
	if len(q.Filter) == 0 {
		return nil
	}
	allowed := map[string]bool{"source": true, "mime_type": true, "tag": true}
	for key := range q.Filter {
		if !allowed[key] {
			return apperrors.Wrap("validation", fmt.Sprintf("metadata filter key %q is not allowed", key), nil)
		}
	}
	return nil
}
