package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/auth"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/cache"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/chat"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/accountstore"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/blobstore"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/cachestore"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/chunker"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/config"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/embedder"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/fetcher"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/ingestqueue"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/llm/chatadapter"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/llm/chatgpt"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/metadatastore"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/parser"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/rerank"
)

// providePostgresPool opens the single shared connection pool backing C1
// (metadata), C3 (document/chunk persistence), and the account store. There
// is no in-memory fallback: pgvector-backed search has no equivalent
// degraded mode, so a bad DSN fails application startup rather than
// silently losing persistence.
func providePostgresPool(cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	registerPgVector(poolConfig)
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func registerPgVector(poolConfig *pgxpool.Config) {
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var oid uint32
		if err := conn.QueryRow(ctx, "SELECT 'vector'::regtype::oid").Scan(&oid); err != nil {
			return fmt.Errorf("lookup pgvector oid: %w", err)
		}
		conn.TypeMap().RegisterType(&pgtype.Type{
			Name:  "vector",
			OID:   oid,
			Codec: pgtype.TextCodec{},
		})
		return nil
	}
}

func provideValkeyClient(cfg *config.Config) (valkey.Client, error) {
	opt, err := buildValkeyOptions(cfg.Valkey.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid valkey address: %w", err)
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}
	return client, nil
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideChatGPTClient(cfg *config.Config) (*chatgpt.Client, error) {
	return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

func provideBlobStore(cfg *config.Config, logger *slog.Logger) (*blobstore.Store, error) {
	return blobstore.NewStore(cfg.Blob.Endpoint, cfg.Blob.AccessKey, cfg.Blob.SecretKey, cfg.Blob.Bucket, cfg.Blob.Region, logger)
}

// --- auth ---

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		KeyPepper:     cfg.Auth.KeyPepper,
		KeyPrefixLen:  cfg.Auth.KeyPrefixLen,
		DefaultScopes: cfg.Auth.DefaultScopes,
	}
}

func provideAuthRepository(pool *pgxpool.Pool) auth.Repository {
	return accountstore.NewPostgresRepository(pool)
}

func provideAuthService(cfg auth.Config, repo auth.Repository, logger *slog.Logger) auth.Service {
	return auth.NewService(cfg, repo, logger)
}

// --- collection ---

func provideCollectionRepository(pool *pgxpool.Pool) collection.Repository {
	return metadatastore.NewCollectionRepository(pool)
}

func provideCollectionService(repo collection.Repository, cascade collection.CascadeDeleter, logger *slog.Logger) collection.Service {
	return collection.NewService(repo, cascade, logger)
}

// --- ingestion ---

func provideIngestionConfig(cfg *config.Config) ingestion.Config {
	return ingestion.Config{
		MaxFileBytes:   int64(cfg.Ingestion.MaxFileMB) * 1024 * 1024,
		MaxAttempts:    cfg.Ingestion.MaxAttempts,
		WorkerCount:    cfg.Ingestion.WorkerCount,
		BaseBackoffSec: cfg.Ingestion.BaseBackoffSec,
	}
}

func provideDocumentRepository(pool *pgxpool.Pool) *metadatastore.DocumentRepository {
	return metadatastore.NewDocumentRepository(pool)
}

func provideChunkRepository(pool *pgxpool.Pool) *metadatastore.ChunkRepository {
	return metadatastore.NewChunkRepository(pool)
}

func provideFetcher() ingestion.Fetcher {
	return fetcher.NewHTTPFetcher()
}

func provideParserRegistry() ingestion.Registry {
	return parser.NewStaticRegistry()
}

func provideChunker() ingestion.Chunker {
	return chunker.NewTokenChunker()
}

// provideEmbedder selects the deterministic, offline embedder for local
// dev/test (cfg.LLM.Deterministic) or the ChatGPT-backed embedder otherwise.
// The returned value satisfies both ingestion.Embedder and retrieval.Embedder
// — identical method sets kept as separate interfaces so neither domain
// imports the other.
func provideEmbedder(client *chatgpt.Client, cfg *config.Config, logger *slog.Logger) *embedderAdapter {
	if cfg.LLM.Deterministic {
		return &embedderAdapter{embedder.NewDeterministicEmbedder(1536)}
	}
	return &embedderAdapter{embedder.NewChatGPTEmbedder(client, logger)}
}

// embedderAdapter lets one concrete value satisfy both the ingestion and
// retrieval Embedder interfaces by forwarding Embed to a wrapped embedder,
// since Go does not let a
// provider function return two interface types from one construction.
type embedderAdapter struct {
	inner interface {
		Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
	}
}

func (e *embedderAdapter) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return e.inner.Embed(ctx, model, texts)
}

func provideIngestionPipeline(repo *metadatastore.DocumentRepository, chunks *metadatastore.ChunkRepository, storage ingestion.ObjectStorage, f ingestion.Fetcher, registry ingestion.Registry, c ingestion.Chunker, emb *embedderAdapter, collections collection.Service) *ingestion.Pipeline {
	return &ingestion.Pipeline{
		Repo:      repo,
		Completer: chunks,
		Storage:   storage,
		Fetcher:   f,
		Parsers:   registry,
		Chunker:   c,
		Embedder:  emb,
		OwnerMeta: func(documentID uuid.UUID) (uuid.UUID, int, int, int, string) {
			doc, found, err := repo.GetAny(context.Background(), documentID)
			if err != nil || !found {
				return documentID, 0, 0, 0, ""
			}
			col, err := collections.Get(context.Background(), doc.OwnerID, doc.CollectionID)
			if err != nil {
				return doc.CollectionID, 0, 0, 0, ""
			}
			return doc.CollectionID, col.Config.ChunkTokens, col.Config.ChunkOverlap, col.Config.Dimension, col.Config.EmbeddingModel
		},
	}
}

func provideWorkerPool(cfg ingestion.Config, repo *metadatastore.DocumentRepository, pipeline *ingestion.Pipeline, queue *ingestqueue.ValkeyQueue, logger *slog.Logger) *ingestion.WorkerPool {
	return ingestion.NewWorkerPool(cfg, repo, pipeline, queue, queue, logger)
}

func provideIngestionQueue(client valkey.Client, cfg *config.Config, logger *slog.Logger) *ingestqueue.ValkeyQueue {
	return ingestqueue.NewValkeyQueue(client, cfg.Valkey.KeyPrefix+":ingestion", logger)
}

func provideIngestionService(cfg ingestion.Config, repo *metadatastore.DocumentRepository, chunks *metadatastore.ChunkRepository, storage ingestion.ObjectStorage, queue *ingestqueue.ValkeyQueue, f ingestion.Fetcher, logger *slog.Logger) ingestion.Service {
	return ingestion.NewService(cfg, repo, chunks, storage, queue, f, logger)
}

// --- retrieval ---

func provideRetrievalConfig(cfg *config.Config) retrieval.Config {
	return retrieval.Config{
		DefaultTopK:      cfg.Retrieval.DefaultTopK,
		FanoutMultiplier: cfg.Retrieval.FanoutMultiplier,
		HierarchicalDocs: cfg.Retrieval.HierarchicalDocs,
		EmbeddingModel:   cfg.LLM.ChatModel,
	}
}

func provideGraphStore(pool *pgxpool.Pool) *metadatastore.GraphStore {
	return metadatastore.NewGraphStore(pool)
}

func provideReranker(client *chatgpt.Client, cfg *config.Config, logger *slog.Logger) *rerank.LLMReranker {
	return rerank.NewLLMReranker(client, cfg.LLM.RerankModel, logger)
}

func provideResultCache(client valkey.Client, cfg *config.Config) *cachestore.ValkeyCache {
	return cachestore.NewValkeyCache(client, cache.Config{SearchTTL: cfg.Cache.SearchTTL, EmbeddingTTL: cfg.Cache.EmbeddingTTL})
}

func provideRetrievalService(cfg retrieval.Config, search *metadatastore.ChunkRepository, graph *metadatastore.GraphStore, emb *embedderAdapter, reranker *rerank.LLMReranker, c *cachestore.ValkeyCache, collections collection.Service, logger *slog.Logger) retrieval.Service {
	return retrieval.NewService(cfg, search, graph, emb, reranker, c, c, collections, logger)
}

// --- chat ---

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{DefaultTopK: cfg.Chat.DefaultTopK}
}

func provideChatSessionRepository(pool *pgxpool.Pool) *metadatastore.SessionRepository {
	return metadatastore.NewSessionRepository(pool)
}

func provideChatMessageRepository(pool *pgxpool.Pool) *metadatastore.MessageRepository {
	return metadatastore.NewMessageRepository(pool)
}

func provideChatLLM(client *chatgpt.Client, cfg *config.Config, logger *slog.Logger) *chatadapter.ChatGPTLLM {
	return chatadapter.NewChatGPTLLM(client, cfg.LLM.ChatModel, cfg.LLM.Temperature, logger)
}

func provideChatService(cfg chat.Config, sessions *metadatastore.SessionRepository, messages *metadatastore.MessageRepository, retrieval retrieval.Service, llm *chatadapter.ChatGPTLLM, logger *slog.Logger) chat.Service {
	return chat.NewService(cfg, sessions, messages, retrieval, llm, logger)
}
