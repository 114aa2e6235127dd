//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/raghavpatnecha/mnemosyne/internal/bootstrap"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/auth"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/chat"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/blobstore"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/cachestore"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/config"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/ingestqueue"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/metadatastore"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/rerank"
	httpiface "github.com/raghavpatnecha/mnemosyne/internal/interface/http"
	"github.com/raghavpatnecha/mnemosyne/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,

		providePostgresPool,
		provideValkeyClient,
		provideChatGPTClient,
		provideBlobStore,

		provideAuthConfig,
		provideAuthRepository,
		provideAuthService,

		provideCollectionRepository,
		provideCollectionService,

		provideIngestionConfig,
		provideDocumentRepository,
		provideChunkRepository,
		provideFetcher,
		provideParserRegistry,
		provideChunker,
		provideEmbedder,
		provideIngestionQueue,
		provideIngestionPipeline,
		provideWorkerPool,
		provideIngestionService,

		provideRetrievalConfig,
		provideGraphStore,
		provideReranker,
		provideResultCache,
		provideRetrievalService,

		provideChatConfig,
		provideChatSessionRepository,
		provideChatMessageRepository,
		provideChatLLM,
		provideChatService,

		wire.Bind(new(ingestion.ObjectStorage), new(*blobstore.Store)),
		wire.Bind(new(ingestion.JobQueue), new(*ingestqueue.ValkeyQueue)),
		wire.Bind(new(ingestion.JobSource), new(*ingestqueue.ValkeyQueue)),
		wire.Bind(new(collection.CascadeDeleter), new(ingestion.Service)),
		wire.Bind(new(retrieval.ChunkSearch), new(*metadatastore.ChunkRepository)),
		wire.Bind(new(retrieval.GraphSearch), new(*metadatastore.GraphStore)),
		wire.Bind(new(retrieval.Reranker), new(*rerank.LLMReranker)),
		wire.Bind(new(retrieval.ResultCache), new(*cachestore.ValkeyCache)),
		wire.Bind(new(retrieval.EmbeddingCache), new(*cachestore.ValkeyCache)),
		wire.Bind(new(chat.SessionRepository), new(*metadatastore.SessionRepository)),
		wire.Bind(new(chat.MessageRepository), new(*metadatastore.MessageRepository)),

		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
