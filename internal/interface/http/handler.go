package http

import (
	"log/slog"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/auth"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/chat"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	authSvc       auth.Service
	collectionSvc collection.Service
	ingestionSvc  ingestion.Service
	retrievalSvc  retrieval.Service
	chatSvc       chat.Service
	logger        *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(authSvc auth.Service, collectionSvc collection.Service, ingestionSvc ingestion.Service, retrievalSvc retrieval.Service, chatSvc chat.Service, logger *slog.Logger) *Handler {
	return &Handler{
		authSvc:       authSvc,
		collectionSvc: collectionSvc,
		ingestionSvc:  ingestionSvc,
		retrievalSvc:  retrievalSvc,
		chatSvc:       chatSvc,
		logger:        logger.With("component", "http.handler"),
	}
}
