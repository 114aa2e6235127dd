package collection

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
	"github.com/raghavpatnecha/mnemosyne/pkg/util"
)

// Service exposes collection management.
type Service interface {
	Create(ctx context.Context, ownerID int64, req CreateRequest) (Collection, error)
	Get(ctx context.Context, ownerID int64, id uuid.UUID) (Collection, error)
	List(ctx context.Context, ownerID int64) ([]Collection, error)
	Update(ctx context.Context, ownerID int64, id uuid.UUID, req UpdateRequest) (Collection, error)
	Delete(ctx context.Context, ownerID int64, id uuid.UUID) error
}

type service struct {
	repo    Repository
	cascade CascadeDeleter
	logger  *slog.Logger
}

// NewService is a wire provider for the collection domain.
func NewService(repo Repository, cascade CascadeDeleter, logger *slog.Logger) Service {
	return &service{repo: repo, cascade: cascade, logger: logger.With("component", "collection.service")}
}

func (s *service) Create(ctx context.Context, ownerID int64, req CreateRequest) (Collection, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Collection{}, apperrors.Wrap("validation", "name cannot be empty", nil)
	}
	if _, exists, err := s.repo.GetByName(ctx, ownerID, name); err != nil {
		return Collection{}, apperrors.Wrap("internal", "failed to check collection name", err)
	} else if exists {
		return Collection{}, apperrors.Wrap("duplicate", "collection name already in use", nil)
	}

	cfg := mergeConfig(DefaultConfig(), req.Config)
	now := util.NowUTC()
	col := Collection{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		Description: req.Description,
		Metadata:    req.Metadata,
		Config:      cfg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.Create(ctx, col)
	if err != nil {
		return Collection{}, apperrors.Wrap("internal", "failed to create collection", err)
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, ownerID int64, id uuid.UUID) (Collection, error) {
	col, found, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return Collection{}, apperrors.Wrap("internal", "failed to load collection", err)
	}
	if !found {
		return Collection{}, apperrors.Wrap("not_found", "collection not found", nil)
	}
	return col, nil
}

func (s *service) List(ctx context.Context, ownerID int64) ([]Collection, error) {
	cols, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Wrap("internal", "failed to list collections", err)
	}
	return cols, nil
}

func (s *service) Update(ctx context.Context, ownerID int64, id uuid.UUID, req UpdateRequest) (Collection, error) {
	col, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return Collection{}, err
	}
	if req.Description != nil {
		col.Description = *req.Description
	}
	if req.Metadata != nil {
		col.Metadata = req.Metadata
	}
	if req.Config != nil {
		col.Config = mergeConfig(col.Config, *req.Config)
	}
	col.UpdatedAt = util.NowUTC()
	updated, err := s.repo.Update(ctx, col)
	if err != nil {
		return Collection{}, apperrors.Wrap("internal", "failed to update collection", err)
	}
	return updated, nil
}

// Delete removes a collection, cascading explicitly to its documents and
// chunks rather than relying on a database-level cascade.
func (s *service) Delete(ctx context.Context, ownerID int64, id uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if s.cascade != nil {
		if err := s.cascade.DeleteByCollection(ctx, id); err != nil {
			return apperrors.Wrap("internal", "failed to cascade delete documents", err)
		}
	}
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, context.Canceled) {
			return apperrors.Wrap("cancelled", "request cancelled", err)
		}
		return apperrors.Wrap("internal", "failed to delete collection", err)
	}
	return nil
}

func mergeConfig(base Config, override Config) Config {
	if override.ChunkTokens > 0 {
		base.ChunkTokens = override.ChunkTokens
	}
	if override.ChunkOverlap > 0 {
		base.ChunkOverlap = override.ChunkOverlap
	}
	if override.EmbeddingModel != "" {
		base.EmbeddingModel = override.EmbeddingModel
	}
	if override.Dimension > 0 {
		base.Dimension = override.Dimension
	}
	if len(override.EnabledModes) > 0 {
		base.EnabledModes = override.EnabledModes
	}
	base.GraphEnabled = override.GraphEnabled
	return base
}
