package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
)

// Config drives ingestion-wide resource limits.
type Config struct {
	MaxFileBytes   int64
	MaxAttempts    int
	WorkerCount    int
	BaseBackoffSec int
}

// Service exposes document submission and lifecycle queries. The actual
// parse/chunk/embed/persist work happens in the WorkerPool (pipeline.go,
// workerpool.go); Service performs the submission-time status CAS, the
// pending → failed CAS when an upload's blob write fails, Cancel's CAS to
// cancelled, document and chunk deletion, and metadata reads.
type Service interface {
	Upload(ctx context.Context, ownerID int64, req UploadRequest) (Document, error)
	SubmitURL(ctx context.Context, ownerID int64, req URLRequest) (Document, error)
	Get(ctx context.Context, ownerID int64, id uuid.UUID) (Document, error)
	List(ctx context.Context, ownerID int64, filter Filter) ([]Document, error)
	Status(ctx context.Context, ownerID int64, id uuid.UUID) (Document, error)
	SignedURL(ctx context.Context, ownerID int64, id uuid.UUID) (string, error)
	Delete(ctx context.Context, ownerID int64, id uuid.UUID) error
	Cancel(ctx context.Context, ownerID int64, id uuid.UUID) error
	DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error
}

type service struct {
	cfg     Config
	repo    Repository
	chunks  ChunkRepository
	storage ObjectStorage
	queue   JobQueue
	fetcher Fetcher
	logger  *slog.Logger
}

// NewService is a wire provider for the ingestion domain.
func NewService(cfg Config, repo Repository, chunks ChunkRepository, storage ObjectStorage, queue JobQueue, fetcher Fetcher, logger *slog.Logger) Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoffSec <= 0 {
		cfg.BaseBackoffSec = 60
	}
	return &service{cfg: cfg, repo: repo, chunks: chunks, storage: storage, queue: queue, fetcher: fetcher, logger: logger.With("component", "ingestion.service")}
}

func (s *service) Upload(ctx context.Context, ownerID int64, req UploadRequest) (Document, error) {
	if req.CollectionID == uuid.Nil {
		return Document{}, apperrors.Wrap("validation", "collectionId is required", nil)
	}
	if int64(len(req.Content)) > s.cfg.MaxFileBytes && s.cfg.MaxFileBytes > 0 {
		return Document{}, apperrors.Wrap("validation", "file exceeds maximum size", nil)
	}
	if len(req.Content) == 0 {
		return Document{}, apperrors.Wrap("validation", "file is empty", nil)
	}

	hash := contentHash(req.Content)
	if existing, found, err := s.repo.FindByContentHash(ctx, ownerID, req.CollectionID, hash); err != nil {
		return Document{}, apperrors.Wrap("internal", "failed to check content hash", err)
	} else if found {
		return Document{}, apperrors.WrapDetails("duplicate_document", "document with identical content already exists", nil, map[string]any{"document_id": existing.ID.String()})
	}

	mimeType := http.DetectContentType(req.Content)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.Filename
	}

	now := time.Now().UTC()
	doc := Document{
		ID:           uuid.New(),
		CollectionID: req.CollectionID,
		OwnerID:      ownerID,
		Title:        title,
		Source:       SourceUpload,
		ContentHash:  hash,
		MimeType:     mimeType,
		SizeBytes:    int64(len(req.Content)),
		Status:       StatusPending,
		Metadata:     req.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Create(ctx, doc)
	if err != nil {
		return Document{}, apperrors.Wrap("internal", "failed to persist document", err)
	}

	key := blobKey(ownerID, hash, req.Filename)
	if _, err := s.storage.Put(ctx, key, req.Content, mimeType); err != nil {
		_, _ = s.repo.CompareAndSwapStatus(ctx, created.ID, StatusPending, StatusFailed, &ProcessingInfo{Error: "blob storage failed"})
		return Document{}, apperrors.Wrap("transient_upstream", "failed to store document blob", err)
	}

	return s.submit(ctx, created)
}

func (s *service) SubmitURL(ctx context.Context, ownerID int64, req URLRequest) (Document, error) {
	if req.CollectionID == uuid.Nil {
		return Document{}, apperrors.Wrap("validation", "collectionId is required", nil)
	}
	if strings.TrimSpace(req.URL) == "" {
		return Document{}, apperrors.Wrap("validation", "url is required", nil)
	}
	now := time.Now().UTC()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = path.Base(req.URL)
	}
	doc := Document{
		ID:           uuid.New(),
		CollectionID: req.CollectionID,
		OwnerID:      ownerID,
		Title:        title,
		Source:       SourceURL,
		SourceURI:    req.URL,
		Status:       StatusPending,
		Metadata:     req.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Create(ctx, doc)
	if err != nil {
		return Document{}, apperrors.Wrap("internal", "failed to persist document", err)
	}
	return s.submit(ctx, created)
}

// submit performs the pending → queued CAS and enqueues the first attempt.
func (s *service) submit(ctx context.Context, doc Document) (Document, error) {
	ok, err := s.repo.CompareAndSwapStatus(ctx, doc.ID, StatusPending, StatusQueued, nil)
	if err != nil {
		return Document{}, apperrors.Wrap("internal", "failed to queue document", err)
	}
	if !ok {
		return Document{}, apperrors.Wrap("internal", "document already left pending state", nil)
	}
	doc.Status = StatusQueued
	if err := s.queue.Enqueue(ctx, Job{DocumentID: doc.ID, Attempt: 1}); err != nil {
		s.logger.Error("failed to enqueue ingestion job", "document_id", doc.ID, "error", err)
		return Document{}, apperrors.Wrap("transient_upstream", "failed to enqueue ingestion job", err)
	}
	return doc, nil
}

func (s *service) Get(ctx context.Context, ownerID int64, id uuid.UUID) (Document, error) {
	doc, found, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return Document{}, apperrors.Wrap("internal", "failed to load document", err)
	}
	if !found {
		return Document{}, apperrors.Wrap("not_found", "document not found", nil)
	}
	return doc, nil
}

func (s *service) List(ctx context.Context, ownerID int64, filter Filter) ([]Document, error) {
	docs, err := s.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, apperrors.Wrap("internal", "failed to list documents", err)
	}
	return docs, nil
}

func (s *service) Status(ctx context.Context, ownerID int64, id uuid.UUID) (Document, error) {
	return s.Get(ctx, ownerID, id)
}

func (s *service) SignedURL(ctx context.Context, ownerID int64, id uuid.UUID) (string, error) {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if doc.Source != SourceUpload {
		return "", apperrors.Wrap("validation", "document has no stored blob", nil)
	}
	key := blobKey(ownerID, doc.ContentHash, doc.Title)
	url, err := s.storage.SignedURL(ctx, key)
	if err != nil {
		return "", apperrors.Wrap("transient_upstream", "failed to sign url", err)
	}
	return url, nil
}

func (s *service) Delete(ctx context.Context, ownerID int64, id uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return apperrors.Wrap("internal", "failed to delete chunks", err)
	}
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return apperrors.Wrap("internal", "failed to delete document", err)
	}
	return nil
}

func (s *service) DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error {
	if err := s.chunks.DeleteByCollection(ctx, collectionID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.repo.DeleteByCollection(ctx, collectionID); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Cancel transitions a running or queued document to cancelled. A document
// already in a terminal state cannot be cancelled.
func (s *service) Cancel(ctx context.Context, ownerID int64, id uuid.UUID) error {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	switch doc.Status {
	case StatusQueued, StatusRunning:
	default:
		return apperrors.Wrap("validation", "document is not cancellable in its current state", nil)
	}
	ok, err := s.repo.CompareAndSwapStatus(ctx, id, doc.Status, StatusCancelled, nil)
	if err != nil {
		return apperrors.Wrap("internal", "failed to cancel document", err)
	}
	if !ok {
		return apperrors.Wrap("validation", "document state changed concurrently", nil)
	}
	return nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func blobKey(ownerID int64, hash, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("blobs/%d/%s%s", ownerID, hash, ext)
}
