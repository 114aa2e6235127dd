// Package metadatastore implements the Postgres-backed metadata store:
// collections, documents with their ingestion state machine, chunks, and
// the entity graph, all scoped per tenant.
package metadatastore

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
)

// DocumentRepository persists ingestion documents in Postgres.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, doc ingestion.Document) (ingestion.Document, error) {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return ingestion.Document{}, err
	}
	processing, err := json.Marshal(doc.Processing)
	if err != nil {
		return ingestion.Document{}, err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO ingestion_documents
			(id, collection_id, owner_id, title, source, source_uri, content_hash, mime_type, size_bytes, status, attempt, chunk_count, total_tokens, metadata, processing, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, doc.ID, doc.CollectionID, doc.OwnerID, doc.Title, doc.Source, doc.SourceURI, doc.ContentHash, doc.MimeType, doc.SizeBytes, doc.Status, doc.Attempt, doc.ChunkCount, doc.TotalTokens, metadata, processing, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return ingestion.Document{}, err
	}
	return doc, nil
}

func (r *DocumentRepository) Get(ctx context.Context, id uuid.UUID, ownerID int64) (ingestion.Document, bool, error) {
	return r.scanOne(ctx, `
		SELECT id, collection_id, owner_id, title, source, source_uri, content_hash, mime_type, size_bytes, status, attempt, chunk_count, total_tokens, metadata, processing, created_at, updated_at
		FROM ingestion_documents WHERE id = $1 AND owner_id = $2 LIMIT 1
	`, id, ownerID)
}

func (r *DocumentRepository) GetAny(ctx context.Context, id uuid.UUID) (ingestion.Document, bool, error) {
	return r.scanOne(ctx, `
		SELECT id, collection_id, owner_id, title, source, source_uri, content_hash, mime_type, size_bytes, status, attempt, chunk_count, total_tokens, metadata, processing, created_at, updated_at
		FROM ingestion_documents WHERE id = $1 LIMIT 1
	`, id)
}

func (r *DocumentRepository) FindByContentHash(ctx context.Context, ownerID int64, collectionID uuid.UUID, hash string) (ingestion.Document, bool, error) {
	return r.scanOne(ctx, `
		SELECT id, collection_id, owner_id, title, source, source_uri, content_hash, mime_type, size_bytes, status, attempt, chunk_count, total_tokens, metadata, processing, created_at, updated_at
		FROM ingestion_documents WHERE owner_id = $1 AND collection_id = $2 AND content_hash = $3 LIMIT 1
	`, ownerID, collectionID, hash)
}

func (r *DocumentRepository) scanOne(ctx context.Context, query string, args ...any) (ingestion.Document, bool, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	doc, err := scanDocument(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ingestion.Document{}, false, nil
		}
		return ingestion.Document{}, false, err
	}
	return doc, true, nil
}

func (r *DocumentRepository) List(ctx context.Context, ownerID int64, filter ingestion.Filter) ([]ingestion.Document, error) {
	query := `
		SELECT id, collection_id, owner_id, title, source, source_uri, content_hash, mime_type, size_bytes, status, attempt, chunk_count, total_tokens, metadata, processing, created_at, updated_at
		FROM ingestion_documents WHERE owner_id = $1
	`
	args := []any{ownerID}
	pos := 2
	if filter.CollectionID != nil {
		query += ` AND collection_id = $` + strconv.Itoa(pos)
		args = append(args, *filter.CollectionID)
		pos++
	}
	if len(filter.Statuses) > 0 {
		query += ` AND status = ANY($` + strconv.Itoa(pos) + `)`
		args = append(args, filter.Statuses)
		pos++
	}
	if len(filter.DocumentIDs) > 0 {
		query += ` AND id = ANY($` + strconv.Itoa(pos) + `)`
		args = append(args, filter.DocumentIDs)
		pos++
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []ingestion.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Update(ctx context.Context, doc ingestion.Document) (ingestion.Document, error) {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return ingestion.Document{}, err
	}
	processing, err := json.Marshal(doc.Processing)
	if err != nil {
		return ingestion.Document{}, err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE ingestion_documents
		SET title = $1, metadata = $2, processing = $3, attempt = $4, updated_at = NOW()
		WHERE id = $5
	`, doc.Title, metadata, processing, doc.Attempt, doc.ID)
	return doc, err
}

// CompareAndSwapStatus is the only admissible concurrency primitive for
// advancing a document through the ingestion state machine: the UPDATE's
// WHERE clause pins both id and expected status, so a losing concurrent
// caller's statement affects zero rows instead of overwriting a winner.
func (r *DocumentRepository) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to ingestion.Status, info *ingestion.ProcessingInfo) (bool, error) {
	var tag pgx.CommandTag
	var err error
	if info != nil {
		processing, mErr := json.Marshal(info)
		if mErr != nil {
			return false, mErr
		}
		tag, err = r.pool.Exec(ctx, `
			UPDATE ingestion_documents
			SET status = $1, processing = processing || $2::jsonb, updated_at = NOW()
			WHERE id = $3 AND status = $4
		`, to, processing, id, from)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE ingestion_documents SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3
		`, to, id, from)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID, ownerID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ingestion_documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return err
}

func (r *DocumentRepository) DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ingestion_documents WHERE collection_id = $1`, collectionID)
	return err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (ingestion.Document, error) {
	var (
		doc          ingestion.Document
		sourceURI    *string
		metadataRaw  []byte
		processingRw []byte
	)
	if err := row.Scan(&doc.ID, &doc.CollectionID, &doc.OwnerID, &doc.Title, &doc.Source, &sourceURI, &doc.ContentHash, &doc.MimeType, &doc.SizeBytes, &doc.Status, &doc.Attempt, &doc.ChunkCount, &doc.TotalTokens, &metadataRaw, &processingRw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return ingestion.Document{}, err
	}
	if sourceURI != nil {
		doc.SourceURI = *sourceURI
	}
	_ = json.Unmarshal(metadataRaw, &doc.Metadata)
	_ = json.Unmarshal(processingRw, &doc.Processing)
	return doc, nil
}

var _ ingestion.Repository = (*DocumentRepository)(nil)
