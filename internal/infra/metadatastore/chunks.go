package metadatastore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
)

// ChunkRepository stores embedded chunks and serves both the ingestion
// domain's writes and the retrieval domain's semantic/lexical search,
// adapted from PostgresChunkRepository.InsertBatch/SearchSimilar.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository constructs the repository.
func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// Complete persists one ingestion attempt's output atomically: prior chunks
// for the document are deleted, the new chunks are inserted, and the
// document row is updated to completed with its chunk/token counts and
// canonical content hash, all inside a single transaction. A retry after a
// partial persist can never duplicate chunks or leave a half-written
// document behind.
func (r *ChunkRepository) Complete(ctx context.Context, doc ingestion.Document, chunks []ingestion.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ingestion_chunks WHERE document_id = $1`, doc.ID); err != nil {
		return err
	}

	if len(chunks) > 0 {
		batch := &pgx.Batch{}
		for _, c := range chunks {
			batch.Queue(`
				INSERT INTO ingestion_chunks (id, document_id, collection_id, owner_id, chunk_index, content, token_count, embedding, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, c.ID, c.DocumentID, c.CollectionID, c.OwnerID, c.ChunkIndex, c.Content, c.TokenCount, pgvector.NewVector(c.Embedding), c.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	totalTokens := 0
	for _, c := range chunks {
		totalTokens += c.TokenCount
	}
	processing, err := json.Marshal(doc.Processing)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE ingestion_documents
		SET status = $1, content_hash = $2, chunk_count = $3, total_tokens = $4, processing = processing || $5::jsonb, updated_at = NOW()
		WHERE id = $6 AND status = $7
	`, ingestion.StatusCompleted, doc.ContentHash, len(chunks), totalTokens, processing, doc.ID, ingestion.StatusRunning)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("document %s was not in running state at completion", doc.ID)
	}

	return tx.Commit(ctx)
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ingestion_chunks WHERE document_id = $1`, documentID)
	return err
}

func (r *ChunkRepository) DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ingestion_chunks WHERE collection_id = $1`, collectionID)
	return err
}

// SearchSemantic runs a pgvector cosine-distance ANN query, generalized
// from PostgresChunkRepository.SearchSimilar with collection scoping and a
// metadata-filtered document-id whitelist. Uses the <=> (cosine distance)
// operator so score = 1 - distance falls in (0,1].
func (r *ChunkRepository) SearchSemantic(ctx context.Context, q retrieval.Query, embedding []float32, limit int) ([]retrieval.Candidate, error) {
	query := `
		SELECT c.id, c.document_id, d.title, c.chunk_index, c.content,
			(1.0 - (c.embedding <=> $1)) AS score
		FROM ingestion_chunks c
		JOIN ingestion_documents d ON d.id = c.document_id
		WHERE c.owner_id = $2 AND c.collection_id = $3 AND d.status = 'completed'
	`
	args := []any{pgvector.NewVector(embedding), q.OwnerID, q.CollectionID}
	pos := 4
	if len(q.DocumentIDs) > 0 {
		query += ` AND c.document_id = ANY($` + strconv.Itoa(pos) + `)`
		args = append(args, q.DocumentIDs)
		pos++
	}
	query += ` ORDER BY (c.embedding <=> $1) ASC LIMIT $` + strconv.Itoa(pos)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// SearchLexical runs a Postgres full-text query (tsvector/ts_rank_cd),
// rejecting raw tsquery control operators before the query is built.
func (r *ChunkRepository) SearchLexical(ctx context.Context, q retrieval.Query, rawQuery string, limit int) ([]retrieval.Candidate, error) {
	sanitized := sanitizeLexicalQuery(rawQuery)
	if sanitized == "" {
		return nil, nil
	}
	query := `
		SELECT c.id, c.document_id, d.title, c.chunk_index, c.content,
			ts_rank_cd(to_tsvector('english', c.content), plainto_tsquery('english', $1)) AS score
		FROM ingestion_chunks c
		JOIN ingestion_documents d ON d.id = c.document_id
		WHERE c.owner_id = $2 AND c.collection_id = $3 AND d.status = 'completed'
			AND to_tsvector('english', c.content) @@ plainto_tsquery('english', $1)
	`
	args := []any{sanitized, q.OwnerID, q.CollectionID}
	pos := 4
	if len(q.DocumentIDs) > 0 {
		query += ` AND c.document_id = ANY($` + strconv.Itoa(pos) + `)`
		args = append(args, q.DocumentIDs)
		pos++
	}
	query += ` ORDER BY score DESC LIMIT $` + strconv.Itoa(pos)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func scanCandidates(rows pgx.Rows) ([]retrieval.Candidate, error) {
	var out []retrieval.Candidate
	for rows.Next() {
		var c retrieval.Candidate
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.DocumentTitle, &c.ChunkIndex, &c.Content, &c.Score); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// sanitizeLexicalQuery strips tsquery control operators so a caller cannot
// inject arbitrary boolean logic into plainto_tsquery's argument.
func sanitizeLexicalQuery(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch r {
		case '&', '|', '!', ':', '(', ')', '<', '>':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	_ ingestion.ChunkRepository = (*ChunkRepository)(nil)
	_ ingestion.Completer       = (*ChunkRepository)(nil)
)
