// Entity/edge extraction and querying for the optional graph retrieval
// mode. Extraction is a lightweight capitalized-noun-phrase heuristic
// rather than an NLP model, run once at ingestion time; querying walks
// the resulting entity/edge tables at retrieval time.
package metadatastore

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
)

// GraphStore extracts and stores entities/edges at ingestion time, and
// answers graph-mode retrieval queries.
type GraphStore struct {
	pool *pgxpool.Pool
}

// NewGraphStore constructs the graph store.
func NewGraphStore(pool *pgxpool.Pool) *GraphStore {
	return &GraphStore{pool: pool}
}

var capitalizedPhrase = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*){0,3})\b`)

// ExtractEntities pulls capitalized noun phrases out of chunk content as a
// cheap proxy for named entities.
func ExtractEntities(content string) []string {
	matches := capitalizedPhrase.FindAllString(content, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// IndexChunk persists the entities found in one chunk, and an edge between
// every pair of entities that co-occur within it.
func (g *GraphStore) IndexChunk(ctx context.Context, collectionID, chunkID uuid.UUID, content string) error {
	entities := ExtractEntities(content)
	if len(entities) == 0 {
		return nil
	}
	batch := make([]struct {
		id   uuid.UUID
		name string
	}, 0, len(entities))
	for _, name := range entities {
		id := uuid.New()
		batch = append(batch, struct {
			id   uuid.UUID
			name string
		}{id, name})
		if _, err := g.pool.Exec(ctx, `
			INSERT INTO ingestion_entities (id, collection_id, chunk_id, name)
			VALUES ($1, $2, $3, $4)
		`, id, collectionID, chunkID, name); err != nil {
			return err
		}
	}
	for i := 0; i < len(batch); i++ {
		for j := i + 1; j < len(batch); j++ {
			if _, err := g.pool.Exec(ctx, `
				INSERT INTO ingestion_entity_edges (collection_id, entity_a, entity_b)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING
			`, collectionID, batch[i].name, batch[j].name); err != nil {
				return err
			}
		}
	}
	return nil
}

// SearchGraph finds chunks whose entities co-occur with entities mentioned
// in the query text, ranked by co-occurrence count.
func (g *GraphStore) SearchGraph(ctx context.Context, q retrieval.Query, limit int) ([]retrieval.Candidate, error) {
	queryEntities := ExtractEntities(q.Text)
	if len(queryEntities) == 0 {
		return nil, nil
	}

	rows, err := g.pool.Query(ctx, `
		SELECT c.id, c.document_id, d.title, c.chunk_index, c.content, COUNT(*) AS hits
		FROM ingestion_entities e
		JOIN ingestion_chunks c ON c.id = e.chunk_id
		JOIN ingestion_documents d ON d.id = c.document_id
		WHERE e.collection_id = $1 AND d.owner_id = $2 AND e.name = ANY($3) AND d.status = 'completed'
		GROUP BY c.id, c.document_id, d.title, c.chunk_index, c.content
		ORDER BY hits DESC
		LIMIT $4
	`, q.CollectionID, q.OwnerID, queryEntities, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []retrieval.Candidate
	for rows.Next() {
		var (
			c    retrieval.Candidate
			hits int
		)
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.DocumentTitle, &c.ChunkIndex, &c.Content, &hits); err != nil {
			return nil, err
		}
		c.Score = float64(hits)
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ retrieval.GraphSearch = (*GraphStore)(nil)
