package metadatastore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
)

// CollectionRepository persists collections in Postgres.
type CollectionRepository struct {
	pool *pgxpool.Pool
}

// NewCollectionRepository constructs the repository.
func NewCollectionRepository(pool *pgxpool.Pool) *CollectionRepository {
	return &CollectionRepository{pool: pool}
}

func (r *CollectionRepository) Create(ctx context.Context, c collection.Collection) (collection.Collection, error) {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return collection.Collection{}, err
	}
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return collection.Collection{}, err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO collections (id, owner_id, name, description, metadata, config, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, c.ID, c.OwnerID, c.Name, c.Description, metadata, cfg, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return collection.Collection{}, err
	}
	return c, nil
}

func (r *CollectionRepository) Get(ctx context.Context, id uuid.UUID, ownerID int64) (collection.Collection, bool, error) {
	return r.scanOne(ctx, `
		SELECT id, owner_id, name, description, metadata, config, created_at, updated_at
		FROM collections WHERE id = $1 AND owner_id = $2 LIMIT 1
	`, id, ownerID)
}

func (r *CollectionRepository) GetByName(ctx context.Context, ownerID int64, name string) (collection.Collection, bool, error) {
	return r.scanOne(ctx, `
		SELECT id, owner_id, name, description, metadata, config, created_at, updated_at
		FROM collections WHERE owner_id = $1 AND name = $2 LIMIT 1
	`, ownerID, name)
}

func (r *CollectionRepository) List(ctx context.Context, ownerID int64) ([]collection.Collection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, description, metadata, config, created_at, updated_at
		FROM collections WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []collection.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CollectionRepository) Update(ctx context.Context, c collection.Collection) (collection.Collection, error) {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return collection.Collection{}, err
	}
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return collection.Collection{}, err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE collections SET description = $1, metadata = $2, config = $3, updated_at = NOW()
		WHERE id = $4
	`, c.Description, metadata, cfg, c.ID)
	return c, err
}

func (r *CollectionRepository) Delete(ctx context.Context, id uuid.UUID, ownerID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return err
}

func (r *CollectionRepository) scanOne(ctx context.Context, query string, args ...any) (collection.Collection, bool, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	c, err := scanCollection(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return collection.Collection{}, false, nil
		}
		return collection.Collection{}, false, err
	}
	return c, true, nil
}

func scanCollection(row scannable) (collection.Collection, error) {
	var (
		c           collection.Collection
		metadataRaw []byte
		cfgRaw      []byte
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &metadataRaw, &cfgRaw, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return collection.Collection{}, err
	}
	_ = json.Unmarshal(metadataRaw, &c.Metadata)
	_ = json.Unmarshal(cfgRaw, &c.Config)
	return c, nil
}

var _ collection.Repository = (*CollectionRepository)(nil)
