package metadatastore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/chat"
)

// SessionRepository persists chat sessions.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s chat.Session) (chat.Session, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_sessions (id, owner_id, collection_id, title, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, s.ID, s.OwnerID, s.CollectionID, s.Title, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return chat.Session{}, err
	}
	return s, nil
}

func (r *SessionRepository) Get(ctx context.Context, ownerID int64, id uuid.UUID) (chat.Session, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, collection_id, title, created_at, updated_at
		FROM chat_sessions WHERE id = $1 AND owner_id = $2 LIMIT 1
	`, id, ownerID)
	s, err := scanSession(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return chat.Session{}, false, nil
		}
		return chat.Session{}, false, err
	}
	return s, true, nil
}

func (r *SessionRepository) List(ctx context.Context, f chat.ListFilter) ([]chat.Session, error) {
	query := `SELECT id, owner_id, collection_id, title, created_at, updated_at FROM chat_sessions WHERE owner_id = $1`
	args := []any{f.OwnerID}
	if f.CollectionID != uuid.Nil {
		query += ` AND collection_id = $2`
		args = append(args, f.CollectionID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *SessionRepository) Delete(ctx context.Context, ownerID int64, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return err
}

func (r *SessionRepository) DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE collection_id = $1`, collectionID)
	return err
}

func scanSession(row scannable) (chat.Session, error) {
	var s chat.Session
	if err := row.Scan(&s.ID, &s.OwnerID, &s.CollectionID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return chat.Session{}, err
	}
	return s, nil
}

var _ chat.SessionRepository = (*SessionRepository)(nil)

// MessageRepository persists chat messages.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m chat.Message) (chat.Message, error) {
	sources, err := json.Marshal(m.Sources)
	if err != nil {
		return chat.Message{}, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, sources, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		RETURNING created_at
	`, m.ID, m.SessionID, m.Role, m.Content, sources)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, role, content, sources, created_at
		FROM chat_messages WHERE session_id = $1 ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var (
			m          chat.Message
			sourcesRaw []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &sourcesRaw, &m.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(sourcesRaw, &m.Sources)
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ chat.MessageRepository = (*MessageRepository)(nil)
