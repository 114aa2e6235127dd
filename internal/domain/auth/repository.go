package auth

import (
	"context"

	"github.com/google/uuid"
)

// Repository abstracts user and API-key persistence.
type Repository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, bool, error)
	GetUserByID(ctx context.Context, id int64) (User, bool, error)

	CreateAPIKey(ctx context.Context, key APIKey) (APIKey, error)
	FindAPIKeysByPrefix(ctx context.Context, prefix string) ([]APIKey, error)
	TouchAPIKeyLastUsed(ctx context.Context, keyID uuid.UUID) error
	RevokeAPIKey(ctx context.Context, keyID uuid.UUID, userID int64) error
}
