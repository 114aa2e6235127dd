package auth

import (
	"time"

	"github.com/google/uuid"
)

// Config drives authentication behavior.
type Config struct {
	// KeyPepper is mixed into every API key HMAC. Never persisted.
	KeyPepper string
	// KeyPrefixLen is the number of leading raw-key characters stored in
	// plaintext to support lookup and audit logs.
	KeyPrefixLen int
	// DefaultScopes are granted to a key issued at registration.
	DefaultScopes []string
}

// User represents a persisted account: the tenant/owner principal.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// APIKey is the bearer credential owned by a user. The raw key is never
// persisted after issuance; only KeyHash (salted, HMAC-derived) and
// KeyPrefix (plaintext, for lookup/audit) survive.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	UserID     int64      `json:"userId"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"keyPrefix"`
	Scopes     []string   `json:"scopes"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse returns the freshly created user plus the one-time raw
// API key. After this response, the raw key exists nowhere server-side.
type RegisterResponse struct {
	User   UserView `json:"user"`
	APIKey string   `json:"apiKey"`
}

// UserView trims sensitive fields.
type UserView struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal is the authenticated caller attached to the request context by
// the API-key bearer middleware.
type Principal struct {
	UserID int64
	KeyID  uuid.UUID
	Scopes []string
}

// HasScope reports whether the principal carries the named capability tag.
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
