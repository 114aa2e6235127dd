package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
)

// Service exposes authentication and API-key workflows.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error)
	Authenticate(ctx context.Context, rawKey string) (Principal, error)
	IssueKey(ctx context.Context, userID int64, scopes []string) (string, APIKey, error)
	RevokeKey(ctx context.Context, userID int64, keyID uuid.UUID) error
	Profile(ctx context.Context, userID int64) (UserView, error)
}

type service struct {
	cfg    Config
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg Config, repo Repository, logger *slog.Logger) Service {
	if cfg.KeyPrefixLen <= 0 {
		cfg.KeyPrefixLen = 8
	}
	return &service{
		cfg:    cfg,
		repo:   repo,
		logger: logger.With("component", "auth.service"),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, apperrors.Wrap("validation", "invalid email address", err)
	}
	if err := validatePassword(req.Password); err != nil {
		return RegisterResponse{}, apperrors.Wrap("validation", err.Error(), nil)
	}
	_, exists, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return RegisterResponse{}, apperrors.Wrap("internal", "failed to check user", err)
	}
	if exists {
		return RegisterResponse{}, apperrors.Wrap("duplicate", "email already registered", nil)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResponse{}, apperrors.Wrap("internal", "failed to hash password", err)
	}
	user, err := s.repo.CreateUser(ctx, email, string(hashed))
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return RegisterResponse{}, apperrors.Wrap("duplicate", "email already registered", err)
		}
		return RegisterResponse{}, apperrors.Wrap("internal", "failed to create user", err)
	}

	raw, key, err := s.IssueKey(ctx, user.ID, s.cfg.DefaultScopes)
	if err != nil {
		return RegisterResponse{}, err
	}
	_ = key

	return RegisterResponse{User: toView(user), APIKey: raw}, nil
}

// IssueKey mints a fresh bearer credential. The raw key is returned exactly
// once; only its hash and plaintext prefix are persisted.
func (s *service) IssueKey(ctx context.Context, userID int64, scopes []string) (string, APIKey, error) {
	raw, err := generateRawKey()
	if err != nil {
		return "", APIKey{}, apperrors.Wrap("internal", "failed to generate api key", err)
	}
	prefix := raw
	if len(prefix) > s.cfg.KeyPrefixLen {
		prefix = prefix[:s.cfg.KeyPrefixLen]
	}
	key := APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		KeyHash:   s.hashKey(raw),
		KeyPrefix: prefix,
		Scopes:    scopes,
	}
	created, err := s.repo.CreateAPIKey(ctx, key)
	if err != nil {
		return "", APIKey{}, apperrors.Wrap("internal", "failed to persist api key", err)
	}
	return raw, created, nil
}

func (s *service) RevokeKey(ctx context.Context, userID int64, keyID uuid.UUID) error {
	if err := s.repo.RevokeAPIKey(ctx, keyID, userID); err != nil {
		return apperrors.Wrap("internal", "failed to revoke api key", err)
	}
	return nil
}

// Authenticate resolves a raw bearer key into its owning principal. Lookup
// is prefix-narrowed, then confirmed with a constant-time hash comparison —
// the raw key is never logged, even on failure.
func (s *service) Authenticate(ctx context.Context, rawKey string) (Principal, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return Principal{}, apperrors.Wrap("authentication", "missing bearer token", nil)
	}
	prefix := rawKey
	if len(prefix) > s.cfg.KeyPrefixLen {
		prefix = prefix[:s.cfg.KeyPrefixLen]
	}
	candidates, err := s.repo.FindAPIKeysByPrefix(ctx, prefix)
	if err != nil {
		return Principal{}, apperrors.Wrap("internal", "failed to look up api key", err)
	}
	want := s.hashKey(rawKey)
	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate.KeyHash), []byte(want)) {
			go func(keyID uuid.UUID) {
				_ = s.repo.TouchAPIKeyLastUsed(context.WithoutCancel(ctx), keyID)
			}(candidate.ID)
			return Principal{UserID: candidate.UserID, KeyID: candidate.ID, Scopes: candidate.Scopes}, nil
		}
	}
	return Principal{}, apperrors.Wrap("authentication", "invalid api key", nil)
}

func (s *service) Profile(ctx context.Context, userID int64) (UserView, error) {
	user, found, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return UserView{}, apperrors.Wrap("internal", "failed to load profile", err)
	}
	if !found {
		return UserView{}, apperrors.Wrap("not_found", "user not found", nil)
	}
	return toView(user), nil
}

func (s *service) hashKey(raw string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.KeyPepper))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateRawKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "mn_" + hex.EncodeToString(buf), nil
}

func toView(user User) UserView {
	return UserView{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}
