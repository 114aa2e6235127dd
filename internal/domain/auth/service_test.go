package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestService_RegisterAndAuthenticate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(Config{
		KeyPepper:     "test-pepper",
		KeyPrefixLen:  8,
		DefaultScopes: []string{"ingest", "retrieve", "chat"},
	}, repo, newTestLogger())

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "User@Example.com",
		Password: "pass1234",
	})
	require.NoError(t, err)
	require.Equal(t, "user@example.com", resp.User.Email)
	require.NotZero(t, resp.User.ID)
	require.NotEmpty(t, resp.APIKey)

	principal, err := svc.Authenticate(context.Background(), resp.APIKey)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, principal.UserID)
	require.True(t, principal.HasScope("chat"))

	_, err = svc.Authenticate(context.Background(), "mn_not-a-real-key")
	require.Error(t, err)
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(Config{KeyPepper: "test-pepper"}, repo, newTestLogger())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "user@example.com",
		Password: "pass1234",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Email:    "user@example.com",
		Password: "pass12345",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type memoryRepo struct {
	users   map[int64]User
	keys    map[uuid.UUID]APIKey
	userSeq int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User), keys: make(map[uuid.UUID]APIKey)}
}

func (m *memoryRepo) CreateUser(_ context.Context, email, passwordHash string) (User, error) {
	m.userSeq++
	user := User{ID: m.userSeq, Email: email, PasswordHash: passwordHash}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetUserByEmail(_ context.Context, email string) (User, bool, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryRepo) GetUserByID(_ context.Context, id int64) (User, bool, error) {
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *memoryRepo) CreateAPIKey(_ context.Context, key APIKey) (APIKey, error) {
	m.keys[key.ID] = key
	return key, nil
}

func (m *memoryRepo) FindAPIKeysByPrefix(_ context.Context, prefix string) ([]APIKey, error) {
	var out []APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memoryRepo) TouchAPIKeyLastUsed(_ context.Context, keyID uuid.UUID) error {
	return nil
}

func (m *memoryRepo) RevokeAPIKey(_ context.Context, keyID uuid.UUID, userID int64) error {
	delete(m.keys, keyID)
	return nil
}
