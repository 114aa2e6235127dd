package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/auth"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/chat"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
	"github.com/raghavpatnecha/mnemosyne/internal/infra/config"
	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
)

const defaultAuthToken = "valid-token"

var defaultPrincipal = auth.Principal{
	UserID: 1,
	KeyID:  uuid.New(),
	Scopes: []string{"documents:write", "documents:read", "retrievals:read", "chat:write"},
}

func TestRouter_RegisterSuccess(t *testing.T) {
	authSvc := &stubAuth{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResponse, error) {
			require.Equal(t, "new@example.com", req.Email)
			return auth.RegisterResponse{User: auth.UserView{ID: 1, Email: req.Email}, APIKey: "mn_raw"}, nil
		},
	}
	server := newRouterUnderTest(t, testServices{auth: authSvc})

	recorder := performJSONRequest(http.MethodPost, "/api/v1/auth/register", `{"email":"new@example.com","password":"password123"}`, server, withoutAuth())
	require.Equal(t, http.StatusCreated, recorder.Code)

	var resp auth.RegisterResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, "mn_raw", resp.APIKey)
}

func TestRouter_RegisterDuplicateEmail(t *testing.T) {
	authSvc := &stubAuth{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResponse, error) {
			return auth.RegisterResponse{}, apperrors.Wrap("duplicate", "email already registered", nil)
		},
	}
	server := newRouterUnderTest(t, testServices{auth: authSvc})

	recorder := performJSONRequest(http.MethodPost, "/api/v1/auth/register", `{"email":"dup@example.com","password":"password123"}`, server, withoutAuth())
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "duplicate", errBody["error"]["code"])
}

func TestRouter_ProtectedRequiresAuth(t *testing.T) {
	server := newRouterUnderTest(t, testServices{})

	recorder := performJSONRequest(http.MethodGet, "/api/v1/collections", "", server, withoutAuth())
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRouter_ProtectedRejectsMissingScope(t *testing.T) {
	server := newRouterUnderTest(t, testServices{})

	recorder := performJSONRequest(http.MethodGet, "/api/v1/documents?collection_id="+uuid.New().String(), "", server, withAuthToken("no-scope-token"))
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRouter_CreateCollectionSuccess(t *testing.T) {
	collectionID := uuid.New()
	svc := &stubCollection{
		createFn: func(ctx context.Context, ownerID int64, req collection.CreateRequest) (collection.Collection, error) {
			require.Equal(t, int64(1), ownerID)
			require.Equal(t, "docs", req.Name)
			return collection.Collection{ID: collectionID, OwnerID: ownerID, Name: req.Name}, nil
		},
	}
	server := newRouterUnderTest(t, testServices{collection: svc})

	recorder := performJSONRequest(http.MethodPost, "/api/v1/collections", `{"name":"docs"}`, server)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var got collection.Collection
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, collectionID, got.ID)
}

func TestRouter_GetCollectionNotFound(t *testing.T) {
	svc := &stubCollection{
		getFn: func(ctx context.Context, ownerID int64, id uuid.UUID) (collection.Collection, error) {
			return collection.Collection{}, apperrors.Wrap("not_found", "collection not found", nil)
		},
	}
	server := newRouterUnderTest(t, testServices{collection: svc})

	recorder := performJSONRequest(http.MethodGet, "/api/v1/collections/"+uuid.New().String(), "", server)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRouter_DeleteCollectionSuccess(t *testing.T) {
	svc := &stubCollection{
		deleteFn: func(ctx context.Context, ownerID int64, id uuid.UUID) error { return nil },
	}
	server := newRouterUnderTest(t, testServices{collection: svc})

	recorder := performJSONRequest(http.MethodDelete, "/api/v1/collections/"+uuid.New().String(), "", server)
	require.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRouter_ListDocumentsRequiresCollectionID(t *testing.T) {
	server := newRouterUnderTest(t, testServices{})

	recorder := performJSONRequest(http.MethodGet, "/api/v1/documents", "", server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_ListDocumentsSuccess(t *testing.T) {
	docID := uuid.New()
	collectionID := uuid.New()
	svc := &stubIngestion{
		listFn: func(ctx context.Context, ownerID int64, filter ingestion.Filter) ([]ingestion.Document, error) {
			require.Equal(t, collectionID, *filter.CollectionID)
			return []ingestion.Document{{ID: docID, CollectionID: collectionID, Status: ingestion.StatusCompleted}}, nil
		},
	}
	server := newRouterUnderTest(t, testServices{ingestion: svc})

	recorder := performJSONRequest(http.MethodGet, "/api/v1/documents?collection_id="+collectionID.String(), "", server)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Items []ingestion.Document `json:"items"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, docID, body.Items[0].ID)
}

func TestRouter_UploadDocumentViaURL(t *testing.T) {
	docID := uuid.New()
	collectionID := uuid.New()
	svc := &stubIngestion{
		submitURLFn: func(ctx context.Context, ownerID int64, req ingestion.URLRequest) (ingestion.Document, error) {
			require.Equal(t, "https://example.com/a.txt", req.URL)
			return ingestion.Document{ID: docID, CollectionID: collectionID, Status: ingestion.StatusQueued}, nil
		},
	}
	server := newRouterUnderTest(t, testServices{ingestion: svc})

	body := `{"collectionId":"` + collectionID.String() + `","url":"https://example.com/a.txt"}`
	recorder := performJSONRequest(http.MethodPost, "/api/v1/documents", body, server)
	require.Equal(t, http.StatusAccepted, recorder.Code)

	var got ingestion.Document
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, docID, got.ID)
}

func TestRouter_PatchDocumentCancel(t *testing.T) {
	docID := uuid.New()
	svc := &stubIngestion{
		cancelFn: func(ctx context.Context, ownerID int64, id uuid.UUID) error {
			require.Equal(t, docID, id)
			return nil
		},
		getFn: func(ctx context.Context, ownerID int64, id uuid.UUID) (ingestion.Document, error) {
			return ingestion.Document{ID: docID, Status: ingestion.StatusCancelled}, nil
		},
	}
	server := newRouterUnderTest(t, testServices{ingestion: svc})

	recorder := performJSONRequest(http.MethodPatch, "/api/v1/documents/"+docID.String(), `{"status":"cancelled"}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_PatchDocumentRejectsUnsupportedField(t *testing.T) {
	server := newRouterUnderTest(t, testServices{ingestion: &stubIngestion{}})

	recorder := performJSONRequest(http.MethodPatch, "/api/v1/documents/"+uuid.New().String(), `{"status":"completed"}`, server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_RetrieveSuccess(t *testing.T) {
	collectionID := uuid.New()
	svc := &stubRetrieval{
		retrieveFn: func(ctx context.Context, q retrieval.Query) (retrieval.Result, error) {
			require.Equal(t, "self-attention", q.Text)
			return retrieval.Result{Candidates: []retrieval.Candidate{{Content: "chunk", Score: 0.9}}, Mode: retrieval.ModeSemantic}, nil
		},
	}
	server := newRouterUnderTest(t, testServices{retrieval: svc})

	body := `{"collectionId":"` + collectionID.String() + `","query":"self-attention","mode":"semantic","topK":1}`
	recorder := performJSONRequest(http.MethodPost, "/api/v1/retrievals", body, server)
	require.Equal(t, http.StatusOK, recorder.Code)

	var got retrieval.Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Len(t, got.Candidates, 1)
}

func TestRouter_ChatStreamSuccess(t *testing.T) {
	collectionID := uuid.New()
	svc := &stubChat{
		turnFn: func(ctx context.Context, req chat.TurnRequest) (<-chan chat.Event, error) {
			require.Equal(t, "hello", req.Message)
			out := make(chan chat.Event, 2)
			out <- chat.Event{Type: chat.EventDelta, Delta: "hi"}
			out <- chat.Event{Type: chat.EventDone, Message: chat.Message{Content: "hi"}}
			close(out)
			return out, nil
		},
	}
	server := newRouterUnderTest(t, testServices{chat: svc})

	body := `{"collectionId":"` + collectionID.String() + `","message":"hello"}`
	recorder := performJSONRequest(http.MethodPost, "/api/v1/chat", body, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	require.Contains(t, recorder.Body.String(), `"Type":"delta"`)
	require.Contains(t, recorder.Body.String(), `"Type":"done"`)
}

func TestRouter_ListChatSessions(t *testing.T) {
	svc := &stubChat{
		listSessionsFn: func(ctx context.Context, f chat.ListFilter) ([]chat.Session, error) {
			return []chat.Session{{ID: uuid.New(), OwnerID: f.OwnerID}}, nil
		},
	}
	server := newRouterUnderTest(t, testServices{chat: svc})

	recorder := performJSONRequest(http.MethodGet, "/api/v1/chat/sessions", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, testServices{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/retrievals", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Equal(t, 204, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RetryOnTransientFailure(t *testing.T) {
	var calls int
	svc := &stubRetrieval{
		retrieveFn: func(ctx context.Context, q retrieval.Query) (retrieval.Result, error) {
			calls++
			if calls == 1 {
				return retrieval.Result{}, apperrors.Wrap("internal", "temporary failure", errors.New("boom"))
			}
			return retrieval.Result{Mode: retrieval.ModeSemantic}, nil
		},
	}
	server := newRouterUnderTest(t, testServices{retrieval: svc}, func(cfg *config.Config) {
		cfg.HTTP.Retry.Enabled = true
		cfg.HTTP.Retry.MaxAttempts = 2
		cfg.HTTP.Retry.BaseBackoff = 0
	})

	body := `{"collectionId":"` + uuid.New().String() + `","query":"q"}`
	recorder := performJSONRequest(http.MethodPost, "/api/v1/retrievals", body, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 2, calls)
}

func TestRouter_RateLimitExceeded(t *testing.T) {
	server := newRouterUnderTest(t, testServices{collection: &stubCollection{
		listFn: func(ctx context.Context, ownerID int64) ([]collection.Collection, error) { return nil, nil },
	}}, func(cfg *config.Config) {
		cfg.HTTP.RateLimit.Enabled = true
		cfg.HTTP.RateLimit.RequestsPerMinute = 1
		cfg.HTTP.RateLimit.Burst = 1
	})

	first := performJSONRequest(http.MethodGet, "/api/v1/collections", "", server)
	require.Equal(t, http.StatusOK, first.Code)

	second := performJSONRequest(http.MethodGet, "/api/v1/collections", "", server)
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	errBody := decodeErrorBody(t, second.Body.Bytes())
	require.Equal(t, "rate_limit_exceeded", errBody["error"]["code"])
}

func TestIPRateLimiterBasic(t *testing.T) {
	limiter := newIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	require.True(t, limiter.allow("ip"))
	require.False(t, limiter.allow("ip"))
}

func TestRateLimitMiddlewareBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(errorHandlingMiddleware(newTestLogger()), rateLimitMiddleware(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		Burst:             1,
	}, newTestLogger()))
	router.POST("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	rec1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"a"}`))
	req1.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"a"}`))
	req2.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func performJSONRequest(method, path, body string, server *http.Server, opts ...requestOption) *httptest.ResponseRecorder {
	var payload io.Reader
	if body != "" {
		payload = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	req.RemoteAddr = "203.0.113.1:1234"
	req.Header.Set("Authorization", "Bearer "+defaultAuthToken)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

type requestOption func(req *http.Request)

func withoutAuth() requestOption {
	return func(req *http.Request) {
		req.Header.Del("Authorization")
	}
}

func withAuthToken(token string) requestOption {
	return func(req *http.Request) {
		if token == "" {
			req.Header.Del("Authorization")
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

type testServices struct {
	auth       auth.Service
	collection collection.Service
	ingestion  ingestion.Service
	retrieval  retrieval.Service
	chat       chat.Service
}

func newRouterUnderTest(t *testing.T, svcs testServices, overrides ...func(*config.Config)) *http.Server {
	t.Helper()
	if svcs.auth == nil {
		svcs.auth = &stubAuth{
			authenticateFn: func(ctx context.Context, rawKey string) (auth.Principal, error) {
				if rawKey == defaultAuthToken {
					return defaultPrincipal, nil
				}
				if rawKey == "no-scope-token" {
					return auth.Principal{UserID: 2}, nil
				}
				return auth.Principal{}, apperrors.Wrap("authentication", "invalid api key", nil)
			},
		}
	}
	if svcs.collection == nil {
		svcs.collection = &stubCollection{}
	}
	if svcs.ingestion == nil {
		svcs.ingestion = &stubIngestion{}
	}
	if svcs.retrieval == nil {
		svcs.retrieval = &stubRetrieval{}
	}
	if svcs.chat == nil {
		svcs.chat = &stubChat{}
	}

	handler := NewHandler(svcs.auth, svcs.collection, svcs.ingestion, svcs.retrieval, svcs.chat, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			AllowedOrigins: []string{"*"},
			RateLimit: config.RateLimitConfig{
				Enabled: false,
			},
			Retry: config.RetryConfig{
				Enabled: false,
			},
		},
	}
	for _, override := range overrides {
		override(cfg)
	}
	return NewRouter(cfg, handler)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

type stubAuth struct {
	registerFn     func(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResponse, error)
	authenticateFn func(ctx context.Context, rawKey string) (auth.Principal, error)
	issueKeyFn     func(ctx context.Context, userID int64, scopes []string) (string, auth.APIKey, error)
	revokeKeyFn    func(ctx context.Context, userID int64, keyID uuid.UUID) error
	profileFn      func(ctx context.Context, userID int64) (auth.UserView, error)
}

func (s *stubAuth) Register(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResponse, error) {
	return s.registerFn(ctx, req)
}

func (s *stubAuth) Authenticate(ctx context.Context, rawKey string) (auth.Principal, error) {
	return s.authenticateFn(ctx, rawKey)
}

func (s *stubAuth) IssueKey(ctx context.Context, userID int64, scopes []string) (string, auth.APIKey, error) {
	return s.issueKeyFn(ctx, userID, scopes)
}

func (s *stubAuth) RevokeKey(ctx context.Context, userID int64, keyID uuid.UUID) error {
	return s.revokeKeyFn(ctx, userID, keyID)
}

func (s *stubAuth) Profile(ctx context.Context, userID int64) (auth.UserView, error) {
	return s.profileFn(ctx, userID)
}

type stubCollection struct {
	createFn func(ctx context.Context, ownerID int64, req collection.CreateRequest) (collection.Collection, error)
	getFn    func(ctx context.Context, ownerID int64, id uuid.UUID) (collection.Collection, error)
	listFn   func(ctx context.Context, ownerID int64) ([]collection.Collection, error)
	updateFn func(ctx context.Context, ownerID int64, id uuid.UUID, req collection.UpdateRequest) (collection.Collection, error)
	deleteFn func(ctx context.Context, ownerID int64, id uuid.UUID) error
}

func (s *stubCollection) Create(ctx context.Context, ownerID int64, req collection.CreateRequest) (collection.Collection, error) {
	return s.createFn(ctx, ownerID, req)
}

func (s *stubCollection) Get(ctx context.Context, ownerID int64, id uuid.UUID) (collection.Collection, error) {
	return s.getFn(ctx, ownerID, id)
}

func (s *stubCollection) List(ctx context.Context, ownerID int64) ([]collection.Collection, error) {
	return s.listFn(ctx, ownerID)
}

func (s *stubCollection) Update(ctx context.Context, ownerID int64, id uuid.UUID, req collection.UpdateRequest) (collection.Collection, error) {
	return s.updateFn(ctx, ownerID, id, req)
}

func (s *stubCollection) Delete(ctx context.Context, ownerID int64, id uuid.UUID) error {
	return s.deleteFn(ctx, ownerID, id)
}

type stubIngestion struct {
	uploadFn             func(ctx context.Context, ownerID int64, req ingestion.UploadRequest) (ingestion.Document, error)
	submitURLFn          func(ctx context.Context, ownerID int64, req ingestion.URLRequest) (ingestion.Document, error)
	getFn                func(ctx context.Context, ownerID int64, id uuid.UUID) (ingestion.Document, error)
	listFn               func(ctx context.Context, ownerID int64, filter ingestion.Filter) ([]ingestion.Document, error)
	statusFn             func(ctx context.Context, ownerID int64, id uuid.UUID) (ingestion.Document, error)
	signedURLFn          func(ctx context.Context, ownerID int64, id uuid.UUID) (string, error)
	deleteFn             func(ctx context.Context, ownerID int64, id uuid.UUID) error
	cancelFn             func(ctx context.Context, ownerID int64, id uuid.UUID) error
	deleteByCollectionFn func(ctx context.Context, collectionID uuid.UUID) error
}

func (s *stubIngestion) Upload(ctx context.Context, ownerID int64, req ingestion.UploadRequest) (ingestion.Document, error) {
	return s.uploadFn(ctx, ownerID, req)
}

func (s *stubIngestion) SubmitURL(ctx context.Context, ownerID int64, req ingestion.URLRequest) (ingestion.Document, error) {
	return s.submitURLFn(ctx, ownerID, req)
}

func (s *stubIngestion) Get(ctx context.Context, ownerID int64, id uuid.UUID) (ingestion.Document, error) {
	return s.getFn(ctx, ownerID, id)
}

func (s *stubIngestion) List(ctx context.Context, ownerID int64, filter ingestion.Filter) ([]ingestion.Document, error) {
	return s.listFn(ctx, ownerID, filter)
}

func (s *stubIngestion) Status(ctx context.Context, ownerID int64, id uuid.UUID) (ingestion.Document, error) {
	return s.statusFn(ctx, ownerID, id)
}

func (s *stubIngestion) SignedURL(ctx context.Context, ownerID int64, id uuid.UUID) (string, error) {
	return s.signedURLFn(ctx, ownerID, id)
}

func (s *stubIngestion) Delete(ctx context.Context, ownerID int64, id uuid.UUID) error {
	return s.deleteFn(ctx, ownerID, id)
}

func (s *stubIngestion) Cancel(ctx context.Context, ownerID int64, id uuid.UUID) error {
	return s.cancelFn(ctx, ownerID, id)
}

func (s *stubIngestion) DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error {
	return s.deleteByCollectionFn(ctx, collectionID)
}

type stubRetrieval struct {
	retrieveFn func(ctx context.Context, q retrieval.Query) (retrieval.Result, error)
}

func (s *stubRetrieval) Retrieve(ctx context.Context, q retrieval.Query) (retrieval.Result, error) {
	return s.retrieveFn(ctx, q)
}

type stubChat struct {
	turnFn           func(ctx context.Context, req chat.TurnRequest) (<-chan chat.Event, error)
	listSessionsFn   func(ctx context.Context, f chat.ListFilter) ([]chat.Session, error)
	listMessagesFn   func(ctx context.Context, ownerID int64, sessionID uuid.UUID) ([]chat.Message, error)
	deleteSessionFn  func(ctx context.Context, ownerID int64, sessionID uuid.UUID) error
}

func (s *stubChat) Turn(ctx context.Context, req chat.TurnRequest) (<-chan chat.Event, error) {
	return s.turnFn(ctx, req)
}

func (s *stubChat) ListSessions(ctx context.Context, f chat.ListFilter) ([]chat.Session, error) {
	return s.listSessionsFn(ctx, f)
}

func (s *stubChat) ListMessages(ctx context.Context, ownerID int64, sessionID uuid.UUID) ([]chat.Message, error) {
	return s.listMessagesFn(ctx, ownerID, sessionID)
}

func (s *stubChat) DeleteSession(ctx context.Context, ownerID int64, sessionID uuid.UUID) error {
	return s.deleteSessionFn(ctx, ownerID, sessionID)
}
