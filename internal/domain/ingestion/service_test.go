package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
)

func TestService_UploadQueuesDocument(t *testing.T) {
	svc, repo, queue, _ := newTestService()

	doc, err := svc.Upload(context.Background(), 1, UploadRequest{
		CollectionID: uuid.New(),
		Filename:     "notes.txt",
		Content:      []byte("hello world"),
	})
	require.NoError(t, err)
	require.Equal(t, StatusQueued, doc.Status)
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, doc.ID, queue.enqueued[0].DocumentID)

	stored, found, err := repo.Get(context.Background(), doc.ID, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, StatusQueued, stored.Status)
}

func TestService_UploadRejectsEmptyFile(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Upload(context.Background(), 1, UploadRequest{CollectionID: uuid.New()})
	require.Error(t, err)
}

func TestService_UploadRejectsDuplicateContent(t *testing.T) {
	svc, _, _, _ := newTestService()
	collectionID := uuid.New()
	req := UploadRequest{CollectionID: collectionID, Filename: "a.txt", Content: []byte("same bytes")}

	first, err := svc.Upload(context.Background(), 1, req)
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), 1, req)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "duplicate_document"))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, first.ID.String(), appErr.Details["document_id"])
}

func TestService_SubmitURLQueuesDocument(t *testing.T) {
	svc, _, queue, _ := newTestService()
	doc, err := svc.SubmitURL(context.Background(), 1, URLRequest{CollectionID: uuid.New(), URL: "https://example.com/doc.pdf"})
	require.NoError(t, err)
	require.Equal(t, StatusQueued, doc.Status)
	require.Len(t, queue.enqueued, 1)
}

func TestService_CancelQueuedDocument(t *testing.T) {
	svc, _, _, _ := newTestService()
	doc, err := svc.SubmitURL(context.Background(), 1, URLRequest{CollectionID: uuid.New(), URL: "https://example.com/doc.pdf"})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), 1, doc.ID))

	updated, err := svc.Get(context.Background(), 1, doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, updated.Status)
}

func TestService_CancelRejectsTerminalDocument(t *testing.T) {
	svc, repo, _, _ := newTestService()
	doc, err := svc.SubmitURL(context.Background(), 1, URLRequest{CollectionID: uuid.New(), URL: "https://example.com/doc.pdf"})
	require.NoError(t, err)
	_, err = repo.CompareAndSwapStatus(context.Background(), doc.ID, StatusQueued, StatusCompleted, nil)
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), 1, doc.ID)
	require.Error(t, err)
}

func TestService_DeleteByCollectionCascades(t *testing.T) {
	svc, _, _, chunks := newTestService()
	collectionID := uuid.New()
	doc, err := svc.SubmitURL(context.Background(), 1, URLRequest{CollectionID: collectionID, URL: "https://example.com/doc.pdf"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteByCollection(context.Background(), collectionID))
	require.Contains(t, chunks.deletedCollections, collectionID)

	_, err = svc.Get(context.Background(), 1, doc.ID)
	require.Error(t, err)
}

func newTestService() (Service, *fakeRepository, *fakeJobQueue, *fakeChunkRepository) {
	repo := newFakeRepository()
	chunks := newFakeChunkRepository()
	storage := newFakeObjectStorage()
	queue := newFakeJobQueue()
	svc := NewService(Config{MaxFileBytes: 1 << 20}, repo, chunks, storage, queue, fakeFetcher{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, queue, chunks
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	return []byte("fetched"), "text/plain", nil
}

type fakeObjectStorage struct {
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) Put(_ context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	f.objects[key] = data
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (f *fakeObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}

func (f *fakeObjectStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) SignedURL(_ context.Context, key string) (string, error) {
	return "https://blobs.example.com/" + key, nil
}

type fakeJobQueue struct {
	enqueued []Job
}

func newFakeJobQueue() *fakeJobQueue {
	return &fakeJobQueue{}
}

func (f *fakeJobQueue) Enqueue(_ context.Context, job Job) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeJobQueue) EnqueueDelayed(_ context.Context, job Job, _ int) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

type fakeChunkRepository struct {
	deletedDocuments   []uuid.UUID
	deletedCollections []uuid.UUID
}

func newFakeChunkRepository() *fakeChunkRepository {
	return &fakeChunkRepository{}
}

func (f *fakeChunkRepository) DeleteByDocument(_ context.Context, documentID uuid.UUID) error {
	f.deletedDocuments = append(f.deletedDocuments, documentID)
	return nil
}

func (f *fakeChunkRepository) DeleteByCollection(_ context.Context, collectionID uuid.UUID) error {
	f.deletedCollections = append(f.deletedCollections, collectionID)
	return nil
}

type fakeRepository struct {
	docs map[uuid.UUID]Document
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{docs: make(map[uuid.UUID]Document)}
}

func (f *fakeRepository) Create(_ context.Context, doc Document) (Document, error) {
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeRepository) Get(_ context.Context, id uuid.UUID, ownerID int64) (Document, bool, error) {
	doc, ok := f.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return Document{}, false, nil
	}
	return doc, true, nil
}

func (f *fakeRepository) GetAny(_ context.Context, id uuid.UUID) (Document, bool, error) {
	doc, ok := f.docs[id]
	return doc, ok, nil
}

func (f *fakeRepository) FindByContentHash(_ context.Context, ownerID int64, collectionID uuid.UUID, hash string) (Document, bool, error) {
	for _, doc := range f.docs {
		if doc.OwnerID == ownerID && doc.CollectionID == collectionID && doc.ContentHash == hash {
			return doc, true, nil
		}
	}
	return Document{}, false, nil
}

func (f *fakeRepository) List(_ context.Context, ownerID int64, _ Filter) ([]Document, error) {
	var out []Document
	for _, doc := range f.docs {
		if doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeRepository) Update(_ context.Context, doc Document) (Document, error) {
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeRepository) CompareAndSwapStatus(_ context.Context, id uuid.UUID, from, to Status, info *ProcessingInfo) (bool, error) {
	doc, ok := f.docs[id]
	if !ok || doc.Status != from {
		return false, nil
	}
	doc.Status = to
	if info != nil {
		doc.Processing = *info
	}
	f.docs[id] = doc
	return true, nil
}

func (f *fakeRepository) Delete(_ context.Context, id uuid.UUID, ownerID int64) error {
	if doc, ok := f.docs[id]; ok && doc.OwnerID == ownerID {
		delete(f.docs, id)
	}
	return nil
}

func (f *fakeRepository) DeleteByCollection(_ context.Context, collectionID uuid.UUID) error {
	for id, doc := range f.docs {
		if doc.CollectionID == collectionID {
			delete(f.docs, id)
		}
	}
	return nil
}
