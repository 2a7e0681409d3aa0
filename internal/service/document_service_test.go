package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-chat-server/internal/domain"
	"pdf-chat-server/internal/metrics"
)

type documentFixture struct {
	service *DocumentService
	users   *MockUserStore
	docs    *MockDocumentRepository
	storage *MockStorage
	indexer *MockIndexer
	metrics *metrics.Metrics
	logger  *MockLogger
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	f := &documentFixture{
		users:   NewMockUserStore(),
		docs:    NewMockDocumentRepository(),
		storage: NewMockStorage(),
		indexer: &MockIndexer{},
		metrics: metrics.New(prometheus.NewRegistry()),
		logger:  NewMockLogger(),
	}
	usage := NewUsageService(f.users, f.users, f.docs, f.metrics, f.logger)
	usage.now = func() time.Time { return testNow }

	opts := DefaultDocumentOptions()
	opts.MaxFileSize = 1024
	opts.RollbackBackoff = time.Millisecond
	f.service = NewDocumentService(f.docs, usage, f.storage, f.indexer, MockInspector{pages: 3}, f.metrics, f.logger, opts)
	f.service.now = func() time.Time { return testNow }
	return f
}

func pdfUpload(userID, name string) domain.UploadRequest {
	body := []byte("%PDF-1.4 test body")
	return domain.UploadRequest{
		UserID:   userID,
		Name:     name,
		MimeType: "application/pdf",
		Size:     int64(len(body)),
		Body:     bytes.NewReader(body),
	}
}

func TestDocumentService_Upload(t *testing.T) {
	f := newDocumentFixture(t)
	f.users.Put(subscriber("u1", domain.PlanStarter, testNow.Add(time.Hour)))

	doc, err := f.service.Upload(context.Background(), pdfUpload("u1", "../../etc/report.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", doc.Name)
	assert.Equal(t, 3, doc.PageCount)
	assert.True(t, doc.IsActive)
	assert.True(t, strings.HasPrefix(doc.StorageKey, "u1/"))
	assert.True(t, strings.HasSuffix(doc.StorageKey, "-report.pdf"))
	require.NotNil(t, doc.URL)
	require.NotNil(t, doc.Namespace)
	assert.Equal(t, doc.ID, *doc.Namespace)

	stored, err := f.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.IndexName)
	assert.Equal(t, "u1", *stored.IndexName)
	assert.Equal(t, 1, f.storage.Len())
}

func TestDocumentService_SingleSlotReplaces(t *testing.T) {
	f := newDocumentFixture(t)
	f.users.Put(freeUser("u1"))
	f.docs.Put(&domain.Document{ID: "old", UserID: "u1", IsActive: true})

	doc, err := f.service.Upload(context.Background(), pdfUpload("u1", "new.pdf"))
	require.NoError(t, err)

	old, err := f.docs.GetByID(context.Background(), "old")
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	count, err := f.docs.CountActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	current, err := f.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, current.IsActive)
}

func TestDocumentService_MultiSlotLimit(t *testing.T) {
	f := newDocumentFixture(t)
	f.users.Put(subscriber("u1", domain.PlanStarter, testNow.Add(time.Hour)))
	for i := range 10 {
		f.docs.Put(&domain.Document{ID: string(rune('a' + i)), UserID: "u1", IsActive: true})
	}

	_, err := f.service.Upload(context.Background(), pdfUpload("u1", "eleventh.pdf"))

	var limitErr *domain.LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, domain.ResourceDocuments, limitErr.Resource)
	assert.Equal(t, 10, limitErr.CurrentCount)
	assert.Equal(t, 10, limitErr.MaxAllowed)
	assert.Equal(t, domain.ReasonLimitExceeded, limitErr.Reason)
	assert.Equal(t, 0, f.storage.Len())
	assert.Equal(t, 10, f.docs.Len())
}

func TestDocumentService_RollbackOnIndexFailure(t *testing.T) {
	f := newDocumentFixture(t)
	f.users.Put(freeUser("u1"))
	f.docs.Put(&domain.Document{ID: "old", UserID: "u1", IsActive: true})
	f.indexer.err = errBoom
	f.docs.deleteErr = []error{errBoom}

	_, err := f.service.Upload(context.Background(), pdfUpload("u1", "new.pdf"))
	require.ErrorIs(t, err, domain.ErrIndexingFailed)

	assert.Equal(t, 1, f.docs.Len())
	assert.Equal(t, 2, f.docs.deletes)
	old, err := f.docs.GetByID(context.Background(), "old")
	require.NoError(t, err)
	assert.True(t, old.IsActive)
	assert.Equal(t, 0, f.storage.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DocumentRollbacks.WithLabelValues("ok")))
}

func TestDocumentService_RollbackGivesUp(t *testing.T) {
	f := newDocumentFixture(t)
	f.users.Put(freeUser("u1"))
	f.indexer.err = errBoom
	f.docs.deleteErr = []error{errBoom, errBoom, errBoom}

	_, err := f.service.Upload(context.Background(), pdfUpload("u1", "new.pdf"))
	require.ErrorIs(t, err, domain.ErrIndexingFailed)

	assert.Equal(t, 3, f.docs.deletes)
	assert.True(t, f.logger.Contains("Could not remove document row"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DocumentRollbacks.WithLabelValues("failed")))
}

func TestDocumentService_UploadValidation(t *testing.T) {
	f := newDocumentFixture(t)
	f.users.Put(freeUser("u1"))

	notPDF := pdfUpload("u1", "a.txt")
	notPDF.MimeType = "text/plain"
	_, err := f.service.Upload(context.Background(), notPDF)
	assert.ErrorIs(t, err, domain.ErrInvalidFile)

	garbage := pdfUpload("u1", "a.pdf")
	garbage.Body = strings.NewReader("hello")
	_, err = f.service.Upload(context.Background(), garbage)
	assert.ErrorIs(t, err, domain.ErrInvalidFile)

	empty := pdfUpload("u1", "a.pdf")
	empty.Size = 0
	empty.Body = strings.NewReader("")
	_, err = f.service.Upload(context.Background(), empty)
	assert.ErrorIs(t, err, domain.ErrInvalidFile)

	declaredLarge := pdfUpload("u1", "a.pdf")
	declaredLarge.Size = 2048
	_, err = f.service.Upload(context.Background(), declaredLarge)
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	actuallyLarge := pdfUpload("u1", "a.pdf")
	actuallyLarge.Size = 10
	actuallyLarge.Body = strings.NewReader("%PDF-" + strings.Repeat("x", 2048))
	_, err = f.service.Upload(context.Background(), actuallyLarge)
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	assert.Equal(t, 0, f.storage.Len())
	assert.Equal(t, 0, f.indexer.calls)
}

func TestDocumentService_UnknownUser(t *testing.T) {
	f := newDocumentFixture(t)
	_, err := f.service.Upload(context.Background(), pdfUpload("ghost", "a.pdf"))
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestDocumentService_ListDeactivateDelete(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture(t)
	f.docs.Put(&domain.Document{ID: "d1", UserID: "u1", StorageKey: "u1/1-a.pdf", IsActive: true})
	f.docs.Put(&domain.Document{ID: "d2", UserID: "u2", StorageKey: "u2/1-b.pdf", IsActive: true})

	docs, err := f.service.ListDocuments(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].URL)
	assert.Contains(t, *docs[0].URL, "u1/1-a.pdf")

	require.NoError(t, f.service.DeactivateDocument(ctx, "u1", "d1"))
	count, err := f.docs.CountActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.ErrorIs(t, f.service.DeleteDocument(ctx, "u1", "d2"), domain.ErrDocumentNotFound)
	require.NoError(t, f.service.DeleteDocument(ctx, "u1", "d1"))
	assert.Equal(t, 1, f.docs.Len())
	assert.Contains(t, f.storage.deleted, "u1/1-a.pdf")
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"../../secret.pdf":    "secret.pdf",
		`C:\docs\scan.pdf`:    "scan.pdf",
		"":                    "document.pdf",
		"what?#.pdf":          "what__.pdf",
		"  spaced name.pdf  ": "spaced name.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFileName(in), in)
	}
}
