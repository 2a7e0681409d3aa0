package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pdf-chat-server/internal/domain"
	"pdf-chat-server/internal/metrics"
)

const pdfMimeType = "application/pdf"

// DocumentOptions tunes the upload flow.
type DocumentOptions struct {
	MaxFileSize     int64
	SignedURLTTL    time.Duration
	IndexerTimeout  time.Duration
	RollbackRetries int
	RollbackBackoff time.Duration
}

// DefaultDocumentOptions returns the production defaults.
func DefaultDocumentOptions() DocumentOptions {
	return DocumentOptions{
		MaxFileSize:     5 * 1024 * 1024,
		SignedURLTTL:    time.Hour,
		IndexerTimeout:  30 * time.Second,
		RollbackRetries: 3,
		RollbackBackoff: 200 * time.Millisecond,
	}
}

type DocumentService struct {
	repo      domain.DocumentRepository
	usage     domain.UsageService
	storage   domain.ObjectStorage
	indexer   domain.Indexer
	inspector domain.PDFInspector
	metrics   *metrics.Metrics
	logger    domain.Logger
	opts      DocumentOptions
	now       func() time.Time
}

func NewDocumentService(
	repo domain.DocumentRepository,
	usage domain.UsageService,
	storage domain.ObjectStorage,
	indexer domain.Indexer,
	inspector domain.PDFInspector,
	m *metrics.Metrics,
	logger domain.Logger,
	opts DocumentOptions,
) *DocumentService {
	return &DocumentService{
		repo:      repo,
		usage:     usage,
		storage:   storage,
		indexer:   indexer,
		inspector: inspector,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Upload validates, gates, stores and indexes a PDF. Plans with a single
// document slot replace the active document instead of being refused.
func (s *DocumentService) Upload(ctx context.Context, req domain.UploadRequest) (*domain.DocumentWithURL, error) {
	data, pages, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	check, err := s.usage.CheckDocumentLimit(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	singleSlot := check.MaxAllowed == 1
	if !singleSlot && !check.CanUpload {
		return nil, &domain.LimitError{
			Resource:     domain.ResourceDocuments,
			CurrentCount: check.CurrentCount,
			MaxAllowed:   check.MaxAllowed,
			Message:      check.Message,
			Reason:       check.Reason,
		}
	}

	now := s.now().UTC()
	name := sanitizeFileName(req.Name)
	key := fmt.Sprintf("%s/%d-%s", req.UserID, now.UnixMilli(), name)

	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), pdfMimeType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := &domain.Document{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		StorageKey: key,
		Name:       name,
		Size:       int64(len(data)),
		MimeType:   pdfMimeType,
		PageCount:  pages,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var deactivated []string
	if singleSlot {
		deactivated, err = s.repo.CreateReplacing(ctx, doc)
	} else {
		err = s.repo.Create(ctx, doc)
	}
	if err != nil {
		s.deleteObject(ctx, key)
		return nil, fmt.Errorf("save document: %w", err)
	}

	url, err := s.index(ctx, doc)
	if err != nil {
		s.logger.Error("Indexing failed, rolling back upload", err, "documentId", doc.ID, "userId", req.UserID)
		s.rollback(ctx, doc, deactivated)
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexingFailed, err)
	}

	s.logger.Info("Document uploaded",
		"documentId", doc.ID,
		"userId", req.UserID,
		"pages", pages,
		"replaced", len(deactivated),
	)
	return &domain.DocumentWithURL{Document: doc, URL: &url}, nil
}

func (s *DocumentService) validate(req domain.UploadRequest) ([]byte, int, error) {
	mediaType, _, err := mime.ParseMediaType(req.MimeType)
	if err != nil || mediaType != pdfMimeType {
		return nil, 0, fmt.Errorf("%w: only PDF files are allowed", domain.ErrInvalidFile)
	}
	if req.Size > s.opts.MaxFileSize {
		return nil, 0, domain.ErrFileTooLarge
	}
	if req.Body == nil {
		return nil, 0, fmt.Errorf("%w: empty file", domain.ErrInvalidFile)
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, s.opts.MaxFileSize+1))
	if err != nil {
		return nil, 0, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, 0, domain.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty file", domain.ErrInvalidFile)
	}

	pages, err := s.inspector.Inspect(data)
	if err != nil {
		return nil, 0, err
	}
	return data, pages, nil
}

// index hands the stored document to the indexer and records where it landed.
func (s *DocumentService) index(ctx context.Context, doc *domain.Document) (string, error) {
	url, err := s.storage.SignedURL(ctx, doc.StorageKey, s.opts.SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}

	ictx, cancel := context.WithTimeout(ctx, s.opts.IndexerTimeout)
	defer cancel()
	res, err := s.indexer.AddRecord(ictx, doc.ID, doc.UserID, url)
	if err != nil {
		return "", err
	}

	doc.IndexName = &res.IndexName
	doc.Namespace = &res.Namespace
	if err := s.repo.SetIndexInfo(ctx, doc.ID, res.IndexName, res.Namespace); err != nil {
		// The document is searchable; only the chat namespace lookup is affected.
		s.logger.Error("Failed to record index info", err, "documentId", doc.ID)
	}
	return url, nil
}

// rollback undoes a failed upload. It runs detached from the request so a
// client disconnect cannot leave a half-created document behind.
func (s *DocumentService) rollback(ctx context.Context, doc *domain.Document, deactivated []string) {
	ctx = context.WithoutCancel(ctx)
	status := "ok"

	attempt := 0
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.RollbackBackoff
	retries := uint64(max(s.opts.RollbackRetries, 1) - 1)
	err := backoff.Retry(func() error {
		attempt++
		err := s.repo.Delete(ctx, doc.ID)
		if err == nil || errors.Is(err, domain.ErrDocumentNotFound) {
			return nil
		}
		s.logger.Warn("Rollback delete failed", "documentId", doc.ID, "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx))
	if err != nil {
		status = "failed"
		s.logger.Error("Could not remove document row after indexing failure", err,
			"documentId", doc.ID, "userId", doc.UserID, "attempts", attempt)
	}

	if len(deactivated) > 0 {
		if err := s.repo.Reactivate(ctx, doc.UserID, deactivated); err != nil {
			status = "failed"
			s.logger.Error("Could not reactivate replaced documents", err, "userId", doc.UserID, "documents", deactivated)
		}
	}

	s.deleteObject(ctx, doc.StorageKey)
	s.metrics.DocumentRollback(status)
}

func (s *DocumentService) deleteObject(ctx context.Context, key string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("Failed to delete stored object", "key", key, "error", err)
	}
}

// ListDocuments returns the user's documents with fresh download URLs.
func (s *DocumentService) ListDocuments(ctx context.Context, userID string) ([]*domain.DocumentWithURL, error) {
	docs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.DocumentWithURL, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, doc := range docs {
		out[i] = &domain.DocumentWithURL{Document: doc}
		g.Go(func() error {
			url, err := s.storage.SignedURL(gctx, doc.StorageKey, s.opts.SignedURLTTL)
			if err != nil {
				s.logger.Warn("Failed to sign document url", "documentId", doc.ID, "error", err)
				return nil
			}
			out[i].URL = &url
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// DeactivateDocument frees the document's quota slot without deleting it.
func (s *DocumentService) DeactivateDocument(ctx context.Context, userID, documentID string) error {
	return s.repo.Deactivate(ctx, userID, documentID)
}

// DeleteDocument removes the document row and its stored bytes.
func (s *DocumentService) DeleteDocument(ctx context.Context, userID, documentID string) error {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		return domain.ErrDocumentNotFound
	}
	if err := s.repo.Delete(ctx, documentID); err != nil {
		return err
	}
	s.deleteObject(ctx, doc.StorageKey)
	return nil
}

// sanitizeFileName strips path components and characters that are awkward
// in object keys.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`?#%"<>|*:`, r) {
			return '_'
		}
		return r
	}, name)
	return name
}
