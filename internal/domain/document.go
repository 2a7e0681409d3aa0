package domain

import (
	"context"
	"io"
	"time"
)

// Document is an uploaded file owned by a user. Only active documents count
// against the document quota.
type Document struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	StorageKey string `json:"key"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"type"`
	PageCount  int    `json:"pageCount"`
	IsActive   bool   `json:"isActive"`

	// Set by the indexer once the document is searchable.
	IndexName *string `json:"indexName,omitempty"`
	Namespace *string `json:"namespace,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentWithURL is a document plus a short-lived download URL.
type DocumentWithURL struct {
	*Document
	URL *string `json:"url"`
}

// DocumentRepository defines persistence operations for documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error

	// CreateReplacing deactivates every active document of doc.UserID and
	// inserts doc in one transaction. It returns the ids it deactivated.
	CreateReplacing(ctx context.Context, doc *Document) ([]string, error)

	GetByID(ctx context.Context, id string) (*Document, error)
	ListByUser(ctx context.Context, userID string) ([]*Document, error)
	CountActive(ctx context.Context, userID string) (int, error)
	Deactivate(ctx context.Context, userID, documentID string) error
	Reactivate(ctx context.Context, userID string, documentIDs []string) error
	SetIndexInfo(ctx context.Context, documentID, indexName, namespace string) error
	Delete(ctx context.Context, id string) error
}

// UploadRequest carries a file received from the client.
type UploadRequest struct {
	UserID   string
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}

// DocumentService defines the use-case operations for documents.
type DocumentService interface {
	Upload(ctx context.Context, req UploadRequest) (*DocumentWithURL, error)
	ListDocuments(ctx context.Context, userID string) ([]*DocumentWithURL, error)
	DeactivateDocument(ctx context.Context, userID, documentID string) error
	DeleteDocument(ctx context.Context, userID, documentID string) error
}

// IndexResult is what the indexer reports for a stored document.
type IndexResult struct {
	IndexName string `json:"indexName"`
	Namespace string `json:"namespace"`
}

// Indexer makes a stored document searchable by the AI backend.
type Indexer interface {
	AddRecord(ctx context.Context, documentID, userID, documentURL string) (*IndexResult, error)
}

// PDFInspector validates an uploaded PDF and reports its page count.
type PDFInspector interface {
	Inspect(pdf []byte) (pageCount int, err error)
}
