package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gorilla/mux"

	"pdf-chat-server/internal/domain"
)

func multipartPDF(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
	hdr.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestDocumentHandler_Upload(t *testing.T) {
	svc := &mockDocumentService{doc: &domain.DocumentWithURL{Document: &domain.Document{ID: "d1", Name: "a.pdf"}}}
	h := NewDocumentHandler(svc, &mockLogger{}, 1024)

	body, contentType := multipartPDF(t, "file", "a.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.UploadDocument(rr, withUser(req, "u1"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	if svc.uploaded == nil || svc.uploaded.UserID != "u1" || svc.uploaded.Name != "a.pdf" {
		t.Fatalf("unexpected upload request: %+v", svc.uploaded)
	}
	if svc.uploaded.MimeType != "application/pdf" {
		t.Fatalf("expected part content type to be forwarded, got %q", svc.uploaded.MimeType)
	}
}

func TestDocumentHandler_UploadMissingFile(t *testing.T) {
	h := NewDocumentHandler(&mockDocumentService{}, &mockLogger{}, 1024)

	body, contentType := multipartPDF(t, "other", "a.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.UploadDocument(rr, withUser(req, "u1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestDocumentHandler_UploadLimit(t *testing.T) {
	svc := &mockDocumentService{err: &domain.LimitError{
		Resource:     domain.ResourceDocuments,
		CurrentCount: 10,
		MaxAllowed:   10,
		Reason:       domain.ReasonLimitExceeded,
	}}
	h := NewDocumentHandler(svc, &mockLogger{}, 1024)

	body, contentType := multipartPDF(t, "file", "a.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.UploadDocument(rr, withUser(req, "u1"))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func TestDocumentHandler_Unauthorized(t *testing.T) {
	h := NewDocumentHandler(&mockDocumentService{}, &mockLogger{}, 1024)
	rr := httptest.NewRecorder()
	h.ListDocuments(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestDocumentHandler_ListEmpty(t *testing.T) {
	h := NewDocumentHandler(&mockDocumentService{}, &mockLogger{}, 1024)
	rr := httptest.NewRecorder()
	h.ListDocuments(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil), "u1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	var docs []json.RawMessage
	if err := json.Unmarshal(body, &docs); err != nil || docs == nil {
		t.Fatalf("expected empty JSON array, got %s", body)
	}
}

func TestDocumentHandler_DeleteNotFound(t *testing.T) {
	h := NewDocumentHandler(&mockDocumentService{err: domain.ErrDocumentNotFound}, &mockLogger{}, 1024)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/d1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "d1"})
	rr := httptest.NewRecorder()
	h.DeleteDocument(rr, withUser(req, "u1"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
