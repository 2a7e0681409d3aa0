// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"pdf-chat-server/internal/domain"
)

// multipartOverhead is the slack allowed on top of the file size for
// multipart boundaries and headers.
const multipartOverhead = 1 << 20

// DocumentHandler handles document-related HTTP requests
type DocumentHandler struct {
	documentService domain.DocumentService
	logger          domain.Logger
	maxFileSize     int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService domain.DocumentService, logger domain.Logger, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
		maxFileSize:     maxFileSize,
	}
}

// ListDocuments returns the user's documents with download URLs
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	docs, err := h.documentService.ListDocuments(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list documents", "userId", userID)
		return
	}
	// Ensure JSON is [] not null when there are no documents.
	if docs == nil {
		docs = []*domain.DocumentWithURL{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// UploadDocument accepts a multipart upload in the "file" field
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(r.Context(), domain.UploadRequest{
		UserID:   userID,
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		respondError(w, h.logger, err, "Failed to upload document", "userId", userID)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// DeactivateDocument frees the document's quota slot
func (h *DocumentHandler) DeactivateDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	documentID := mux.Vars(r)["id"]
	if err := h.documentService.DeactivateDocument(r.Context(), userID, documentID); err != nil {
		respondError(w, h.logger, err, "Failed to deactivate document", "documentId", documentID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument deletes a document and its stored file
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	documentID := mux.Vars(r)["id"]
	if err := h.documentService.DeleteDocument(r.Context(), userID, documentID); err != nil {
		respondError(w, h.logger, err, "Failed to delete document", "documentId", documentID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
