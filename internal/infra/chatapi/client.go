package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"pdf-chat-server/internal/domain"
)

const maxResponseBytes = 1 << 20

// Client talks to the retrieval service that indexes documents and answers
// questions about them. It implements domain.Indexer and domain.Answerer.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  domain.Logger
}

// New creates a client. Per-call deadlines come from the caller's context.
func New(baseURL, apiKey string, httpClient *http.Client, logger domain.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		logger:  logger,
	}
}

type addRecordRequest struct {
	DocumentID  string `json:"documentId"`
	UserID      string `json:"userId"`
	DocumentURL string `json:"documentUrl"`
}

// AddRecord asks the service to fetch and index the document at documentURL.
func (c *Client) AddRecord(ctx context.Context, documentID, userID, documentURL string) (*domain.IndexResult, error) {
	resp, err := c.post(ctx, "/add-record", addRecordRequest{
		DocumentID:  documentID,
		UserID:      userID,
		DocumentURL: documentURL,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out domain.IndexResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode add-record response: %w", err)
	}
	if out.IndexName == "" || out.Namespace == "" {
		return nil, fmt.Errorf("add-record response missing index info")
	}
	c.logger.Debug("Document indexed", "documentId", documentID, "namespace", out.Namespace)
	return &out, nil
}

// Answer returns the assistant's reply. Streamed text bodies are read to the
// end; JSON bodies carry the reply in "response".
func (c *Client) Answer(ctx context.Context, req domain.AnswerRequest) (string, error) {
	if req.ChatHistory == nil {
		req.ChatHistory = []string{}
	}
	resp, err := c.post(ctx, "/get-response", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read get-response body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var out struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("decode get-response body: %w", err)
		}
		return out.Response, nil
	}
	return string(body), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
