package chatapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-chat-server/internal/domain"
	"pdf-chat-server/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "secret", srv.Client(), logger.New(io.Discard, "error", "text"))
}

func TestClient_AddRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/add-record", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"documentId": "d1", "userId": "u1", "documentUrl": "https://s/x"}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"indexName":"u1","namespace":"ns-d1"}`))
	})

	res, err := c.AddRecord(context.Background(), "d1", "u1", "https://s/x")
	require.NoError(t, err)
	assert.Equal(t, &domain.IndexResult{IndexName: "u1", Namespace: "ns-d1"}, res)
}

func TestClient_AddRecordFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusBadGateway)
	})

	_, err := c.AddRecord(context.Background(), "d1", "u1", "https://s/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_AddRecordTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.AddRecord(ctx, "d1", "u1", "https://s/x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_AnswerStreamedText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get-response", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what?", req["query"])
		assert.Equal(t, "u1", req["indexName"])
		assert.Equal(t, []any{}, req["chat_history"])
		assert.NotContains(t, req, "namespace")

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("part one, "))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("part two"))
	})

	index := "u1"
	answer, err := c.Answer(context.Background(), domain.AnswerRequest{Query: "what?", IndexName: &index})
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", answer)
}

func TestClient_AnswerJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"hello"}`))
	})

	answer, err := c.Answer(context.Background(), domain.AnswerRequest{Query: "hi", ChatHistory: []string{"User: a"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", answer)
}
