package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"pdf-chat-server/internal/domain"
)

const maxChatBodyBytes = 64 << 10

// ChatHandler serves chat threads and AI responses.
type ChatHandler struct {
	chatService domain.ChatService
	logger      domain.Logger
}

func NewChatHandler(chatService domain.ChatService, logger domain.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	chats, err := h.chatService.ListChats(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list chats", "userId", userID)
		return
	}
	if chats == nil {
		chats = []*domain.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// SendMessage stores a user message. It consumes one message of quota.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.SendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.chatService.SendMessage(r.Context(), userID, req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to send message", "userId", userID)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	chatID := mux.Vars(r)["id"]
	msgs, err := h.chatService.ListMessages(r.Context(), userID, chatID)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list messages", "chatId", chatID)
		return
	}
	if msgs == nil {
		msgs = []*domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// GetResponse asks the assistant to answer within a chat.
func (h *ChatHandler) GetResponse(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.ResponseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chatID := mux.Vars(r)["id"]
	reply, err := h.chatService.GetResponse(r.Context(), userID, chatID, req)
	if err != nil {
		respondError(w, h.logger, err, "Failed to get response", "chatId", chatID)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
