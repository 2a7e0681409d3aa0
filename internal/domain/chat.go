package domain

import (
	"context"
	"time"
)

// Chat is a conversation thread, optionally about one document.
type Chat struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	DocumentID *string   `json:"documentId,omitempty"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChatMessage is a single message in a chat.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRepository defines persistence for chat history.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, id string) (*Chat, error)
	ListChats(ctx context.Context, userID string) ([]*Chat, error)
	CreateMessage(ctx context.Context, msg *ChatMessage) error
	ListMessages(ctx context.Context, chatID string) ([]*ChatMessage, error)
}

// AnswerRequest is the payload sent to the AI answering service.
type AnswerRequest struct {
	Query       string   `json:"query"`
	IndexName   *string  `json:"indexName,omitempty"`
	Namespace   *string  `json:"namespace,omitempty"`
	ChatHistory []string `json:"chat_history"`
}

// Answerer produces an AI reply, optionally grounded in an indexed document.
type Answerer interface {
	Answer(ctx context.Context, req AnswerRequest) (string, error)
}

// SendMessageRequest is a user message posted to a chat.
type SendMessageRequest struct {
	Text       string `json:"text"`
	ChatID     string `json:"chatId,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

// ResponseRequest asks the assistant to answer in an existing chat.
type ResponseRequest struct {
	Query      string `json:"query"`
	DocumentID string `json:"documentId,omitempty"`
}

// ChatService defines the chat use cases.
type ChatService interface {
	SendMessage(ctx context.Context, userID string, req SendMessageRequest) (*ChatMessage, error)
	GetResponse(ctx context.Context, userID, chatID string, req ResponseRequest) (*ChatMessage, error)
	ListChats(ctx context.Context, userID string) ([]*Chat, error)
	ListMessages(ctx context.Context, userID, chatID string) ([]*ChatMessage, error)
}
