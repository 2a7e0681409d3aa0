package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pdf-chat-server/internal/domain"
)

const (
	maxMessageLength = 4000
	maxTitleLength   = 80
)

// ChatService runs the chat use cases behind the message quota.
type ChatService struct {
	chats     domain.ChatRepository
	documents domain.DocumentRepository
	usage     domain.UsageService
	answerer  domain.Answerer
	logger    domain.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewChatService(
	chats domain.ChatRepository,
	documents domain.DocumentRepository,
	usage domain.UsageService,
	answerer domain.Answerer,
	logger domain.Logger,
	answerTimeout time.Duration,
) *ChatService {
	return &ChatService{
		chats:     chats,
		documents: documents,
		usage:     usage,
		answerer:  answerer,
		logger:    logger,
		timeout:   answerTimeout,
		now:       time.Now,
	}
}

// SendMessage stores a user message, opening a new chat when req.ChatID is
// empty. Input and ownership are checked before a message is reserved so a
// rejected request never uses quota.
func (s *ChatService) SendMessage(ctx context.Context, userID string, req domain.SendMessageRequest) (*domain.ChatMessage, error) {
	text, err := validateText("text", req.Text)
	if err != nil {
		return nil, err
	}

	var chat *domain.Chat
	if req.ChatID != "" {
		if chat, err = s.ownedChat(ctx, userID, req.ChatID); err != nil {
			return nil, err
		}
	}
	var documentID *string
	if req.DocumentID != "" {
		doc, err := s.ownedDocument(ctx, userID, req.DocumentID)
		if err != nil {
			return nil, err
		}
		documentID = &doc.ID
	}

	check, err := s.usage.ReserveMessage(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !check.CanSendMessage {
		return nil, messageLimitError(check)
	}

	now := s.now().UTC()
	if chat == nil {
		chat = &domain.Chat{
			ID:         uuid.NewString(),
			UserID:     userID,
			DocumentID: documentID,
			Title:      chatTitle(text),
			CreatedAt:  now,
		}
		if err := s.chats.CreateChat(ctx, chat); err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
	}

	msg := &domain.ChatMessage{
		ID:        uuid.NewString(),
		ChatID:    chat.ID,
		UserID:    userID,
		Text:      text,
		IsUser:    true,
		CreatedAt: now,
	}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	s.logger.Debug("Message stored", "chatId", chat.ID, "userId", userID, "count", check.CurrentCount)
	return msg, nil
}

// GetResponse asks the answerer to reply to req.Query within the chat and
// stores the reply. A reply to the chat's pending user message is free: that
// message was charged when it was sent. Any other query must still fit the
// quota, which is checked but not consumed.
func (s *ChatService) GetResponse(ctx context.Context, userID, chatID string, req domain.ResponseRequest) (*domain.ChatMessage, error) {
	query, err := validateText("query", req.Query)
	if err != nil {
		return nil, err
	}
	chat, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	documentID := req.DocumentID
	if documentID == "" && chat.DocumentID != nil {
		documentID = *chat.DocumentID
	}
	var indexName, namespace *string
	if documentID != "" {
		doc, err := s.ownedDocument(ctx, userID, documentID)
		if err != nil {
			return nil, err
		}
		indexName = &userID
		namespace = doc.Namespace
	}

	history, err := s.chats.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	if !awaitingReply(history, query) {
		check, err := s.usage.CheckMessageLimit(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !check.CanSendMessage {
			return nil, messageLimitError(check)
		}
	}

	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	answer, err := s.answerer.Answer(actx, domain.AnswerRequest{
		Query:       query,
		IndexName:   indexName,
		Namespace:   namespace,
		ChatHistory: buildHistory(history, query),
	})
	if err != nil {
		s.logger.Error("Answer request failed", err, "chatId", chat.ID, "userId", userID)
		return nil, fmt.Errorf("get answer: %w", err)
	}

	reply := &domain.ChatMessage{
		ID:        uuid.NewString(),
		ChatID:    chat.ID,
		UserID:    userID,
		Text:      answer,
		IsUser:    false,
		CreatedAt: s.now().UTC(),
	}
	if err := s.chats.CreateMessage(ctx, reply); err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}
	return reply, nil
}

func (s *ChatService) ListChats(ctx context.Context, userID string) ([]*domain.Chat, error) {
	return s.chats.ListChats(ctx, userID)
}

func (s *ChatService) ListMessages(ctx context.Context, userID, chatID string) ([]*domain.ChatMessage, error) {
	chat, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	return s.chats.ListMessages(ctx, chat.ID)
}

func (s *ChatService) ownedChat(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, domain.ErrChatNotFound
	}
	return chat, nil
}

func (s *ChatService) ownedDocument(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func messageLimitError(check *domain.MessageLimitCheck) *domain.LimitError {
	return &domain.LimitError{
		Resource:     domain.ResourceMessages,
		CurrentCount: check.CurrentCount,
		MaxAllowed:   check.MaxAllowed,
		Message:      check.Message,
		Reason:       check.Reason,
	}
}

func validateText(field, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &domain.ValidationError{Field: field, Message: "must not be empty"}
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return "", &domain.ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", maxMessageLength)}
	}
	return text, nil
}

func chatTitle(text string) string {
	if utf8.RuneCountInString(text) <= maxTitleLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxTitleLength])) + "..."
}

// awaitingReply reports whether the last stored message is the user's query
// and has no answer yet.
func awaitingReply(messages []*domain.ChatMessage, query string) bool {
	n := len(messages)
	return n > 0 && messages[n-1].IsUser && strings.TrimSpace(messages[n-1].Text) == query
}

// buildHistory renders stored messages the way the answerer expects them.
// A trailing user message equal to query is dropped; it is sent as the query.
func buildHistory(messages []*domain.ChatMessage, query string) []string {
	if awaitingReply(messages, query) {
		messages = messages[:len(messages)-1]
	}
	history := make([]string, 0, len(messages))
	for _, m := range messages {
		prefix := "AI: "
		if m.IsUser {
			prefix = "User: "
		}
		history = append(history, prefix+m.Text)
	}
	return history
}
