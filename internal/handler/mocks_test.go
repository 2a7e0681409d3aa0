package handler

import (
	"context"
	"net/http"
	"time"

	"pdf-chat-server/internal/domain"
)

type mockLogger struct{ errors int }

func (l *mockLogger) Info(msg string, fields ...interface{})  {}
func (l *mockLogger) Debug(msg string, fields ...interface{}) {}
func (l *mockLogger) Warn(msg string, fields ...interface{})  {}
func (l *mockLogger) Error(msg string, err error, fields ...interface{}) {
	l.errors++
}

type mockAuthService struct {
	user       *domain.SupabaseUser
	err        error
	resolveErr error
	lastToken  string
}

func (m *mockAuthService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	m.lastToken = token
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func (m *mockAuthService) ResolveUserID(_ context.Context, identity *domain.SupabaseUser) (string, error) {
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	return "acct-" + identity.ID, nil
}

type mockUserRepository struct {
	users map[string]*domain.User
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) GetByBillingCustomerID(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) EnsureByEmail(context.Context, string, string, time.Time) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) AttachBillingCustomer(context.Context, string, string) (string, error) {
	return "", domain.ErrUserNotFound
}

type mockUsageService struct {
	stats *domain.UsageStats
	err   error
}

func (m *mockUsageService) CheckDocumentLimit(context.Context, string) (*domain.DocumentLimitCheck, error) {
	return nil, m.err
}

func (m *mockUsageService) CheckMessageLimit(context.Context, string) (*domain.MessageLimitCheck, error) {
	return nil, m.err
}

func (m *mockUsageService) IncrementMessageCount(context.Context, string) (*domain.MessageUsage, error) {
	return nil, m.err
}

func (m *mockUsageService) ReserveMessage(context.Context, string) (*domain.MessageLimitCheck, error) {
	return nil, m.err
}

func (m *mockUsageService) GetUserUsageStats(context.Context, string) (*domain.UsageStats, error) {
	return m.stats, m.err
}

type mockDocumentService struct {
	uploaded *domain.UploadRequest
	doc      *domain.DocumentWithURL
	docs     []*domain.DocumentWithURL
	err      error
}

func (m *mockDocumentService) Upload(_ context.Context, req domain.UploadRequest) (*domain.DocumentWithURL, error) {
	m.uploaded = &req
	return m.doc, m.err
}

func (m *mockDocumentService) ListDocuments(context.Context, string) ([]*domain.DocumentWithURL, error) {
	return m.docs, m.err
}

func (m *mockDocumentService) DeactivateDocument(context.Context, string, string) error {
	return m.err
}

func (m *mockDocumentService) DeleteDocument(context.Context, string, string) error {
	return m.err
}

type mockChatService struct {
	lastUserID string
	lastReq    domain.SendMessageRequest
	msg        *domain.ChatMessage
	err        error
}

func (m *mockChatService) SendMessage(_ context.Context, userID string, req domain.SendMessageRequest) (*domain.ChatMessage, error) {
	m.lastUserID = userID
	m.lastReq = req
	return m.msg, m.err
}

func (m *mockChatService) GetResponse(_ context.Context, userID, chatID string, req domain.ResponseRequest) (*domain.ChatMessage, error) {
	m.lastUserID = userID
	return m.msg, m.err
}

func (m *mockChatService) ListChats(context.Context, string) ([]*domain.Chat, error) {
	return nil, m.err
}

func (m *mockChatService) ListMessages(context.Context, string, string) ([]*domain.ChatMessage, error) {
	return nil, m.err
}

type mockBillingService struct {
	session *domain.CheckoutSession
	err     error
}

func (m *mockBillingService) Checkout(context.Context, string, string) (*domain.CheckoutSession, error) {
	return m.session, m.err
}

func (m *mockBillingService) Portal(context.Context, string) (string, error) {
	return "https://portal.test", m.err
}

type mockParser struct {
	event *domain.BillingEvent
	err   error
}

func (m *mockParser) Parse(context.Context, []byte, string) (*domain.BillingEvent, error) {
	return m.event, m.err
}

type mockReconciler struct {
	outcome domain.ApplyOutcome
	err     error
	events  []*domain.SubscriptionEvent
	applied []domain.BillingEvent
}

func (m *mockReconciler) ApplyBillingEvent(_ context.Context, event domain.BillingEvent) (domain.ApplyOutcome, error) {
	m.applied = append(m.applied, event)
	return m.outcome, m.err
}

func (m *mockReconciler) ListEvents(context.Context, string) ([]*domain.SubscriptionEvent, error) {
	return m.events, m.err
}

// withUser returns r carrying an authenticated account id.
func withUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDContextKey, userID)
	return r.WithContext(ctx)
}
