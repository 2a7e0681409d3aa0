package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdf-chat-server/internal/domain"
)

// MockLogger records log lines for assertions.
type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{messages: []string{}}
}

func (m *MockLogger) add(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, line)
}

func (m *MockLogger) Info(msg string, args ...interface{})  { m.add("INFO: " + msg) }
func (m *MockLogger) Debug(msg string, args ...interface{}) { m.add("DEBUG: " + msg) }
func (m *MockLogger) Warn(msg string, args ...interface{})  { m.add("WARN: " + msg) }

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	if err != nil {
		msg += " - " + err.Error()
	}
	m.add("ERROR: " + msg)
}

func (m *MockLogger) Contains(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range m.messages {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// MockUserStore is an in-memory users table. It serves as UserRepository,
// MessageCounterStore and BillingRepository, and every method holds the
// lock for its whole read-modify-write like the SQL statements do.
type MockUserStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	events  map[string]*domain.SubscriptionEvent
	order   []string
	failErr error
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{
		users:  make(map[string]*domain.User),
		events: make(map[string]*domain.SubscriptionEvent),
	}
}

func (m *MockUserStore) Put(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *MockUserStore) Get(id string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (m *MockUserStore) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

func (m *MockUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u := m.Get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserStore) GetByBillingCustomerID(_ context.Context, customerID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.BillingCustomerID != nil && *u.BillingCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserStore) EnsureByEmail(_ context.Context, email, name string, now time.Time) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	u := &domain.User{
		ID:                  uuid.NewString(),
		Email:               email,
		Name:                name,
		Plan:                domain.PlanFree,
		SubscriptionStatus:  domain.SubscriptionStatusInactive,
		MessageCountResetAt: now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *MockUserStore) AttachBillingCustomer(_ context.Context, userID, customerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	if u.BillingCustomerID == nil {
		u.BillingCustomerID = &customerID
	}
	return *u.BillingCustomerID, nil
}

func (m *MockUserStore) ReadMessageUsage(_ context.Context, userID string, now time.Time) (*domain.MessageUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	resetIfDue(u, now)
	return &domain.MessageUsage{Count: u.MessageCount, ResetAt: u.MessageCountResetAt}, nil
}

func (m *MockUserStore) IncrementMessageCount(_ context.Context, userID string, now time.Time) (*domain.MessageUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	resetIfDue(u, now)
	u.MessageCount++
	return &domain.MessageUsage{Count: u.MessageCount, ResetAt: u.MessageCountResetAt}, nil
}

func (m *MockUserStore) ConsumeMessage(_ context.Context, userID string, now time.Time, limit int) (*domain.MessageUsage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, false, domain.ErrUserNotFound
	}
	resetIfDue(u, now)
	if limit >= 0 && u.MessageCount >= limit {
		return &domain.MessageUsage{Count: u.MessageCount, ResetAt: u.MessageCountResetAt}, false, nil
	}
	u.MessageCount++
	return &domain.MessageUsage{Count: u.MessageCount, ResetAt: u.MessageCountResetAt}, true, nil
}

func resetIfDue(u *domain.User, now time.Time) {
	if domain.MessageResetDue(u.MessageCountResetAt, now) {
		u.MessageCount = 0
		u.MessageCountResetAt = now
	}
}

func (m *MockUserStore) ApplySubscriptionEvent(_ context.Context, record *domain.SubscriptionEvent, update *domain.SubscriptionUpdate, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	u, ok := m.users[record.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if _, dup := m.events[record.BillingEventID]; dup {
		return domain.ErrDuplicateEvent
	}
	if update.Plan != nil {
		u.Plan = *update.Plan
	}
	if update.SubscriptionStatus != nil {
		u.SubscriptionStatus = *update.SubscriptionStatus
	}
	if update.BillingSubscriptionID != nil {
		u.BillingSubscriptionID = update.BillingSubscriptionID
	}
	if update.BillingPriceID != nil {
		u.BillingPriceID = update.BillingPriceID
	}
	if update.CurrentPeriodEnd != nil {
		u.CurrentPeriodEnd = update.CurrentPeriodEnd
	}
	u.UpdatedAt = now
	cp := *record
	m.events[record.BillingEventID] = &cp
	m.order = append(m.order, record.BillingEventID)
	return nil
}

func (m *MockUserStore) ListSubscriptionEvents(_ context.Context, userID string) ([]*domain.SubscriptionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SubscriptionEvent
	for _, id := range m.order {
		if e := m.events[id]; e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MockDocumentRepository keeps documents in memory.
type MockDocumentRepository struct {
	mu        sync.Mutex
	documents map[string]*domain.Document
	deleteErr []error
	deletes   int
}

func NewMockDocumentRepository() *MockDocumentRepository {
	return &MockDocumentRepository{documents: make(map[string]*domain.Document)}
}

func (m *MockDocumentRepository) Put(doc *domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.documents[doc.ID] = &cp
}

func (m *MockDocumentRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents)
}

func (m *MockDocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	m.Put(doc)
	return nil
}

func (m *MockDocumentRepository) CreateReplacing(_ context.Context, doc *domain.Document) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, d := range m.documents {
		if d.UserID == doc.UserID && d.IsActive {
			d.IsActive = false
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	cp := *doc
	m.documents[doc.ID] = &cp
	return ids, nil
}

func (m *MockDocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDocumentRepository) ListByUser(_ context.Context, userID string) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Document
	for _, d := range m.documents {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDocumentRepository) CountActive(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.documents {
		if d.UserID == userID && d.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *MockDocumentRepository) Deactivate(_ context.Context, userID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[documentID]
	if !ok || d.UserID != userID {
		return domain.ErrDocumentNotFound
	}
	d.IsActive = false
	return nil
}

func (m *MockDocumentRepository) Reactivate(_ context.Context, userID string, documentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range documentIDs {
		if d, ok := m.documents[id]; ok && d.UserID == userID {
			d.IsActive = true
		}
	}
	return nil
}

func (m *MockDocumentRepository) SetIndexInfo(_ context.Context, documentID, indexName, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	d.IndexName = &indexName
	d.Namespace = &namespace
	return nil
}

func (m *MockDocumentRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if len(m.deleteErr) > 0 {
		err := m.deleteErr[0]
		m.deleteErr = m.deleteErr[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := m.documents[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.documents, id)
	return nil
}

// MockStorage is an in-memory object store.
type MockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func NewMockStorage() *MockStorage {
	return &MockStorage{objects: make(map[string][]byte)}
}

func (m *MockStorage) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MockStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (m *MockStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// MockIndexer returns a fixed result or error.
type MockIndexer struct {
	err   error
	calls int
}

func (m *MockIndexer) AddRecord(_ context.Context, documentID, userID, _ string) (*domain.IndexResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IndexResult{IndexName: userID, Namespace: documentID}, nil
}

// MockInspector accepts anything that starts with the PDF magic.
type MockInspector struct{ pages int }

func (m MockInspector) Inspect(pdf []byte) (int, error) {
	if !strings.HasPrefix(string(pdf), "%PDF-") {
		return 0, fmt.Errorf("%w: not a PDF", domain.ErrInvalidFile)
	}
	return m.pages, nil
}

// MockChatRepository keeps chats and messages in memory, in insert order.
type MockChatRepository struct {
	mu       sync.Mutex
	chats    map[string]*domain.Chat
	messages []*domain.ChatMessage
}

func NewMockChatRepository() *MockChatRepository {
	return &MockChatRepository{chats: make(map[string]*domain.Chat)}
}

func (m *MockChatRepository) CreateChat(_ context.Context, chat *domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *chat
	m.chats[chat.ID] = &cp
	return nil
}

func (m *MockChatRepository) GetChat(_ context.Context, id string) (*domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, domain.ErrChatNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockChatRepository) ListChats(_ context.Context, userID string) ([]*domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Chat
	for _, c := range m.chats {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockChatRepository) CreateMessage(_ context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[msg.ChatID]; !ok {
		return domain.ErrChatNotFound
	}
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *MockChatRepository) ListMessages(_ context.Context, chatID string) ([]*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ChatMessage
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MockAnswerer echoes a canned answer and remembers the last request.
type MockAnswerer struct {
	answer string
	err    error
	last   domain.AnswerRequest
}

func (m *MockAnswerer) Answer(_ context.Context, req domain.AnswerRequest) (string, error) {
	m.last = req
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

var errBoom = errors.New("boom")
