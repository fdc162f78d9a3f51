package app

import (
	"context"
	"sync"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/internal/chat/repository"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Append moke append message
func (m *MockMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// ListBetween moke list conversation
func (m *MockMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkReadBatch moke mark read
func (m *MockMessageRepository) MarkReadBatch(ctx context.Context, receiverID, senderID string, at time.Time) (int64, error) {
	args := m.Called(ctx, receiverID, senderID, at)
	return args.Get(0).(int64), args.Error(1)
}

// SummarizeByUser moke summaries
func (m *MockMessageRepository) SummarizeByUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ConversationSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotifier Mock Notifier
type MockNotifier struct {
	mock.Mock
}

// NotifyMessage moke notify
func (m *MockNotifier) NotifyMessage(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockPresenceRepository Mock PresenceRepository
type MockPresenceRepository struct {
	mock.Mock
}

// Register moke register
func (m *MockPresenceRepository) Register(ctx context.Context, entry repository.PresenceEntry, ttl time.Duration) error {
	args := m.Called(ctx, entry, ttl)
	return args.Error(0)
}

// Unregister moke unregister
func (m *MockPresenceRepository) Unregister(ctx context.Context, userID, channelID string) error {
	args := m.Called(ctx, userID, channelID)
	return args.Error(0)
}

// Lookup moke lookup
func (m *MockPresenceRepository) Lookup(ctx context.Context, userID string) (*repository.PresenceEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*repository.PresenceEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

// Refresh moke refresh
func (m *MockPresenceRepository) Refresh(ctx context.Context, userID string, ttl time.Duration) error {
	args := m.Called(ctx, userID, ttl)
	return args.Error(0)
}

// MockRelayPublisher Mock RelayPublisher
type MockRelayPublisher struct {
	mock.Mock
}

// Publish moke publish
func (m *MockRelayPublisher) Publish(ctx context.Context, userID string, env repository.RelayEnvelope) error {
	args := m.Called(ctx, userID, env)
	return args.Error(0)
}

// MockIdentityRepository Mock IdentityRepository
type MockIdentityRepository struct {
	mock.Mock
}

// FindProfile moke find profile
func (m *MockIdentityRepository) FindProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotificationRepository Mock NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

// Insert moke insert
func (m *MockNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// fakeChannel records pushes, err makes every push fail
type fakeChannel struct {
	id  string
	err error

	mu     sync.Mutex
	pushed []domain.WSResponse
	closed bool
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id}
}

func (c *fakeChannel) ID() string {
	return c.id
}

func (c *fakeChannel) Push(resp domain.WSResponse) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return presence.ErrChannelClosed
	}
	c.pushed = append(c.pushed, resp)
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.pushed))
	for _, r := range c.pushed {
		out = append(out, r.Action)
	}
	return out
}

func (c *fakeChannel) last() domain.WSResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pushed) == 0 {
		return domain.WSResponse{}
	}
	return c.pushed[len(c.pushed)-1]
}

var _ presence.Channel = (*fakeChannel)(nil)
