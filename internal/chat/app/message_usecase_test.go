package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetNewNop()
}

// 寫入失敗時不可推送, 也不發通知
func TestDispatchUseCase_StoreFailureNoPush(t *testing.T) {
	ctx := context.Background()
	router := presence.NewLocalRouter()
	u2 := newFakeChannel("c2")
	router.Join("u2", u2)

	mockMsgRepo := new(MockMessageRepository)
	mockMsgRepo.On("Append", ctx, mock.Anything).Return(errors.Join(domain.ErrStoreUnavailable, errors.New("db down")))
	mockNotifier := new(MockNotifier)

	uc := NewDispatchUseCase(mockMsgRepo, NewPusher(router, time.Second), WithNotifier(mockNotifier))
	saved, err := uc.Dispatch(ctx, &domain.Message{SenderID: "u1", ReceiverID: "u2", Content: "hello"})

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Nil(t, saved)
	assert.Empty(t, u2.actions())
	mockNotifier.AssertNotCalled(t, "NotifyMessage", mock.Anything, mock.Anything)
}

func TestDispatchUseCase_ValidationNothingStored(t *testing.T) {
	ctx := context.Background()
	router := presence.NewLocalRouter()
	u2 := newFakeChannel("c2")
	router.Join("u2", u2)
	store := repository.NewMemoryMessageRepository()

	uc := NewDispatchUseCase(store, NewPusher(router, time.Second))
	_, err := uc.Dispatch(ctx, &domain.Message{SenderID: "u1", ReceiverID: "u2", Content: "   "})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, u2.actions())
	msgs, err := store.ListBetween(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDispatchUseCase_PushToConnectedReceiver(t *testing.T) {
	ctx := context.Background()
	router := presence.NewLocalRouter()
	u2 := newFakeChannel("c2")
	router.Join("u2", u2)

	mockNotifier := new(MockNotifier)
	mockNotifier.On("NotifyMessage", mock.Anything, mock.MatchedBy(func(n domain.Notification) bool {
		return n.RecipientID == "u2" && n.ActorID == "u1" && n.Preview == "hello"
	})).Return(nil)

	uc := NewDispatchUseCase(repository.NewMemoryMessageRepository(), NewPusher(router, time.Second), WithNotifier(mockNotifier))
	saved, err := uc.Dispatch(ctx, &domain.Message{SenderID: "u1", ReceiverID: "u2", Content: "hello"})

	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.IsRead)
	require.Equal(t, []string{string(domain.NotifyMessage)}, u2.actions())
	assert.Equal(t, saved, u2.last().Payload["message"])
	mockNotifier.AssertExpectations(t)
}

func TestDispatchUseCase_AbsentOrFailingReceiverStillStored(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		store := repository.NewMemoryMessageRepository()
		uc := NewDispatchUseCase(store, NewPusher(presence.NewLocalRouter(), time.Second))

		_, err := uc.Dispatch(ctx, &domain.Message{SenderID: "u1", ReceiverID: "u2", Content: "hello"})
		require.NoError(t, err)

		msgs, _ := store.ListBetween(ctx, "u2", "u1")
		assert.Len(t, msgs, 1)
	})

	t.Run("push fails", func(t *testing.T) {
		router := presence.NewLocalRouter()
		full := newFakeChannel("c2")
		full.err = presence.ErrChannelFull
		router.Join("u2", full)
		store := repository.NewMemoryMessageRepository()

		uc := NewDispatchUseCase(store, NewPusher(router, time.Second))
		_, err := uc.Dispatch(ctx, &domain.Message{SenderID: "u1", ReceiverID: "u2", Image: "uploads/image/a.png"})
		require.NoError(t, err)

		msgs, _ := store.ListBetween(ctx, "u1", "u2")
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.AttachmentFallback, msgs[0].Content)
	})

	t.Run("notification fails", func(t *testing.T) {
		mockNotifier := new(MockNotifier)
		mockNotifier.On("NotifyMessage", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		uc := NewDispatchUseCase(repository.NewMemoryMessageRepository(), NewPusher(presence.NewLocalRouter(), time.Second), WithNotifier(mockNotifier))
		saved, err := uc.Dispatch(ctx, &domain.Message{SenderID: "u1", ReceiverID: "u2", Content: "hello"})
		require.NoError(t, err)
		assert.NotNil(t, saved)
		mockNotifier.AssertExpectations(t)
	})
}

func TestPusher_CrossInstance(t *testing.T) {
	ctx := context.Background()

	t.Run("remote receiver is relayed", func(t *testing.T) {
		directory := new(MockPresenceRepository)
		directory.On("Lookup", mock.Anything, "u2").Return(&repository.PresenceEntry{UserID: "u2", InstanceID: "node-b"}, nil)
		relay := new(MockRelayPublisher)
		relay.On("Publish", mock.Anything, "u2", mock.MatchedBy(func(env repository.RelayEnvelope) bool {
			return env.Origin == "node-a" && env.Response.Action == string(domain.NotifyMessage)
		})).Return(nil)

		p := NewPusher(presence.NewLocalRouter(), time.Second).WithRelay(relay, directory, "node-a")
		result := p.Push(ctx, "u2", domain.NewNotifyMessage(&domain.Message{ID: "m1"}))

		assert.Equal(t, "relayed", result)
		relay.AssertExpectations(t)
	})

	t.Run("directory points at this instance", func(t *testing.T) {
		directory := new(MockPresenceRepository)
		directory.On("Lookup", mock.Anything, "u2").Return(&repository.PresenceEntry{UserID: "u2", InstanceID: "node-a"}, nil)
		relay := new(MockRelayPublisher)

		p := NewPusher(presence.NewLocalRouter(), time.Second).WithRelay(relay, directory, "node-a")
		assert.Equal(t, "absent", p.Push(ctx, "u2", domain.NewNotifyMessage(&domain.Message{ID: "m1"})))
		relay.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("offline everywhere", func(t *testing.T) {
		directory := new(MockPresenceRepository)
		directory.On("Lookup", mock.Anything, "u2").Return(nil, nil)

		p := NewPusher(presence.NewLocalRouter(), time.Second).WithRelay(new(MockRelayPublisher), directory, "node-a")
		assert.Equal(t, "absent", p.Push(ctx, "u2", domain.NewNotifyMessage(&domain.Message{ID: "m1"})))
	})

	t.Run("local channel wins over directory", func(t *testing.T) {
		router := presence.NewLocalRouter()
		u2 := newFakeChannel("c2")
		router.Join("u2", u2)
		directory := new(MockPresenceRepository)

		p := NewPusher(router, time.Second).WithRelay(new(MockRelayPublisher), directory, "node-a")
		assert.Equal(t, "delivered", p.Push(ctx, "u2", domain.NewNotifyMessage(&domain.Message{ID: "m1"})))
		directory.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
	})
}

func TestPusher_DeliverRelayed(t *testing.T) {
	router := presence.NewLocalRouter()
	u2 := newFakeChannel("c2")
	router.Join("u2", u2)
	p := NewPusher(router, time.Second).WithRelay(new(MockRelayPublisher), new(MockPresenceRepository), "node-a")

	// 自己發出的不重複推送
	p.DeliverRelayed("u2", repository.RelayEnvelope{Origin: "node-a", Response: domain.NewSessionSuperseded("u2")})
	assert.Empty(t, u2.actions())

	p.DeliverRelayed("u2", repository.RelayEnvelope{Origin: "node-b", Response: domain.NewNotifyMessage(&domain.Message{ID: "m1"})})
	assert.Equal(t, []string{string(domain.NotifyMessage)}, u2.actions())

	// 不在本機就忽略
	p.DeliverRelayed("u9", repository.RelayEnvelope{Origin: "node-b", Response: domain.NewNotifyMessage(&domain.Message{ID: "m2"})})
}

func TestDispatchUseCase_LegacyRelay(t *testing.T) {
	ctx := context.Background()
	router := presence.NewLocalRouter()
	u2 := newFakeChannel("c2")
	router.Join("u2", u2)
	mockMsgRepo := new(MockMessageRepository)
	payload := json.RawMessage(`{"text":"typing"}`)

	uc := NewDispatchUseCase(mockMsgRepo, NewPusher(router, time.Second))
	require.NoError(t, uc.Relay(ctx, "u1", "u2", payload))

	last := u2.last()
	assert.Equal(t, string(domain.RelayMessage), last.Action)
	assert.Equal(t, "u1", last.Payload["sender_id"])
	assert.Equal(t, payload, last.Payload["data"])
	mockMsgRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)

	assert.ErrorIs(t, uc.Relay(ctx, "u1", "", payload), domain.ErrValidation)

	disabled := NewDispatchUseCase(mockMsgRepo, NewPusher(router, time.Second), WithLegacyRelay(false))
	assert.ErrorIs(t, disabled.Relay(ctx, "u1", "u2", payload), ErrLegacyRelayDisabled)
}
