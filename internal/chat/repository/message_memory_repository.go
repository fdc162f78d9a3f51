package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"social_chat_service/internal/chat/domain"
)

// memoryMessageRepository process local store, order of the slice is insertion order
type memoryMessageRepository struct {
	mu       sync.RWMutex
	messages []domain.Message
	now      func() time.Time
}

// NewMemoryMessageRepository create an in-memory MessageRepository
func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepository{now: time.Now}
}

func (r *memoryMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	if err := msg.PrepareForAppend(r.now()); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memoryMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Message{}
	for _, m := range r.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryMessageRepository) MarkReadBatch(ctx context.Context, receiverID, senderID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for i := range r.messages {
		m := &r.messages[i]
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.IsRead {
			readAt := at
			m.IsRead = true
			m.ReadAt = &readAt
			m.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r *memoryMessageRepository) SummarizeByUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byCounterpart := map[string]*domain.ConversationSummary{}
	var order []string
	for _, m := range r.messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		other := m.Counterpart(userID)
		s, ok := byCounterpart[other]
		if !ok {
			s = &domain.ConversationSummary{CounterpartID: other}
			byCounterpart[other] = s
			order = append(order, other)
		}
		// 相同時間以後寫入的為準
		if !m.CreatedAt.Before(s.LastTime) {
			s.LastMessage = m.Content
			s.LastTime = m.CreatedAt
		}
		if m.ReceiverID == userID && !m.IsRead {
			s.UnreadCount++
		}
	}

	out := make([]domain.ConversationSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byCounterpart[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastTime.After(out[j].LastTime)
	})
	return out, nil
}
