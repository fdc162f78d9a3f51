package app

import (
	"context"
	"errors"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/metrics"
)

// ReadStateUseCase mark a conversation read from the viewer's side
type ReadStateUseCase struct {
	msgRepo repository.MessageRepository
	pusher  *Pusher
	now     func() time.Time
}

// NewReadStateUseCase create ReadStateUseCase
func NewReadStateUseCase(msgRepo repository.MessageRepository, pusher *Pusher) *ReadStateUseCase {
	return &ReadStateUseCase{msgRepo: msgRepo, pusher: pusher, now: time.Now}
}

// Reconcile messages counterpart -> viewer become read, the viewer's own messages are untouched
func (uc *ReadStateUseCase) Reconcile(ctx context.Context, viewerID, counterpartID string) (int64, error) {
	if viewerID == "" || counterpartID == "" {
		return 0, errors.Join(domain.ErrValidation, errors.New("viewer and counterpart are required"))
	}

	n, err := uc.msgRepo.MarkReadBatch(ctx, viewerID, counterpartID, uc.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return 0, err
	}

	if n > 0 {
		metrics.MessagesMarkedRead.Add(float64(n))
		// 已讀回條, 對方不在線就算了
		if uc.pusher != nil {
			uc.pusher.Push(ctx, counterpartID, domain.NewMessagesRead(viewerID, n))
		}
	}
	return n, nil
}
