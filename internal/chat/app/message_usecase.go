package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/logger"
	"social_chat_service/pkg/metrics"

	"go.uber.org/zap"
)

// ErrLegacyRelayDisabled relay_message turned off by config
var ErrLegacyRelayDisabled = errors.New("legacy relay disabled")

// DispatchUseCase 負責私訊的寫入與即時推送
type DispatchUseCase struct {
	msgRepo       repository.MessageRepository
	pusher        *Pusher
	notifier      repository.Notifier
	notifyTimeout time.Duration
	legacyRelay   bool
}

// DispatchOption optional DispatchUseCase setting
type DispatchOption func(*DispatchUseCase)

// WithNotifier emit a notification after every stored message
func WithNotifier(n repository.Notifier) DispatchOption {
	return func(uc *DispatchUseCase) {
		uc.notifier = n
	}
}

// WithNotifyTimeout upper bound of the notification publish
func WithNotifyTimeout(d time.Duration) DispatchOption {
	return func(uc *DispatchUseCase) {
		uc.notifyTimeout = d
	}
}

// WithLegacyRelay enable or disable relay_message
func WithLegacyRelay(enabled bool) DispatchOption {
	return func(uc *DispatchUseCase) {
		uc.legacyRelay = enabled
	}
}

// NewDispatchUseCase create DispatchUseCase
func NewDispatchUseCase(msgRepo repository.MessageRepository, pusher *Pusher, opts ...DispatchOption) *DispatchUseCase {
	uc := &DispatchUseCase{
		msgRepo:       msgRepo,
		pusher:        pusher,
		notifier:      repository.NewNopNotifier(),
		notifyTimeout: time.Second,
		legacyRelay:   true,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Dispatch persist the message, then try a realtime push to the receiver.
// A store failure aborts before any push.
func (uc *DispatchUseCase) Dispatch(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	if err := uc.msgRepo.Append(ctx, msg); err != nil {
		reason := "store"
		if errors.Is(err, domain.ErrValidation) {
			reason = "validation"
		}
		metrics.DispatchFailures.WithLabelValues(reason).Inc()
		logger.Log.Error("dispatch append", zap.String("sender", msg.SenderID), zap.String("receiver", msg.ReceiverID), zap.Error(err))
		return nil, err
	}
	metrics.MessagesDispatched.Inc()

	result := uc.pusher.Push(ctx, msg.ReceiverID, domain.NewNotifyMessage(msg))
	logger.Log.Debug("dispatch", zap.String("messageID", msg.ID), zap.String("push", result))

	uc.notify(ctx, msg)
	return msg, nil
}

func (uc *DispatchUseCase) notify(ctx context.Context, msg *domain.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.notifyTimeout)
	defer cancel()

	if err := uc.notifier.NotifyMessage(ctx, domain.NewMessageNotification(msg)); err != nil {
		metrics.NotificationFailures.Inc()
		logger.Log.Warn("message notification failed", zap.String("messageID", msg.ID), zap.Error(err))
	}
}

// Relay forward a raw client payload to the receiver without persisting it.
//
// Deprecated: clients should use send_message, relay_message is kept for old frontends.
func (uc *DispatchUseCase) Relay(ctx context.Context, senderID, receiverID string, payload json.RawMessage) error {
	if !uc.legacyRelay {
		return ErrLegacyRelayDisabled
	}
	if receiverID == "" {
		return errors.Join(domain.ErrValidation, errors.New("receiver is required"))
	}
	logger.Log.Warn("legacy relay_message used", zap.String("sender", senderID), zap.String("receiver", receiverID))
	metrics.LegacyRelays.Inc()

	uc.pusher.Push(ctx, receiverID, domain.NewRelayEvent(senderID, payload))
	return nil
}
