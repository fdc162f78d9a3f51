package app

import (
	"context"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/logger"
	"social_chat_service/pkg/metrics"

	"go.uber.org/zap"
)

// RelayPublisher publish an event for a user connected to another instance
type RelayPublisher interface {
	Publish(ctx context.Context, userID string, env repository.RelayEnvelope) error
}

// Pusher best effort realtime delivery, local channel first, then cross-instance relay
type Pusher struct {
	router     presence.Router
	directory  repository.PresenceRepository
	relay      RelayPublisher
	instanceID string
	timeout    time.Duration
}

// NewPusher create Pusher on the local presence router
func NewPusher(router presence.Router, timeout time.Duration) *Pusher {
	return &Pusher{router: router, timeout: timeout}
}

// WithRelay enable cross-instance delivery through the presence directory
func (p *Pusher) WithRelay(relay RelayPublisher, directory repository.PresenceRepository, instanceID string) *Pusher {
	p.relay = relay
	p.directory = directory
	p.instanceID = instanceID
	return p
}

// Push never blocks longer than the push timeout and never returns an error,
// the result is one of the metrics.Push* values
func (p *Pusher) Push(ctx context.Context, userID string, resp domain.WSResponse) string {
	result := p.push(ctx, userID, resp)
	metrics.PushResults.WithLabelValues(result).Inc()
	return result
}

func (p *Pusher) push(ctx context.Context, userID string, resp domain.WSResponse) string {
	if ch, ok := p.router.Resolve(userID); ok {
		if err := ch.Push(resp); err != nil {
			logger.Log.Debug("push failed", zap.String("userID", userID), zap.String("action", resp.Action), zap.Error(err))
			return metrics.PushFailed
		}
		return metrics.PushDelivered
	}

	if p.relay == nil || p.directory == nil {
		logger.Log.Debug("push skipped", zap.String("userID", userID), zap.Error(domain.ErrNotConnected))
		return metrics.PushAbsent
	}

	// 請求結束不影響已開始的轉送
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	entry, err := p.directory.Lookup(ctx, userID)
	if err != nil {
		logger.Log.Debug("presence lookup failed", zap.String("userID", userID), zap.Error(err))
		return metrics.PushFailed
	}
	if entry == nil || entry.InstanceID == p.instanceID {
		logger.Log.Debug("push skipped", zap.String("userID", userID), zap.Error(domain.ErrNotConnected))
		return metrics.PushAbsent
	}

	env := repository.RelayEnvelope{Origin: p.instanceID, Response: resp}
	if err := p.relay.Publish(ctx, userID, env); err != nil {
		logger.Log.Debug("relay publish failed", zap.String("userID", userID), zap.String("instance", entry.InstanceID), zap.Error(err))
		return metrics.PushFailed
	}
	return metrics.PushRelayed
}

// DeliverRelayed handler of the redis subscription, hands the event to the local channel if this instance holds it
func (p *Pusher) DeliverRelayed(userID string, env repository.RelayEnvelope) {
	if env.Origin == p.instanceID {
		return
	}
	ch, ok := p.router.Resolve(userID)
	if !ok {
		return
	}
	if err := ch.Push(env.Response); err != nil {
		logger.Log.Debug("relayed push failed", zap.String("userID", userID), zap.String("origin", env.Origin), zap.Error(err))
	}
}
