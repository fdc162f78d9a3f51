package repository

import (
	"context"
	"encoding/json"
	"strings"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const userChannelPrefix = "chat:user:"

// RelayEnvelope cross-instance delivery payload
type RelayEnvelope struct {
	Origin   string            `json:"origin"`
	Response domain.WSResponse `json:"response"`
}

// RedisPubSub definition redis pub/sub between chat instances
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// UserChannel redis channel of a user
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// Publish 將 envelope 序列化後，發布到 receiver 的 channel
func (r *RedisPubSub) Publish(ctx context.Context, userID string, env RelayEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, UserChannel(userID), data).Err()
}

// SubscribeUsers 訂閱所有 chat:user:*，收到訊息後呼叫 handler(userID, envelope)
func (r *RedisPubSub) SubscribeUsers(ctx context.Context, handler func(userID string, env RelayEnvelope)) error {
	sub := r.client.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var env RelayEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					logger.Log.Error("relay unmarshal", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				handler(strings.TrimPrefix(m.Channel, userChannelPrefix), env)
			case <-ctx.Done():
				logger.Log.Info("relay subscription closed")
				return
			}
		}
	}()
	return nil
}
