package app

import (
	"context"
	"encoding/json"
	"time"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/repository"
	errprocess "social_chat_service/pkg/err"
	"social_chat_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// DeliverySource subset of *amqp.Channel used by the consumer
type DeliverySource interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// NotificationConsumer 消費 rabbitmq 的訊息通知並寫入 notifications collection
type NotificationConsumer struct {
	source     DeliverySource
	repo       repository.NotificationRepository
	queueName  string
	retryDelay time.Duration
}

// NewNotificationConsumer 建構 NotificationConsumer
func NewNotificationConsumer(source DeliverySource, repo repository.NotificationRepository, queueName string, retryDelay time.Duration) *NotificationConsumer {
	return &NotificationConsumer{
		source:     source,
		repo:       repo,
		queueName:  queueName,
		retryDelay: retryDelay,
	}
}

// StartConsumer 開始消費訊息, 直到 ctx 結束或 channel 關閉
func (c *NotificationConsumer) StartConsumer(ctx context.Context) error {
	msgs, err := c.source.Consume(
		c.queueName,
		"",    // consumer tag，留空由系統分配
		false, // autoAck 為 false，使用手動確認
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return errprocess.Wrap("consume "+c.queueName, err)
	}

	logger.Log.Info("notification consumer started", zap.String("queue", c.queueName))
	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				logger.Log.Info("notification consumer channel closed")
				return nil
			}
			c.handle(ctx, d)
		case <-ctx.Done():
			logger.Log.Info("notification consumer stopped")
			return nil
		}
	}
}

func (c *NotificationConsumer) handle(ctx context.Context, d amqp.Delivery) {
	var n domain.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		// 格式錯誤重送也不會成功, 直接丟棄
		logger.Log.Error("notification unmarshal", zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			logger.Log.Error("notification nack", zap.Error(err))
		}
		return
	}

	if err := c.repo.Insert(ctx, &n); err != nil {
		logger.Log.Error("notification insert", zap.String("id", n.ID), zap.Error(err))
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
		}
		if err := d.Nack(false, true); err != nil {
			logger.Log.Error("notification nack", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		logger.Log.Error("notification ack", zap.String("id", n.ID), zap.Error(err))
	}
}
