package database

import (
	"context"
	"fmt"
	"time"

	"social_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaWriterWithRetry 建立 Kafka Writer, 並以 leader 連線確認 broker 可用
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	if len(k.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	var err error
	for attempt := 1; attempt <= max(k.RetryCount, 1); attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var conn *kafka.Conn
		conn, err = kafka.DialLeader(ctx, "tcp", k.Brokers[0], k.Topic, 0)
		cancel()
		if err == nil {
			conn.Close()
			logger.Log.Info("Kafka writer ready", zap.String("topic", k.Topic), zap.Int("attempt", attempt))
			return &kafka.Writer{
				Addr:                   kafka.TCP(k.Brokers...),
				Topic:                  k.Topic,
				Balancer:               &kafka.Hash{},
				AllowAutoTopicCreation: true,
				BatchTimeout:           50 * time.Millisecond,
			}, nil
		}

		logger.Log.Warn("Kafka dial failed, retrying...", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(k.RetryInterval)
	}

	return nil, fmt.Errorf("unable to reach kafka after %d attempts: %w", k.RetryCount, err)
}
