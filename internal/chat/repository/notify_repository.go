package repository

import (
	"context"
	"encoding/json"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/pkg/database"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/mongo"
)

// Notifier best effort message notification publisher
type Notifier interface {
	NotifyMessage(ctx context.Context, n domain.Notification) error
}

type rabbitNotifier struct {
	rabbit database.RabbitRepo
	queue  string
}

// NewRabbitNotifier publish notifications to a rabbitmq queue
func NewRabbitNotifier(rabbit database.RabbitRepo, queue string) Notifier {
	return &rabbitNotifier{rabbit: rabbit, queue: queue}
}

func (n *rabbitNotifier) NotifyMessage(ctx context.Context, notification domain.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return n.rabbit.Publish(
		"",      // 預設 exchange
		n.queue, // queue 名稱
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    notification.ID,
			Body:         data,
		},
	)
}

// KafkaWriter subset of *kafka.Writer
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaNotifier struct {
	writer KafkaWriter
}

// NewKafkaNotifier publish notifications to kafka, keyed by recipient
func NewKafkaNotifier(writer KafkaWriter) Notifier {
	return &kafkaNotifier{writer: writer}
}

func (n *kafkaNotifier) NotifyMessage(ctx context.Context, notification domain.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(notification.RecipientID),
		Value: data,
	})
}

type nopNotifier struct{}

// NewNopNotifier notifications disabled
func NewNopNotifier() Notifier {
	return nopNotifier{}
}

func (nopNotifier) NotifyMessage(context.Context, domain.Notification) error {
	return nil
}

// NotificationRepository notification documents written by the consumer
type NotificationRepository interface {
	Insert(ctx context.Context, n *domain.Notification) error
}

type mongoNotificationRepository struct {
	coll *mongo.Collection
}

// NewMongoNotificationRepository create NotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) NotificationRepository {
	return &mongoNotificationRepository{coll: db.Collection("notifications")}
}

func (r *mongoNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	_, err := r.coll.InsertOne(ctx, n)
	// 重送的訊息 _id 重複, 視為已處理
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
