package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationTypeMessage notification type for a new direct message
const NotificationTypeMessage = "message"

// Notification best effort "new message" notification
type Notification struct {
	ID          string    `bson:"_id" json:"id"`
	Type        string    `bson:"type" json:"type"`
	RecipientID string    `bson:"recipient_id" json:"recipientId"`
	ActorID     string    `bson:"actor_id" json:"actorId"`
	MessageID   string    `bson:"message_id" json:"messageId"`
	Preview     string    `bson:"preview" json:"preview"`
	IsRead      bool      `bson:"is_read" json:"isRead"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}

const previewLimit = 80

// NewMessageNotification build the notification for a persisted message
func NewMessageNotification(m *Message) Notification {
	preview := []rune(m.Content)
	if len(preview) > previewLimit {
		preview = append(preview[:previewLimit], '…')
	}
	return Notification{
		ID:          uuid.New().String(),
		Type:        NotificationTypeMessage,
		RecipientID: m.ReceiverID,
		ActorID:     m.SenderID,
		MessageID:   m.ID,
		Preview:     string(preview),
		CreatedAt:   m.CreatedAt,
	}
}
