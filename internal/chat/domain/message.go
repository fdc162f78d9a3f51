package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttachmentFallback 只有附件時顯示的文字
const AttachmentFallback = "Sent an attachment"

// UnknownDisplayName 查不到對方資料時使用
const UnknownDisplayName = "Unknown"

var (
	// ErrValidation message must carry text, image or video
	ErrValidation = errors.New("message must carry text, image or video")
	// ErrNotConnected receiver has no realtime channel, never surfaced to callers
	ErrNotConnected = errors.New("receiver not connected")
	// ErrStoreUnavailable persistence layer failure
	ErrStoreUnavailable = errors.New("conversation store unavailable")
	// ErrForbidden member acting on a conversation it does not own
	ErrForbidden = errors.New("forbidden")
)

// Message 一則私訊
type Message struct {
	ID                 string     `bson:"_id" json:"id"`
	SenderID           string     `bson:"sender_id" json:"senderId"`
	ReceiverID         string     `bson:"receiver_id" json:"receiverId"`
	SenderName         string     `bson:"sender_name,omitempty" json:"senderName,omitempty"`
	ReceiverName       string     `bson:"receiver_name,omitempty" json:"receiverName,omitempty"`
	SenderProfilePic   string     `bson:"sender_profile_pic,omitempty" json:"senderProfilePic,omitempty"`
	ReceiverProfilePic string     `bson:"receiver_profile_pic,omitempty" json:"receiverProfilePic,omitempty"`
	Content            string     `bson:"content" json:"content"`
	Image              string     `bson:"image,omitempty" json:"image,omitempty"`
	Video              string     `bson:"video,omitempty" json:"video,omitempty"`
	IsRead             bool       `bson:"is_read" json:"isRead"`
	ReadAt             *time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt          time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `bson:"updated_at" json:"updatedAt"`
}

// HasAttachment image or video present
func (m *Message) HasAttachment() bool {
	return m.Image != "" || m.Video != ""
}

// Normalize trim payload, attachment only message gets the fallback text
func (m *Message) Normalize() {
	m.Content = strings.TrimSpace(m.Content)
	m.Image = strings.TrimSpace(m.Image)
	m.Video = strings.TrimSpace(m.Video)
	if m.Content == "" && m.HasAttachment() {
		m.Content = AttachmentFallback
	}
}

// Validate payload must have at least one of content, image, video
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Content) == "" && !m.HasAttachment() {
		return ErrValidation
	}
	if m.SenderID == "" || m.ReceiverID == "" {
		return errors.Join(ErrValidation, errors.New("sender and receiver are required"))
	}
	return nil
}

// Stamp assign server side id & timestamps (ms precision, UTC), a new message is always unread
func (m *Message) Stamp(now time.Time) {
	now = now.UTC().Truncate(time.Millisecond)
	m.ID = uuid.New().String()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.IsRead = false
	m.ReadAt = nil
}

// PrepareForAppend normalize, validate and stamp, shared by every store
func (m *Message) PrepareForAppend(now time.Time) error {
	m.Normalize()
	if err := m.Validate(); err != nil {
		return err
	}
	m.Stamp(now)
	return nil
}

// Counterpart the other side of the message from userID's point of view
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ConversationSummary one row of the chat list
type ConversationSummary struct {
	CounterpartID string    `bson:"_id" json:"counterpartId"`
	LastMessage   string    `bson:"last_message" json:"lastMessage"`
	LastTime      time.Time `bson:"last_time" json:"lastTime"`
	UnreadCount   int64     `bson:"unread_count" json:"unreadCount"`
	DisplayName   string    `bson:"-" json:"displayName"`
	DisplayAvatar string    `bson:"-" json:"displayAvatar"`
}

// Profile display metadata from the identity collaborator
type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}
