package repository

import (
	"context"
	"database/sql"
	"time"

	"social_chat_service/internal/chat/domain"

	"gorm.io/gorm"
)

// messageRecord postgres row of domain.Message, Seq keeps insertion order for tie-breaks
type messageRecord struct {
	ID                 string `gorm:"primaryKey;type:varchar(36)"`
	Seq                int64  `gorm:"autoIncrement;uniqueIndex"`
	SenderID           string `gorm:"type:varchar(64);not null;index:idx_messages_pair,priority:1"`
	ReceiverID         string `gorm:"type:varchar(64);not null;index:idx_messages_pair,priority:2;index:idx_messages_unread,priority:1"`
	SenderName         string
	ReceiverName       string
	SenderProfilePic   string
	ReceiverProfilePic string
	Content            string `gorm:"not null"`
	Image              string
	Video              string
	IsRead             bool `gorm:"not null;default:false;index:idx_messages_unread,priority:2"`
	ReadAt             *time.Time
	CreatedAt          time.Time `gorm:"not null;index"`
	UpdatedAt          time.Time
}

// TableName gorm table name
func (messageRecord) TableName() string {
	return "messages"
}

func toRecord(m *domain.Message) *messageRecord {
	return &messageRecord{
		ID:                 m.ID,
		SenderID:           m.SenderID,
		ReceiverID:         m.ReceiverID,
		SenderName:         m.SenderName,
		ReceiverName:       m.ReceiverName,
		SenderProfilePic:   m.SenderProfilePic,
		ReceiverProfilePic: m.ReceiverProfilePic,
		Content:            m.Content,
		Image:              m.Image,
		Video:              m.Video,
		IsRead:             m.IsRead,
		ReadAt:             m.ReadAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func (r *messageRecord) toDomain() domain.Message {
	return domain.Message{
		ID:                 r.ID,
		SenderID:           r.SenderID,
		ReceiverID:         r.ReceiverID,
		SenderName:         r.SenderName,
		ReceiverName:       r.ReceiverName,
		SenderProfilePic:   r.SenderProfilePic,
		ReceiverProfilePic: r.ReceiverProfilePic,
		Content:            r.Content,
		Image:              r.Image,
		Video:              r.Video,
		IsRead:             r.IsRead,
		ReadAt:             r.ReadAt,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository create a postgres MessageRepository
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// AutoMigrateMessages create / update the messages table
func AutoMigrateMessages(db *gorm.DB) error {
	return db.AutoMigrate(&messageRecord{})
}

func (r *gormMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	if err := msg.PrepareForAppend(time.Now()); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(toRecord(msg)).Error; err != nil {
		return storeErr("insert message", err)
	}
	return nil
}

func (r *gormMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	var records []messageRecord
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC, seq ASC").
		Find(&records).Error
	if err != nil {
		return nil, storeErr("find conversation", err)
	}

	messages := make([]domain.Message, 0, len(records))
	for i := range records {
		messages = append(messages, records[i].toDomain())
	}
	return messages, nil
}

func (r *gormMessageRepository) MarkReadBatch(ctx context.Context, receiverID, senderID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at, "updated_at": at})
	if res.Error != nil {
		return 0, storeErr("mark read", res.Error)
	}
	return res.RowsAffected, nil
}

// DISTINCT ON 取每個對方最新一則, unread 另外計數
const summarizeByUserSQL = `
WITH mine AS (
	SELECT CASE WHEN sender_id = @user THEN receiver_id ELSE sender_id END AS counterpart_id,
	       content, created_at, seq, receiver_id, is_read
	FROM messages
	WHERE sender_id = @user OR receiver_id = @user
), latest AS (
	SELECT DISTINCT ON (counterpart_id) counterpart_id, content AS last_message, created_at AS last_time
	FROM mine
	ORDER BY counterpart_id, created_at DESC, seq DESC
), unread AS (
	SELECT counterpart_id, COUNT(*) FILTER (WHERE receiver_id = @user AND NOT is_read) AS unread_count
	FROM mine
	GROUP BY counterpart_id
)
SELECT l.counterpart_id, l.last_message, l.last_time, u.unread_count
FROM latest l
JOIN unread u USING (counterpart_id)
ORDER BY l.last_time DESC`

type summaryRow struct {
	CounterpartID string
	LastMessage   string
	LastTime      time.Time
	UnreadCount   int64
}

func (r *gormMessageRepository) SummarizeByUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	var rows []summaryRow
	if err := r.db.WithContext(ctx).Raw(summarizeByUserSQL, sql.Named("user", userID)).Scan(&rows).Error; err != nil {
		return nil, storeErr("summaries", err)
	}

	results := make([]domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		results = append(results, domain.ConversationSummary{
			CounterpartID: row.CounterpartID,
			LastMessage:   row.LastMessage,
			LastTime:      row.LastTime.UTC(),
			UnreadCount:   row.UnreadCount,
		})
	}
	return results, nil
}
