package repository

import (
	"context"
	"errors"
	"time"

	"social_chat_service/pkg/database"
)

// PresenceEntry where a user is connected across instances
type PresenceEntry struct {
	UserID     string    `json:"user_id"`
	InstanceID string    `json:"instance_id"`
	ChannelID  string    `json:"channel_id"`
	JoinedAt   time.Time `json:"joined_at"`
}

// PresenceRepository shared presence directory
type PresenceRepository interface {
	Register(ctx context.Context, entry PresenceEntry, ttl time.Duration) error
	// Unregister only when channelID still owns the entry
	Unregister(ctx context.Context, userID, channelID string) error
	// Lookup nil entry when the user is offline everywhere
	Lookup(ctx context.Context, userID string) (*PresenceEntry, error)
	Refresh(ctx context.Context, userID string, ttl time.Duration) error
}

type redisPresenceRepository struct {
	repo database.RedisRepository[PresenceEntry]
}

// NewRedisPresenceRepository create PresenceRepository on a RedisRepository
func NewRedisPresenceRepository(repo database.RedisRepository[PresenceEntry]) PresenceRepository {
	return &redisPresenceRepository{repo: repo}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

func (r *redisPresenceRepository) Register(ctx context.Context, entry PresenceEntry, ttl time.Duration) error {
	return r.repo.Set(ctx, presenceKey(entry.UserID), entry, ttl)
}

func (r *redisPresenceRepository) Unregister(ctx context.Context, userID, channelID string) error {
	cur, err := r.Lookup(ctx, userID)
	if err != nil || cur == nil {
		return err
	}
	// 已被別的 channel 取代
	if cur.ChannelID != channelID {
		return nil
	}
	return r.repo.Del(ctx, presenceKey(userID))
}

func (r *redisPresenceRepository) Lookup(ctx context.Context, userID string) (*PresenceEntry, error) {
	entry, err := r.repo.Get(ctx, presenceKey(userID))
	if errors.Is(err, database.ErrRedisNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *redisPresenceRepository) Refresh(ctx context.Context, userID string, ttl time.Duration) error {
	return r.repo.ExtendTTL(ctx, presenceKey(userID), ttl)
}
