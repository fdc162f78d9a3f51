package repository

import (
	"context"
	"errors"
	"fmt"

	"social_chat_service/internal/chat/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ErrProfileNotFound member not found in identity store
var ErrProfileNotFound = errors.New("profile not found")

// IdentityRepository user identity collaborator, display metadata only
type IdentityRepository interface {
	FindProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

type pgIdentityRepository struct {
	db *pgxpool.Pool
}

// NewPostgresIdentityRepository create IdentityRepository on the member table
func NewPostgresIdentityRepository(db *pgxpool.Pool) IdentityRepository {
	return &pgIdentityRepository{db: db}
}

func (r *pgIdentityRepository) FindProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	row := r.db.QueryRow(ctx,
		"SELECT member_id, COALESCE(name, ''), COALESCE(profile_picture, '') FROM member WHERE member_id = $1",
		userID)

	var p domain.Profile
	if err := row.Scan(&p.UserID, &p.Name, &p.Avatar); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile %s: %w", userID, err)
	}
	return &p, nil
}

type staticIdentityRepository struct {
	profiles map[string]domain.Profile
}

// NewStaticIdentityRepository fixed profiles, used with the memory store
func NewStaticIdentityRepository(profiles ...domain.Profile) IdentityRepository {
	m := make(map[string]domain.Profile, len(profiles))
	for _, p := range profiles {
		m[p.UserID] = p
	}
	return &staticIdentityRepository{profiles: m}
}

func (r *staticIdentityRepository) FindProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}
