package repository

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"social_chat_service/pkg/database"

	"github.com/google/uuid"
)

// AttachmentKind image or video
type AttachmentKind string

const (
	// AttachmentImage image attachment
	AttachmentImage AttachmentKind = "image"
	// AttachmentVideo video attachment
	AttachmentVideo AttachmentKind = "video"
)

// AttachmentRepository media storage collaborator
type AttachmentRepository interface {
	Upload(ctx context.Context, kind AttachmentKind, filename string, r io.Reader, size int64, contentType string) (string, error)
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Delete remove an uploaded object whose message was never stored
	Delete(ctx context.Context, key string) error
}

type minioAttachmentRepository struct {
	client *database.MinIOClient
}

// NewMinIOAttachmentRepository create AttachmentRepository on MinIO
func NewMinIOAttachmentRepository(client *database.MinIOClient) AttachmentRepository {
	return &minioAttachmentRepository{client: client}
}

// AttachmentKey uploads/<kind>/<uuid><ext>
func AttachmentKey(kind AttachmentKind, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("uploads/%s/%s%s", kind, uuid.New().String(), ext)
}

func (r *minioAttachmentRepository) Upload(ctx context.Context, kind AttachmentKind, filename string, rd io.Reader, size int64, contentType string) (string, error) {
	key := AttachmentKey(kind, filename)
	if err := r.client.PutObject(ctx, key, rd, size, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func (r *minioAttachmentRepository) PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !strings.HasPrefix(key, "uploads/") {
		return "", fmt.Errorf("invalid attachment key %q", key)
	}
	return r.client.PresignGetURL(ctx, key, expiry)
}

func (r *minioAttachmentRepository) Delete(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, "uploads/") {
		return fmt.Errorf("invalid attachment key %q", key)
	}
	if err := r.client.RemoveObject(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
