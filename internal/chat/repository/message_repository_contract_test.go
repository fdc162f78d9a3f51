package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"social_chat_service/internal/chat/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runMessageRepositoryContract 每個 MessageRepository 實作都要通過
func runMessageRepositoryContract(t *testing.T, repo MessageRepository) {
	ctx := context.Background()

	// 每次跑用新的 user id, 共用資料庫也不互相干擾
	u1, u2, u3 := "u1-"+uuid.NewString(), "u2-"+uuid.NewString(), "u3-"+uuid.NewString()

	send := func(from, to, content string) domain.Message {
		m := &domain.Message{SenderID: from, ReceiverID: to, Content: content}
		require.NoError(t, repo.Append(ctx, m))
		time.Sleep(2 * time.Millisecond)
		return *m
	}

	t.Run("append rejects empty payload", func(t *testing.T) {
		m := &domain.Message{SenderID: u1, ReceiverID: u2}
		err := repo.Append(ctx, m)
		assert.True(t, errors.Is(err, domain.ErrValidation))

		msgs, err := repo.ListBetween(ctx, u1, u2)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	first := send(u1, u2, "hi")
	second := send(u2, u1, "hello back")
	third := send(u1, u2, "how are you")
	attach := &domain.Message{SenderID: u3, ReceiverID: u2, Image: "uploads/image/x.png"}
	require.NoError(t, repo.Append(ctx, attach))

	t.Run("append stamps id and time", func(t *testing.T) {
		assert.NotEmpty(t, first.ID)
		assert.False(t, first.CreatedAt.IsZero())
		assert.False(t, first.IsRead)
		assert.Equal(t, domain.AttachmentFallback, attach.Content)
	})

	t.Run("list between is symmetric and ascending", func(t *testing.T) {
		a, err := repo.ListBetween(ctx, u1, u2)
		require.NoError(t, err)
		b, err := repo.ListBetween(ctx, u2, u1)
		require.NoError(t, err)

		require.Len(t, a, 3)
		assert.Equal(t, []string{first.ID, second.ID, third.ID}, ids(a))
		assert.Equal(t, ids(a), ids(b))
		assert.Equal(t, "hi", a[0].Content)
	})

	t.Run("summaries before read", func(t *testing.T) {
		sums, err := repo.SummarizeByUser(ctx, u2)
		require.NoError(t, err)
		require.Len(t, sums, 2)

		// u3 的附件最新
		assert.Equal(t, u3, sums[0].CounterpartID)
		assert.Equal(t, domain.AttachmentFallback, sums[0].LastMessage)
		assert.EqualValues(t, 1, sums[0].UnreadCount)

		assert.Equal(t, u1, sums[1].CounterpartID)
		assert.Equal(t, "how are you", sums[1].LastMessage)
		assert.EqualValues(t, 2, sums[1].UnreadCount)

		// u1 角度: 自己送出的不算未讀, u2 回的那則未讀
		sums, err = repo.SummarizeByUser(ctx, u1)
		require.NoError(t, err)
		require.Len(t, sums, 1)
		assert.Equal(t, u2, sums[0].CounterpartID)
		assert.EqualValues(t, 1, sums[0].UnreadCount)
	})

	t.Run("mark read batch is idempotent", func(t *testing.T) {
		at := time.Now().UTC().Truncate(time.Millisecond)
		n, err := repo.MarkReadBatch(ctx, u2, u1, at)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = repo.MarkReadBatch(ctx, u2, u1, at)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		msgs, err := repo.ListBetween(ctx, u1, u2)
		require.NoError(t, err)
		for _, m := range msgs {
			if m.SenderID == u1 {
				assert.True(t, m.IsRead)
				require.NotNil(t, m.ReadAt)
			} else {
				// u2 送出的訊息不受影響
				assert.False(t, m.IsRead)
				assert.Nil(t, m.ReadAt)
			}
		}

		sums, err := repo.SummarizeByUser(ctx, u2)
		require.NoError(t, err)
		for _, s := range sums {
			if s.CounterpartID == u1 {
				assert.EqualValues(t, 0, s.UnreadCount)
			}
			if s.CounterpartID == u3 {
				assert.EqualValues(t, 1, s.UnreadCount)
			}
		}
	})

	t.Run("unknown user has no summaries", func(t *testing.T) {
		sums, err := repo.SummarizeByUser(ctx, "nobody-"+uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, sums)
	})
}

func ids(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestMemoryMessageRepository_Contract(t *testing.T) {
	runMessageRepositoryContract(t, NewMemoryMessageRepository())
}

func TestMemoryMessageRepository_SameTimestampTieBreak(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 1, 23, 0, 0, 0, 0, time.UTC)
	repo := &memoryMessageRepository{now: func() time.Time { return fixed }}

	require.NoError(t, repo.Append(ctx, &domain.Message{SenderID: "a", ReceiverID: "b", Content: "one"}))
	require.NoError(t, repo.Append(ctx, &domain.Message{SenderID: "a", ReceiverID: "b", Content: "two"}))

	msgs, err := repo.ListBetween(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)

	sums, err := repo.SummarizeByUser(ctx, "b")
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "two", sums[0].LastMessage)
}
