package app

import (
	"context"
	"errors"
	"sort"

	"social_chat_service/internal/chat/domain"
	"social_chat_service/internal/chat/repository"
	"social_chat_service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SummaryUseCase chat list and history
type SummaryUseCase struct {
	msgRepo     repository.MessageRepository
	identity    repository.IdentityRepository
	lookupLimit int
}

// NewSummaryUseCase create SummaryUseCase, lookupLimit bounds concurrent profile lookups
func NewSummaryUseCase(msgRepo repository.MessageRepository, identity repository.IdentityRepository, lookupLimit int) *SummaryUseCase {
	if lookupLimit <= 0 {
		lookupLimit = 1
	}
	return &SummaryUseCase{msgRepo: msgRepo, identity: identity, lookupLimit: lookupLimit}
}

// BuildSummaries one row per counterpart with display info, newest conversation first.
// A failed profile lookup falls back to "Unknown" instead of failing the list.
func (uc *SummaryUseCase) BuildSummaries(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	if userID == "" {
		return nil, errors.Join(domain.ErrValidation, errors.New("user is required"))
	}

	summaries, err := uc.msgRepo.SummarizeByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.SetLimit(uc.lookupLimit)
	for i := range summaries {
		s := &summaries[i]
		g.Go(func() error {
			s.DisplayName, s.DisplayAvatar = uc.displayOf(ctx, s.CounterpartID)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastTime.After(summaries[j].LastTime)
	})
	return summaries, nil
}

func (uc *SummaryUseCase) displayOf(ctx context.Context, userID string) (string, string) {
	if uc.identity == nil {
		return domain.UnknownDisplayName, ""
	}
	p, err := uc.identity.FindProfile(ctx, userID)
	if err != nil || p == nil {
		logger.Log.Debug("profile lookup failed", zap.String("userID", userID), zap.Error(err))
		return domain.UnknownDisplayName, ""
	}
	return p.Name, p.Avatar
}

// History all messages between the two users, oldest first
func (uc *SummaryUseCase) History(ctx context.Context, userID, otherUserID string) ([]domain.Message, error) {
	if userID == "" || otherUserID == "" {
		return nil, errors.Join(domain.ErrValidation, errors.New("both users are required"))
	}
	return uc.msgRepo.ListBetween(ctx, userID, otherUserID)
}
