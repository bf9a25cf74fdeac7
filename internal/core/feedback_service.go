package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gwi.com/llm-chat-service/internal/auth"
	"gwi.com/llm-chat-service/internal/store"
)

type FeedbackService struct {
	dbStore *store.SQLiteStore
	tokens  *auth.TokenService
	now     Clock
}

func NewFeedbackService(db *store.SQLiteStore, tokens *auth.TokenService, now Clock) *FeedbackService {
	if now == nil {
		now = time.Now
	}
	return &FeedbackService{dbStore: db, tokens: tokens, now: now}
}

// Save records feedback on a chat. Only the chat's author or an admin may
// leave it.
func (s *FeedbackService) Save(ctx context.Context, chatID int64, isPositive bool, content, token string) (int64, error) {
	caller, err := resolveCaller(s.tokens, token)
	if err != nil {
		return 0, err
	}

	member, err := s.dbStore.GetMemberByEmail(ctx, caller.Email)
	if err != nil {
		return 0, fmt.Errorf("failed to look up member: %w", err)
	}
	if member == nil {
		return 0, fmt.Errorf("%w: member %s", ErrNotFound, caller.Email)
	}

	chat, err := s.dbStore.GetChatByID(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to get chat: %w", err)
	}
	if chat == nil {
		return 0, fmt.Errorf("%w: chat %d", ErrNotFound, chatID)
	}

	ownerEmail, err := chatOwnerEmail(ctx, s.dbStore, chat)
	if err != nil {
		return 0, err
	}
	if !caller.CanAccess(ownerEmail) {
		return 0, fmt.Errorf("%w: only the chat author or an admin can leave feedback", ErrAuthorization)
	}

	feedback := store.Feedback{
		MemberID:   strconv.FormatInt(member.ID, 10),
		ChatID:     strconv.FormatInt(chat.ID, 10),
		Content:    content,
		IsPositive: isPositive,
		CreatedAt:  s.now(),
		Status:     store.FeedbackStatusPending,
	}
	if err := s.dbStore.CreateFeedback(ctx, &feedback); err != nil {
		return 0, fmt.Errorf("failed to store feedback: %w", err)
	}
	return feedback.ID, nil
}

// Update sets the status of a feedback entry. Admin only.
func (s *FeedbackService) Update(ctx context.Context, feedbackID int64, status, token string) error {
	if _, err := requireAdmin(s.tokens, token); err != nil {
		return err
	}
	if status != store.FeedbackStatusPending && status != store.FeedbackStatusResolve {
		return fmt.Errorf("%w: status must be %q or %q", ErrValidation, store.FeedbackStatusPending, store.FeedbackStatusResolve)
	}

	feedback, err := s.dbStore.GetFeedbackByID(ctx, feedbackID)
	if err != nil {
		return fmt.Errorf("failed to get feedback: %w", err)
	}
	if feedback == nil {
		return fmt.Errorf("%w: feedback %d", ErrNotFound, feedbackID)
	}

	if err := s.dbStore.UpdateFeedbackStatus(ctx, feedbackID, status); err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	return nil
}

// Get returns a feedback entry to an admin or to the member who wrote it.
func (s *FeedbackService) Get(ctx context.Context, feedbackID int64, token string) (*store.Feedback, error) {
	caller, err := resolveCaller(s.tokens, token)
	if err != nil {
		return nil, err
	}

	feedback, err := s.dbStore.GetFeedbackByID(ctx, feedbackID)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	if feedback == nil {
		return nil, fmt.Errorf("%w: feedback %d", ErrNotFound, feedbackID)
	}
	if caller.IsAdmin() {
		return feedback, nil
	}

	member, err := s.dbStore.GetMemberByEmail(ctx, caller.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up member: %w", err)
	}
	if member == nil || strconv.FormatInt(member.ID, 10) != feedback.MemberID {
		return nil, fmt.Errorf("%w: feedback %d belongs to another member", ErrAuthorization, feedbackID)
	}
	return feedback, nil
}
