package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gwi.com/llm-chat-service/internal/auth"
	"gwi.com/llm-chat-service/internal/store"
	"gwi.com/llm-chat-service/internal/utils"
)

const (
	CategorySignUp = "signUp"
	CategoryLogIn  = "logIn"
	CategoryChat   = "chat"

	activityWindow = 24 * time.Hour
)

var reportHeader = []string{"chatQuestion", "chatAnswer", "memberEmail"}

type Activity struct {
	SignUpCount int64 `json:"signUpCount"`
	LogInCount  int64 `json:"logInCount"`
	ChatCount   int64 `json:"chatCount"`
}

type LogService struct {
	dbStore *store.SQLiteStore
	tokens  *auth.TokenService
	now     Clock
}

func NewLogService(db *store.SQLiteStore, tokens *auth.TokenService, now Clock) *LogService {
	if now == nil {
		now = time.Now
	}
	return &LogService{dbStore: db, tokens: tokens, now: now}
}

// Log appends an activity entry. It commits on its own, detached from the
// caller's cancellation, and never fails the caller: errors are only logged.
func (s *LogService) Log(ctx context.Context, category, content string) {
	entry := store.LogEntry{
		Category:  category,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.dbStore.AppendLog(context.WithoutCancel(ctx), &entry); err != nil {
		slog.Error("Failed to write activity log", "category", category, "error", err)
	}
}

func (s *LogService) MemberActivity(ctx context.Context, token string) (*Activity, error) {
	if _, err := requireAdmin(s.tokens, token); err != nil {
		return nil, err
	}

	now := s.now()
	counts, err := s.dbStore.CountLogsByCategory(ctx, now.Add(-activityWindow), now)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}

	return &Activity{
		SignUpCount: counts[CategorySignUp],
		LogInCount:  counts[CategoryLogIn],
		ChatCount:   counts[CategoryChat],
	}, nil
}

// Report renders every chat created in the last 24 hours as CSV.
func (s *LogService) Report(ctx context.Context, token string) (string, error) {
	if _, err := requireAdmin(s.tokens, token); err != nil {
		return "", err
	}

	now := s.now()
	chats, err := s.dbStore.ListChatsCreatedBetween(ctx, now.Add(-activityWindow), now)
	if err != nil {
		return "", fmt.Errorf("failed to load chats for report: %w", err)
	}

	rows := make([][]string, 0, len(chats))
	for _, chat := range chats {
		rows = append(rows, []string{chat.Question, chat.Answer, chat.MemberEmail})
	}
	return utils.RenderCSV(reportHeader, rows)
}
