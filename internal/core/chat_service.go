package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gwi.com/llm-chat-service/internal/auth"
	"gwi.com/llm-chat-service/internal/observability"
	"gwi.com/llm-chat-service/internal/store"
)

// ThreadWindow is how long after its last turn a thread keeps being amended
// instead of a new one being started.
const ThreadWindow = 30 * time.Minute

const (
	MaxPageSize = 100

	turnCreated = "created"
	turnAmended = "amended"
)

type ChatPage struct {
	Items         []store.Chat `json:"content"`
	Page          int          `json:"page"`
	Size          int          `json:"size"`
	TotalElements int64        `json:"totalElements"`
	TotalPages    int64        `json:"totalPages"`
}

type ChatService struct {
	dbStore    *store.SQLiteStore
	tokens     *auth.TokenService
	completer  Completer
	logService *LogService
	metrics    *observability.Metrics
	now        Clock

	// Serializes the latest-chat read and the following write per member.
	memberLocks sync.Map // map[int64]*sync.Mutex
}

func NewChatService(db *store.SQLiteStore, tokens *auth.TokenService, completer Completer, logs *LogService, metrics *observability.Metrics, now Clock) *ChatService {
	if now == nil {
		now = time.Now
	}
	return &ChatService{
		dbStore:    db,
		tokens:     tokens,
		completer:  completer,
		logService: logs,
		metrics:    metrics,
		now:        now,
	}
}

func (s *ChatService) lockMember(memberID int64) func() {
	mu, _ := s.memberLocks.LoadOrStore(memberID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Chat sends the prompt upstream and records the turn on the member's
// thread, returning the answer.
func (s *ChatService) Chat(ctx context.Context, prompt, model, token string) (string, error) {
	s.logService.Log(ctx, CategoryChat, "chat attempt")

	caller, err := resolveCaller(s.tokens, token)
	if err != nil {
		return "", err
	}
	member, err := s.dbStore.GetMemberByEmail(ctx, caller.Email)
	if err != nil {
		return "", fmt.Errorf("failed to look up member: %w", err)
	}
	if member == nil {
		return "", fmt.Errorf("%w: member %s", ErrNotFound, caller.Email)
	}

	answer, err := s.completer.Complete(ctx, CompletionRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	if err := s.recordTurn(ctx, member.ID, prompt, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// recordTurn starts a new thread when the member has none or the last one is
// older than ThreadWindow, and otherwise overwrites the last one in place.
func (s *ChatService) recordTurn(ctx context.Context, memberID int64, question, answer string) error {
	unlock := s.lockMember(memberID)
	defer unlock()

	now := s.now()
	last, err := s.dbStore.GetLatestChatByMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to load latest chat: %w", err)
	}

	if last == nil || now.Sub(last.CreatedAt) > ThreadWindow {
		chat := store.Chat{
			Question:  question,
			Answer:    answer,
			CreatedAt: now,
			MemberID:  &memberID,
		}
		if err := s.dbStore.CreateChat(ctx, &chat); err != nil {
			return fmt.Errorf("failed to store chat: %w", err)
		}
		s.metrics.RecordChatTurn(turnCreated)
		slog.Debug("Started new chat thread", "member_id", memberID, "chat_id", chat.ID)
		return nil
	}

	last.Question = question
	last.Answer = answer
	last.CreatedAt = now
	if err := s.dbStore.UpdateChat(ctx, last); err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	s.metrics.RecordChatTurn(turnAmended)
	slog.Debug("Amended chat thread", "member_id", memberID, "chat_id", last.ID)
	return nil
}

// DeleteThread deletes a chat owned by the caller, or any chat for admins.
func (s *ChatService) DeleteThread(ctx context.Context, chatID int64, token string) (int64, error) {
	chat, err := s.dbStore.GetChatByID(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to get chat: %w", err)
	}
	if chat == nil {
		return 0, fmt.Errorf("%w: chat %d", ErrNotFound, chatID)
	}

	caller, err := resolveCaller(s.tokens, token)
	if err != nil {
		return 0, err
	}
	ownerEmail, err := chatOwnerEmail(ctx, s.dbStore, chat)
	if err != nil {
		return 0, err
	}
	if !caller.CanAccess(ownerEmail) {
		return 0, fmt.Errorf("%w: chat %d belongs to another member", ErrAuthorization, chatID)
	}

	if err := s.dbStore.DeleteChat(ctx, chatID); err != nil {
		return 0, fmt.Errorf("failed to delete chat: %w", err)
	}
	return chatID, nil
}

// GetThread pages through the chats of the member with the given email.
// Sorting is by creation time, descending when sort is "desc" (any case).
func (s *ChatService) GetThread(ctx context.Context, token, email string, page, size int, sort string) (*ChatPage, error) {
	caller, err := resolveCaller(s.tokens, token)
	if err != nil {
		return nil, err
	}
	if page < 0 {
		return nil, fmt.Errorf("%w: page must not be negative", ErrValidation)
	}
	if size < 1 || size > MaxPageSize {
		return nil, fmt.Errorf("%w: size must be between 1 and %d", ErrValidation, MaxPageSize)
	}

	member, err := s.dbStore.GetMemberByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, email)
	}
	if !caller.CanAccess(member.Email) {
		return nil, fmt.Errorf("%w: cannot read chats of %s", ErrAuthorization, email)
	}

	descending := strings.EqualFold(sort, "desc")
	chats, err := s.dbStore.ListChatsByMember(ctx, member.ID, size, page*size, descending)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	total, err := s.dbStore.CountChatsByMember(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count chats: %w", err)
	}

	return &ChatPage{
		Items:         chats,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    (total + int64(size) - 1) / int64(size),
	}, nil
}

// chatOwnerEmail returns the email of the chat's owner, or "" for ownerless chats.
func chatOwnerEmail(ctx context.Context, db *store.SQLiteStore, chat *store.Chat) (string, error) {
	if chat.MemberID == nil {
		return "", nil
	}
	owner, err := db.GetMemberByID(ctx, *chat.MemberID)
	if err != nil {
		return "", fmt.Errorf("failed to look up chat owner: %w", err)
	}
	if owner == nil {
		return "", nil
	}
	return owner.Email, nil
}
