package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gwi.com/llm-chat-service/internal/auth"
	"gwi.com/llm-chat-service/internal/store"
)

type MemberService struct {
	dbStore    *store.SQLiteStore
	tokens     *auth.TokenService
	logService *LogService
	now        Clock
}

func NewMemberService(db *store.SQLiteStore, tokens *auth.TokenService, logs *LogService, now Clock) *MemberService {
	if now == nil {
		now = time.Now
	}
	return &MemberService{dbStore: db, tokens: tokens, logService: logs, now: now}
}

// Register creates a member and returns its id. The sign-up attempt is logged
// whether or not it succeeds.
func (s *MemberService) Register(ctx context.Context, email, password, name, role string) (int64, error) {
	s.logService.Log(ctx, CategorySignUp, "sign-up attempt")

	existing, err := s.dbStore.GetMemberByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to look up member: %w", err)
	}
	if existing != nil {
		return 0, fmt.Errorf("%w: member %s", ErrDuplicate, email)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	member := store.Member{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.dbStore.CreateMember(ctx, &member); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, fmt.Errorf("%w: member %s", ErrDuplicate, email)
		}
		return 0, fmt.Errorf("failed to create member: %w", err)
	}
	return member.ID, nil
}

// Login checks the credentials and returns a signed token. The attempt is
// logged first.
func (s *MemberService) Login(ctx context.Context, email, password string) (string, error) {
	s.logService.Log(ctx, CategoryLogIn, "log-in attempt")

	member, err := s.dbStore.GetMemberByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up member: %w", err)
	}
	if member == nil {
		return "", fmt.Errorf("%w: member %s", ErrNotFound, email)
	}
	if !auth.CheckPasswordHash(password, member.PasswordHash) {
		return "", fmt.Errorf("%w: wrong password", ErrAuthentication)
	}

	token, err := s.tokens.Issue(member.Email, member.Role)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

// Delete removes a member and all of its chats.
func (s *MemberService) Delete(ctx context.Context, email string) error {
	member, err := s.dbStore.GetMemberByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up member: %w", err)
	}
	if member == nil {
		return fmt.Errorf("%w: member %s", ErrNotFound, email)
	}
	if err := s.dbStore.DeleteMember(ctx, member.ID); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}
