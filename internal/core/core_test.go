package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gwi.com/llm-chat-service/internal/auth"
	"gwi.com/llm-chat-service/internal/store"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeCompleter answers every request with a fixed reply, or fails with err.
type fakeCompleter struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type testEnv struct {
	store     *store.SQLiteStore
	clock     *testClock
	tokens    *auth.TokenService
	completer *fakeCompleter
	logs      *LogService
	members   *MemberService
	chats     *ChatService
	feedback  *FeedbackService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.NewSQLiteStore("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens := auth.NewTokenService(testSecret, 10*time.Hour).WithClock(clock.Now)
	completer := &fakeCompleter{answer: "an answer"}
	logs := NewLogService(db, tokens, clock.Now)

	return &testEnv{
		store:     db,
		clock:     clock,
		tokens:    tokens,
		completer: completer,
		logs:      logs,
		members:   NewMemberService(db, tokens, logs, clock.Now),
		chats:     NewChatService(db, tokens, completer, logs, nil, clock.Now),
		feedback:  NewFeedbackService(db, tokens, clock.Now),
	}
}

// signUp registers a member and returns its id and a token for it.
func (e *testEnv) signUp(t *testing.T, email, role string) (int64, string) {
	t.Helper()
	ctx := context.Background()
	id, err := e.members.Register(ctx, email, "password-"+email, "Name", role)
	require.NoError(t, err)
	token, err := e.members.Login(ctx, email, "password-"+email)
	require.NoError(t, err)
	return id, token
}

func (e *testEnv) memberChats(t *testing.T, memberID int64) []store.Chat {
	t.Helper()
	chats, err := e.store.ListChatsByMember(context.Background(), memberID, 100, 0, false)
	require.NoError(t, err)
	return chats
}

func (e *testEnv) logCounts(t *testing.T) map[string]int64 {
	t.Helper()
	now := e.clock.Now()
	counts, err := e.store.CountLogsByCategory(context.Background(), now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	return counts
}

var errBoom = errors.New("boom")
