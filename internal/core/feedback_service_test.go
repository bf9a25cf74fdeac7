package core

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/llm-chat-service/internal/store"
)

// feedbackFixture has alice owning one chat, plus bob and an admin.
type feedbackFixture struct {
	env     *testEnv
	aliceID int64
	alice   string
	bob     string
	admin   string
	chatID  int64
}

func newFeedbackFixture(t *testing.T) *feedbackFixture {
	t.Helper()
	env := newTestEnv(t)
	aliceID, alice := env.signUp(t, "alice@example.com", "user")
	_, bob := env.signUp(t, "bob@example.com", "user")
	_, admin := env.signUp(t, "admin@example.com", "admin")

	_, err := env.chats.Chat(context.Background(), "hello", "", alice)
	require.NoError(t, err)

	return &feedbackFixture{
		env:     env,
		aliceID: aliceID,
		alice:   alice,
		bob:     bob,
		admin:   admin,
		chatID:  env.memberChats(t, aliceID)[0].ID,
	}
}

func TestSaveFeedback(t *testing.T) {
	f := newFeedbackFixture(t)
	ctx := context.Background()

	id, err := f.env.feedback.Save(ctx, f.chatID, true, "helpful", f.alice)
	require.NoError(t, err)

	stored, err := f.env.store.GetFeedbackByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, strconv.FormatInt(f.aliceID, 10), stored.MemberID)
	assert.Equal(t, strconv.FormatInt(f.chatID, 10), stored.ChatID)
	assert.Equal(t, "helpful", stored.Content)
	assert.True(t, stored.IsPositive)
	assert.Equal(t, store.FeedbackStatusPending, stored.Status)
}

func TestSaveFeedback_Authorization(t *testing.T) {
	f := newFeedbackFixture(t)
	ctx := context.Background()

	_, err := f.env.feedback.Save(ctx, f.chatID, false, "not mine", f.bob)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.env.feedback.Save(ctx, f.chatID, false, "reviewed", f.admin)
	assert.NoError(t, err)

	_, err = f.env.feedback.Save(ctx, f.chatID, false, "x", "not-a-token")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestSaveFeedback_UnknownChat(t *testing.T) {
	f := newFeedbackFixture(t)

	_, err := f.env.feedback.Save(context.Background(), f.chatID+1, true, "x", f.alice)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateFeedback(t *testing.T) {
	f := newFeedbackFixture(t)
	ctx := context.Background()
	id, err := f.env.feedback.Save(ctx, f.chatID, true, "helpful", f.alice)
	require.NoError(t, err)

	status := func() string {
		fb, err := f.env.store.GetFeedbackByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, fb)
		return fb.Status
	}

	t.Run("invalid status leaves entry unchanged", func(t *testing.T) {
		err := f.env.feedback.Update(ctx, id, "done", f.admin)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, store.FeedbackStatusPending, status())
	})

	t.Run("non-admin is rejected", func(t *testing.T) {
		err := f.env.feedback.Update(ctx, id, store.FeedbackStatusResolve, f.alice)
		assert.ErrorIs(t, err, ErrAuthorization)
		assert.Equal(t, store.FeedbackStatusPending, status())
	})

	t.Run("unknown feedback", func(t *testing.T) {
		err := f.env.feedback.Update(ctx, id+1, store.FeedbackStatusResolve, f.admin)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("admin resolves", func(t *testing.T) {
		require.NoError(t, f.env.feedback.Update(ctx, id, store.FeedbackStatusResolve, f.admin))
		assert.Equal(t, store.FeedbackStatusResolve, status())
	})
}

func TestGetFeedback(t *testing.T) {
	f := newFeedbackFixture(t)
	ctx := context.Background()
	id, err := f.env.feedback.Save(ctx, f.chatID, false, "wrong answer", f.alice)
	require.NoError(t, err)

	fb, err := f.env.feedback.Get(ctx, id, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "wrong answer", fb.Content)

	fb, err = f.env.feedback.Get(ctx, id, f.admin)
	require.NoError(t, err)
	assert.Equal(t, id, fb.ID)

	_, err = f.env.feedback.Get(ctx, id, f.bob)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.env.feedback.Get(ctx, id+1, f.admin)
	assert.ErrorIs(t, err, ErrNotFound)
}
