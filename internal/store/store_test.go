package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/naviable/naviable-go/internal/conversation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "naviable.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// Deterministic, strictly increasing clock.
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func TestAppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u, err := s.CreateUser(ctx)
	require.NoError(t, err)
	c, err := s.CreateChat(ctx, u.ID)
	require.NoError(t, err)

	err = s.Append(ctx, c.ID,
		conversation.User("flight from Boston to San Diego next week"),
		conversation.Message{Role: conversation.RoleAssistant, Content: "I'm processing your request...", Placeholder: true},
		conversation.Assistant("Flight-Agent", "## Flights\n\n- **Delta**: $320"),
	)
	require.NoError(t, err)

	tr, err := s.Read(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, tr, 2)
	require.Equal(t, conversation.RoleUser, tr[0].Role)
	require.Equal(t, "flight from Boston to San Diego next week", tr[0].Content)
	require.Equal(t, conversation.RoleAssistant, tr[1].Role)
	require.Equal(t, "Flight-Agent", tr[1].Name)
	require.False(t, tr[1].CreatedAt.IsZero())

	got, err := s.GetChat(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.MessageCount)
	require.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestAppend_RejectsMalformedWithoutPartialWrite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	u, _ := s.CreateUser(ctx)
	c, _ := s.CreateChat(ctx, u.ID)

	err := s.Append(ctx, c.ID, conversation.User("hello there traveler"), conversation.Message{Role: conversation.RoleAssistant})
	require.ErrorIs(t, err, conversation.ErrMalformedTranscript)

	tr, err := s.Read(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, tr)
}

func TestAppend_UnknownChat(t *testing.T) {
	s := openTestStore(t)
	err := s.Append(context.Background(), "missing", conversation.User("where to next"))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Read(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListChats_OrderedByUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	u, _ := s.CreateUser(ctx)
	other, _ := s.CreateUser(ctx)

	first, _ := s.CreateChat(ctx, u.ID)
	second, _ := s.CreateChat(ctx, u.ID)
	_, _ = s.CreateChat(ctx, other.ID)

	require.NoError(t, s.Append(ctx, first.ID, conversation.User("bump the first chat")))

	chats, err := s.ListChats(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	require.Equal(t, first.ID, chats[0].ID)
	require.Equal(t, 1, chats[0].MessageCount)
	require.Equal(t, second.ID, chats[1].ID)
	require.Equal(t, DefaultTitle, chats[1].DisplayTitle())
}

func TestDeleteChat_CascadesMessages(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	u, _ := s.CreateUser(ctx)
	c, _ := s.CreateChat(ctx, u.ID)
	require.NoError(t, s.Append(ctx, c.ID, conversation.User("one two three")))

	require.NoError(t, s.DeleteChat(ctx, c.ID))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_id = ?;`, c.ID).Scan(&n))
	require.Zero(t, n)
	_, err := s.GetChat(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.DeleteChat(ctx, c.ID), ErrNotFound)
}

func TestCreateChat_RequiresUser(t *testing.T) {
	_, err := openTestStore(t).CreateChat(context.Background(), "nobody")
	require.Error(t, err)
}

func TestSetTitle_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	u, _ := s.CreateUser(ctx)
	c, _ := s.CreateChat(ctx, u.ID)

	ok, err := s.SetTitle(ctx, c.ID, "Boston to San Diego")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.SetTitle(ctx, c.ID, "Something else")
	require.NoError(t, err)
	require.False(t, ok)

	got, _ := s.GetChat(ctx, c.ID)
	require.Equal(t, "Boston to San Diego", got.DisplayTitle())

	require.NoError(t, s.ClearTitle(ctx, c.ID))
	ok, err = s.SetTitle(ctx, c.ID, "Accessible hotels in Austin")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestClearMessages(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	u, _ := s.CreateUser(ctx)
	c, _ := s.CreateChat(ctx, u.ID)
	require.NoError(t, s.Append(ctx, c.ID, conversation.User("one two three"), conversation.Assistant("General-Chat", "four")))
	_, _ = s.SetTitle(ctx, c.ID, "Numbers")

	require.NoError(t, s.ClearMessages(ctx, c.ID))

	tr, err := s.Read(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, tr)
	got, _ := s.GetChat(ctx, c.ID)
	require.Equal(t, DefaultTitle, got.DisplayTitle())
}

func TestEnsureUser_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a, err := s.EnsureUser(ctx, "user-1")
	require.NoError(t, err)
	b, err := s.EnsureUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.True(t, a.CreatedAt.Equal(b.CreatedAt))
}
