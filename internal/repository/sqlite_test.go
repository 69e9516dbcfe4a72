package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var t0 = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func seedConversation(t *testing.T, s *SQLiteStore, id, user string) {
	t.Helper()
	require.NoError(t, s.CreateConversation(context.Background(), &domain.Conversation{
		ConversationID: id, UserID: user, Title: "chat", Active: true, LastActivityAt: t0, CreatedAt: t0,
	}))
}

func seedMessage(t *testing.T, s *SQLiteStore, id, conv, branch string, at time.Time) {
	t.Helper()
	require.NoError(t, s.CreateMessage(context.Background(), &domain.Message{
		MessageID: id, ConversationID: conv, Role: domain.RoleUser, Content: id, BranchID: branch,
		Tokens: 3, CreatedAt: at,
	}))
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedConversation(t, s, "c1", "u1")

	got, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.Active)
	assert.False(t, got.Pinned)

	owned, err := s.FindConversation(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.NotNil(t, owned)

	notOwned, err := s.FindConversation(ctx, "c1", "u2")
	require.NoError(t, err)
	assert.Nil(t, notOwned)

	missing, err := s.GetConversation(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	later := t0.Add(time.Minute)
	require.NoError(t, s.UpdateConversationCounters(ctx, "c1", 2, 40, later))
	require.NoError(t, s.UpdateConversationCounters(ctx, "c1", 2, 10, later))
	got, err = s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.MessageCount)
	assert.Equal(t, 50, got.TokenTotal)
	assert.True(t, got.LastActivityAt.Equal(later))

	assert.Error(t, s.UpdateConversationCounters(ctx, "nope", 1, 1, later))

	yes := true
	require.NoError(t, s.UpdateConversationFlags(ctx, "c1", &yes, nil))
	require.NoError(t, s.UpdateConversationFlags(ctx, "c1", nil, &yes))
	got, err = s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.Pinned)
	assert.True(t, got.Archived)
	assert.False(t, got.Active)

	list, err := s.ListConversations(ctx, "u1", false, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = s.ListConversations(ctx, "u1", true, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedConversation(t, s, "c1", "u1")

	seedMessage(t, s, "m1", "c1", "", t0)
	seedMessage(t, s, "m2", "c1", "", t0.Add(time.Second))
	seedMessage(t, s, "m3", "c1", "", t0.Add(2*time.Second))
	require.NoError(t, s.CreateMessage(ctx, &domain.Message{
		MessageID: "b1", ConversationID: "c1", Role: domain.RoleUser, Content: "edited",
		BranchID: "br1", ParentMessageID: "m2", CreatedAt: t0.Add(3 * time.Second),
		Metadata: json.RawMessage(`{"edited":true}`),
	}))

	m, err := s.GetMessage(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "br1", m.BranchID)
	assert.Equal(t, "m2", m.ParentMessageID)
	assert.JSONEq(t, `{"edited":true}`, string(m.Metadata))

	all, err := s.ListMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	trunk, err := s.ListBranchMessages(ctx, "c1", "", 0)
	require.NoError(t, err)
	assert.Len(t, trunk, 3)
	for _, msg := range trunk {
		assert.True(t, msg.OnTrunk())
	}

	recent, err := s.ListBranchMessages(ctx, "c1", "", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m2", recent[0].MessageID)
	assert.Equal(t, "m3", recent[1].MessageID)

	n, err := s.AddReaction(ctx, "m1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.AddReaction(ctx, "m1", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = s.AddReaction(ctx, "nope", 1)
	assert.Error(t, err)

	require.NoError(t, s.DeleteMessage(ctx, "m3"))
	gone, err := s.GetMessage(ctx, "m3")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMessageRequiresConversation(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateMessage(context.Background(), &domain.Message{
		MessageID: "m1", ConversationID: "missing", Role: domain.RoleUser, Content: "hi", CreatedAt: t0,
	})
	assert.Error(t, err)
}

func TestBranches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedConversation(t, s, "c1", "u1")
	seedMessage(t, s, "m1", "c1", "", t0)

	for i, id := range []string{"br1", "br2"} {
		require.NoError(t, s.CreateBranch(ctx, &domain.Branch{
			BranchID: id, ConversationID: "c1", ParentMessageID: "m1", Label: id, Depth: 1,
			CreatedBy: "u1", CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}
	seedMessage(t, s, "x1", "c1", "br1", t0.Add(5*time.Second))
	seedMessage(t, s, "x2", "c1", "br1", t0.Add(6*time.Second))

	n, err := s.CountBranches(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := s.GetBranch(ctx, "br1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "m1", b.ParentMessageID)
	assert.Equal(t, "u1", b.CreatedBy)

	list, err := s.ListBranches(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "br1", list[0].BranchID)

	deleted, err := s.DeleteBranch(ctx, "br1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	b, err = s.GetBranch(ctx, "br1")
	require.NoError(t, err)
	assert.Nil(t, b)
	n, _ = s.CountBranches(ctx, "c1")
	assert.Equal(t, 1, n)
	all, _ := s.ListMessages(ctx, "c1")
	assert.Len(t, all, 1)
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedConversation(t, s, "c1", "u1")
	seedMessage(t, s, "m1", "c1", "", t0)
	require.NoError(t, s.CreateBranch(ctx, &domain.Branch{BranchID: "br1", ConversationID: "c1", ParentMessageID: "m1", CreatedAt: t0}))

	require.NoError(t, s.DeleteConversation(ctx, "c1"))
	c, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, c)
	n, _ := s.CountBranches(ctx, "c1")
	assert.Zero(t, n)
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	events := []domain.Event{
		{EventID: "e1", ConversationID: "c1", UserID: "u1", Ts: 100, Type: domain.EventTypeTurnCompleted, Payload: json.RawMessage(`{"a":1}`)},
		{EventID: "e2", ConversationID: "c1", Ts: 200, Type: domain.EventTypeCacheHit},
		{EventID: "e3", ConversationID: "c1", Ts: 300, Type: domain.EventTypeTurnBlocked},
		{EventID: "e4", ConversationID: "c2", Ts: 400, Type: domain.EventTypeTurnCompleted},
	}
	for i := range events {
		require.NoError(t, s.CreateEvent(ctx, &events[i]))
	}

	got, err := s.ListEvents(ctx, "c1", 0, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "u1", got[0].UserID)
	assert.JSONEq(t, `{"a":1}`, string(got[0].Payload))

	got, err = s.ListEvents(ctx, "c1", 100, []string{string(domain.EventTypeTurnBlocked)}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e3", got[0].EventID)
}

func TestEnsureColumnIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.migrate())
	require.NoError(t, s.ensureColumn("messages", "tokens", "ALTER TABLE messages ADD COLUMN tokens INTEGER"))
}
