package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestQARecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := QARecord{Question: "I have a headache", Answer: "See a neurologist", Embedding: []float32{0.1, 0.2, 0.3}}
	require.NoError(t, s.CreateQARecord(ctx, &rec))
	assert.NotZero(t, rec.ID)

	records, err := s.GetAllQARecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "I have a headache", records[0].Question)
	assert.Equal(t, "See a neurologist", records[0].Answer)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, records[0].Embedding)

	n, err := s.CountQARecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateQARecord_RequiresEmbedding(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateQARecord(context.Background(), &QARecord{Question: "q", Answer: "a"})
	assert.Error(t, err)
}

func TestKnowledgeUpsertAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertKnowledge(ctx, "What is a fever?", "what is a fever?", "Above 38 C."))
	entry, err := s.GetKnowledgeByKey(ctx, "what is a fever?")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Above 38 C.", entry.Answer)

	require.NoError(t, s.UpsertKnowledge(ctx, "What is a FEVER?", "what is a fever?", "A temperature above 38 C."))
	entry, err = s.GetKnowledgeByKey(ctx, "what is a fever?")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "A temperature above 38 C.", entry.Answer)

	missing, err := s.GetKnowledgeByKey(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDirectChatLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat, err := s.CreateDirectChat(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, ChatStatusPending, chat.Status)

	open, err := s.GetLatestOpenChat(ctx, "patient-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, chat.ID, open.ID)

	require.NoError(t, s.UpdateChatStatus(ctx, chat.ID, ChatStatusClosed))
	got, err := s.GetDirectChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, ChatStatusClosed, got.Status)
	assert.False(t, got.Open())

	open, err = s.GetLatestOpenChat(ctx, "patient-1")
	require.NoError(t, err)
	assert.Nil(t, open)

	assert.Error(t, s.UpdateChatStatus(ctx, "missing", ChatStatusClosed))
}

func TestMessagesOrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat, err := s.CreateDirectChat(ctx, "patient-1")
	require.NoError(t, err)

	texts := []string{"first", "second", "third", "fourth", "fifth"}
	for i, text := range texts {
		sender := SenderUser
		if i%2 == 1 {
			sender = SenderAdmin
		}
		require.NoError(t, s.CreateMessage(ctx, &ChatMessage{ChatID: chat.ID, SenderType: sender, SenderID: "x", Message: text}))
	}

	messages, err := s.GetMessagesByChatID(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, len(texts))
	for i, msg := range messages {
		assert.Equal(t, texts[i], msg.Message)
	}

	first, err := s.GetFirstUserMessage(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "first", first.Message)
}

func TestGetFirstUserMessage_NoPatientMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat, err := s.CreateDirectChat(ctx, "patient-1")
	require.NoError(t, err)
	require.NoError(t, s.CreateMessage(ctx, &ChatMessage{ChatID: chat.ID, SenderType: SenderAdmin, SenderID: "staff", Message: "hello"}))

	first, err := s.GetFirstUserMessage(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, first)
}

func TestCreateMessage_RequiresOpenChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat, err := s.CreateDirectChat(ctx, "patient-1")
	require.NoError(t, err)
	require.NoError(t, s.UpdateChatStatus(ctx, chat.ID, ChatStatusClosed))

	err = s.CreateMessage(ctx, &ChatMessage{ChatID: chat.ID, SenderType: SenderUser, SenderID: "patient-1", Message: "late"})
	assert.ErrorIs(t, err, ErrChatNotOpen)
	err = s.CreateMessage(ctx, &ChatMessage{ChatID: "missing", SenderType: SenderUser, SenderID: "patient-1", Message: "lost"})
	assert.ErrorIs(t, err, ErrChatNotOpen)

	messages, err := s.GetMessagesByChatID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestListOpenChats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older, err := s.CreateDirectChat(ctx, "patient-1")
	require.NoError(t, err)
	newer, err := s.CreateDirectChat(ctx, "patient-2")
	require.NoError(t, err)
	closed, err := s.CreateDirectChat(ctx, "patient-3")
	require.NoError(t, err)
	require.NoError(t, s.UpdateChatStatus(ctx, closed.ID, ChatStatusClosed))

	require.NoError(t, s.CreateMessage(ctx, &ChatMessage{ChatID: older.ID, SenderType: SenderUser, SenderID: "patient-1", Message: "my knee hurts"}))
	require.NoError(t, s.CreateMessage(ctx, &ChatMessage{ChatID: older.ID, SenderType: SenderUser, SenderID: "patient-1", Message: "still hurts"}))
	require.NoError(t, s.TouchChat(ctx, older.ID))

	chats, err := s.ListOpenChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ID, chats[0].ID, "most recently updated first")
	assert.Equal(t, "still hurts", chats[0].LastMessage)
	assert.Equal(t, newer.ID, chats[1].ID)
	assert.Equal(t, "", chats[1].LastMessage)
}

func TestStaffUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateStaffUser(ctx, "dr.house", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)

	got, err := s.GetStaffUserByUsername(ctx, "dr.house")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = s.CreateStaffUser(ctx, "dr.house", "other")
	assert.Error(t, err, "usernames are unique")

	missing, err := s.GetStaffUserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
