package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withPragmas(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// withPragmas enables WAL and a busy timeout so concurrent appends from
// separate requests wait for each other instead of failing with SQLITE_BUSY.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "?") || strings.Contains(dsn, ":memory:") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS conversations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        embedding_json TEXT NOT NULL, -- JSON array of float32
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS clinical_knowledge (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        question TEXT NOT NULL,
        question_key TEXT UNIQUE NOT NULL,
        answer TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS direct_chats (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('pending', 'active', 'closed')),
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_direct_chats_user ON direct_chats (user_id, status);

    CREATE TABLE IF NOT EXISTS chat_messages (
        id TEXT PRIMARY KEY, -- ULID
        chat_id TEXT NOT NULL,
        sender_type TEXT NOT NULL CHECK (sender_type IN ('user', 'admin')),
        sender_id TEXT NOT NULL,
        message TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (chat_id) REFERENCES direct_chats (id)
    );
    CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages (chat_id, created_at);

    CREATE TABLE IF NOT EXISTS staff_users (
        id TEXT PRIMARY KEY, -- UUID
        username TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Similarity corpus

func (s *SQLiteStore) CreateQARecord(ctx context.Context, rec *QARecord) error {
	if len(rec.Embedding) == 0 {
		return errors.New("qa record embedding is empty")
	}
	embeddingBytes, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	rec.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (question, answer, embedding_json, created_at) VALUES (?, ?, ?, ?)",
		rec.Question, rec.Answer, string(embeddingBytes), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetAllQARecords(ctx context.Context) ([]QARecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, question, answer, embedding_json, created_at FROM conversations ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var records []QARecord
	for rows.Next() {
		var rec QARecord
		var embeddingJSON string
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &embeddingJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &rec.Embedding); err != nil {
			// The record stays in the result without an embedding; the matcher skips it.
			s.logger.Warn("failed to unmarshal conversation embedding",
				zap.Int64("id", rec.ID), zap.Error(err))
			rec.Embedding = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) CountQARecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return n, nil
}

// Staff-curated knowledge

// UpsertKnowledge stores answer under key, replacing any previous entry with
// the same key.
func (s *SQLiteStore) UpsertKnowledge(ctx context.Context, question, key, answer string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO clinical_knowledge (question, question_key, answer, created_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (question_key) DO UPDATE SET question = excluded.question, answer = excluded.answer`,
		question, key, answer, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert clinical knowledge: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetKnowledgeByKey(ctx context.Context, key string) (*KnowledgeEntry, error) {
	var entry KnowledgeEntry
	err := s.db.QueryRowContext(ctx,
		"SELECT id, question, question_key, answer, created_at FROM clinical_knowledge WHERE question_key = ?", key).
		Scan(&entry.ID, &entry.Question, &entry.QuestionKey, &entry.Answer, &entry.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query clinical knowledge: %w", err)
	}
	return &entry, nil
}

// Direct chats

func (s *SQLiteStore) CreateDirectChat(ctx context.Context, userID string) (*DirectChat, error) {
	now := time.Now().UTC()
	chat := &DirectChat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    ChatStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO direct_chats (id, user_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		chat.ID, chat.UserID, chat.Status, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert direct chat: %w", err)
	}
	return chat, nil
}

func (s *SQLiteStore) GetDirectChat(ctx context.Context, chatID string) (*DirectChat, error) {
	return s.scanChat(s.db.QueryRowContext(ctx,
		"SELECT id, user_id, status, created_at, updated_at FROM direct_chats WHERE id = ?", chatID))
}

// GetLatestOpenChat returns the most recently created pending or active chat
// of the user.
func (s *SQLiteStore) GetLatestOpenChat(ctx context.Context, userID string) (*DirectChat, error) {
	return s.scanChat(s.db.QueryRowContext(ctx, `
        SELECT id, user_id, status, created_at, updated_at
        FROM direct_chats
        WHERE user_id = ? AND status IN ('pending', 'active')
        ORDER BY created_at DESC
        LIMIT 1`, userID))
}

func (s *SQLiteStore) scanChat(row *sql.Row) (*DirectChat, error) {
	var chat DirectChat
	err := row.Scan(&chat.ID, &chat.UserID, &chat.Status, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get direct chat: %w", err)
	}
	return &chat, nil
}

// ListOpenChats returns pending and active chats, most recently updated
// first, each with the text of its latest message.
func (s *SQLiteStore) ListOpenChats(ctx context.Context) ([]ChatSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT c.id, c.user_id, c.status, c.created_at, c.updated_at,
               COALESCE((SELECT m.message FROM chat_messages m
                         WHERE m.chat_id = c.id
                         ORDER BY m.created_at DESC, m.id DESC LIMIT 1), '')
        FROM direct_chats c
        WHERE c.status IN ('pending', 'active')
        ORDER BY c.updated_at DESC, c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open chats: %w", err)
	}
	defer rows.Close()

	var chats []ChatSummary
	for rows.Next() {
		var summary ChatSummary
		if err := rows.Scan(&summary.ID, &summary.UserID, &summary.Status,
			&summary.CreatedAt, &summary.UpdatedAt, &summary.LastMessage); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, summary)
	}
	return chats, rows.Err()
}

// UpdateChatStatus sets the status and touches updated_at.
func (s *SQLiteStore) UpdateChatStatus(ctx context.Context, chatID, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE direct_chats SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), chatID)
	if err != nil {
		return fmt.Errorf("failed to update chat status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("chat %s not found, status not updated", chatID)
	}
	return nil
}

func (s *SQLiteStore) TouchChat(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE direct_chats SET updated_at = ? WHERE id = ?", time.Now().UTC(), chatID)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	return nil
}

// Messages

// ErrChatNotOpen is returned when a message targets a closed or missing chat.
var ErrChatNotOpen = errors.New("chat is not open")

// CreateMessage appends msg only while its chat is open. The status check and
// the insert are one statement, so a concurrent close cannot slip between them.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *ChatMessage) error {
	msg.ID = ulid.Make().String()
	msg.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO chat_messages (id, chat_id, sender_type, sender_id, message, created_at)
        SELECT ?, ?, ?, ?, ?, ?
        WHERE EXISTS (SELECT 1 FROM direct_chats WHERE id = ? AND status != ?)`,
		msg.ID, msg.ChatID, msg.SenderType, msg.SenderID, msg.Message, msg.CreatedAt,
		msg.ChatID, ChatStatusClosed)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check inserted message: %w", err)
	}
	if n == 0 {
		return ErrChatNotOpen
	}
	return nil
}

func (s *SQLiteStore) GetMessagesByChatID(ctx context.Context, chatID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, chat_id, sender_type, sender_id, message, created_at
        FROM chat_messages
        WHERE chat_id = ?
        ORDER BY created_at ASC, id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []ChatMessage{}
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderType, &msg.SenderID, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetFirstUserMessage returns the earliest patient message of the chat, or
// nil when the patient has not written anything yet.
func (s *SQLiteStore) GetFirstUserMessage(ctx context.Context, chatID string) (*ChatMessage, error) {
	var msg ChatMessage
	err := s.db.QueryRowContext(ctx, `
        SELECT id, chat_id, sender_type, sender_id, message, created_at
        FROM chat_messages
        WHERE chat_id = ? AND sender_type = 'user'
        ORDER BY created_at ASC, id ASC
        LIMIT 1`, chatID).
		Scan(&msg.ID, &msg.ChatID, &msg.SenderType, &msg.SenderID, &msg.Message, &msg.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query first user message: %w", err)
	}
	return &msg, nil
}

// Staff users

func (s *SQLiteStore) CreateStaffUser(ctx context.Context, username, passwordHash string) (*StaffUser, error) {
	user := &StaffUser{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO staff_users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert staff user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetStaffUserByUsername(ctx context.Context, username string) (*StaffUser, error) {
	var user StaffUser
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM staff_users WHERE username = ?", username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query staff user: %w", err)
	}
	return &user, nil
}
