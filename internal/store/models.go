package store

import "time"

const (
	ChatStatusPending = "pending"
	ChatStatusActive  = "active"
	ChatStatusClosed  = "closed"

	SenderUser  = "user"
	SenderAdmin = "admin"
)

// QARecord is one entry of the similarity corpus: a patient question, the
// staff answer it received and the embedding of the question.
type QARecord struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeEntry is a staff-curated answer looked up by QuestionKey.
type KnowledgeEntry struct {
	ID          int64     `json:"id"`
	Question    string    `json:"question"`
	QuestionKey string    `json:"-"`
	Answer      string    `json:"answer"`
	CreatedAt   time.Time `json:"created_at"`
}

type DirectChat struct {
	ID        string    `json:"id"` // UUID
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the chat still accepts messages.
func (c *DirectChat) Open() bool {
	return c.Status != ChatStatusClosed
}

type ChatSummary struct {
	DirectChat
	LastMessage string `json:"last_message"`
}

type ChatMessage struct {
	ID         string    `json:"id"` // ULID, sortable by creation
	ChatID     string    `json:"chat_id"`
	SenderType string    `json:"sender_type"` // "user" or "admin"
	SenderID   string    `json:"sender_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

type StaffUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}
