package core

import (
	"context"
	"errors"
	"strings"

	"github.com/medsecure/telehealth/internal/events"
	"github.com/medsecure/telehealth/internal/store"
	"go.uber.org/zap"
)

// ChatStore is the persistence the direct chat service needs.
type ChatStore interface {
	CreateDirectChat(ctx context.Context, userID string) (*store.DirectChat, error)
	GetDirectChat(ctx context.Context, chatID string) (*store.DirectChat, error)
	GetLatestOpenChat(ctx context.Context, userID string) (*store.DirectChat, error)
	ListOpenChats(ctx context.Context) ([]store.ChatSummary, error)
	UpdateChatStatus(ctx context.Context, chatID, status string) error
	TouchChat(ctx context.Context, chatID string) error
	CreateMessage(ctx context.Context, msg *store.ChatMessage) error
	GetMessagesByChatID(ctx context.Context, chatID string) ([]store.ChatMessage, error)
	GetFirstUserMessage(ctx context.Context, chatID string) (*store.ChatMessage, error)
}

// CorpusRecorder appends staff answers to the similarity corpus.
type CorpusRecorder interface {
	Record(ctx context.Context, question, answer string) (*store.QARecord, error)
}

// Participant is the caller of a direct chat operation.
type Participant struct {
	ID    string
	Staff bool
}

// DirectChatService runs human-staffed chats escalated from the assistant.
//
// Lifecycle: a chat starts pending, becomes active with the first staff
// reply, and is closed explicitly by its patient or by staff. Closed chats
// accept no further messages.
type DirectChatService struct {
	store  ChatStore
	corpus CorpusRecorder
	broker events.Broker
	logger *zap.Logger
}

func NewDirectChatService(s ChatStore, corpus CorpusRecorder, broker events.Broker, logger *zap.Logger) *DirectChatService {
	return &DirectChatService{
		store:  s,
		corpus: corpus,
		broker: broker,
		logger: logger,
	}
}

// Escalation is the outcome of Escalate. Created is false when the patient's
// existing open chat was reused.
type Escalation struct {
	Chat     *store.DirectChat
	Messages []store.ChatMessage
	Created  bool
}

// Escalate returns the patient's open chat, creating a pending one when there
// is none, and appends initialQuestion to it when non-blank.
func (s *DirectChatService) Escalate(ctx context.Context, userID, initialQuestion string) (*Escalation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidInput("user id is required")
	}

	chat, err := s.store.GetLatestOpenChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	created := chat == nil
	if created {
		if chat, err = s.store.CreateDirectChat(ctx, userID); err != nil {
			return nil, err
		}
		s.logger.Info("direct chat created", zap.String("chat_id", chat.ID), zap.String("user_id", userID))
	}

	if text := strings.TrimSpace(initialQuestion); text != "" {
		if _, err := s.appendMessage(ctx, chat.ID, store.SenderUser, userID, text); err != nil {
			return nil, err
		}
	}

	messages, err := s.store.GetMessagesByChatID(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	return &Escalation{Chat: chat, Messages: messages, Created: created}, nil
}

// CurrentChat returns the patient's latest open chat.
func (s *DirectChatService) CurrentChat(ctx context.Context, userID string) (*store.DirectChat, error) {
	chat, err := s.store.GetLatestOpenChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// Chat loads chatID and checks that p may access it.
func (s *DirectChatService) Chat(ctx context.Context, p Participant, chatID string) (*store.DirectChat, error) {
	chat, err := s.store.GetDirectChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	if !p.Staff && chat.UserID != p.ID {
		return nil, ErrForbidden
	}
	return chat, nil
}

func (s *DirectChatService) Messages(ctx context.Context, p Participant, chatID string) ([]store.ChatMessage, error) {
	if _, err := s.Chat(ctx, p, chatID); err != nil {
		return nil, err
	}
	return s.store.GetMessagesByChatID(ctx, chatID)
}

func (s *DirectChatService) PostPatientMessage(ctx context.Context, userID, chatID, text string) (*store.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidInput("message is required")
	}
	chat, err := s.Chat(ctx, Participant{ID: userID}, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.Open() {
		return nil, ErrChatClosed
	}
	return s.appendMessage(ctx, chatID, store.SenderUser, userID, text)
}

// Reply stores a staff answer and adds it to the similarity corpus, keyed on
// the first patient message of the chat. Exactly one corpus record is written
// per reply. When the corpus update fails the reply itself stays stored and is
// returned together with the error.
func (s *DirectChatService) Reply(ctx context.Context, staffID, chatID, text string) (*store.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidInput("message is required")
	}
	chat, err := s.Chat(ctx, Participant{ID: staffID, Staff: true}, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.Open() {
		return nil, ErrChatClosed
	}

	msg, err := s.appendMessage(ctx, chatID, store.SenderAdmin, staffID, text)
	if err != nil {
		return nil, err
	}
	if chat.Status == store.ChatStatusPending {
		if err := s.setStatus(ctx, chatID, store.ChatStatusActive); err != nil {
			s.logger.Warn("failed to activate chat", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	original, err := s.store.GetFirstUserMessage(ctx, chatID)
	if err != nil {
		return msg, err
	}
	if original == nil {
		s.logger.Info("staff reply without patient question, corpus unchanged", zap.String("chat_id", chatID))
		return msg, nil
	}
	rec, err := s.corpus.Record(ctx, original.Message, text)
	if err != nil {
		s.logger.Error("reply saved but corpus update failed",
			zap.String("chat_id", chatID), zap.String("message_id", msg.ID), zap.Error(err))
		return msg, err
	}
	s.logger.Info("staff answer added to corpus", zap.String("chat_id", chatID), zap.Int64("record_id", rec.ID))
	return msg, nil
}

// Close ends the chat. Closing a closed chat is a no-op.
func (s *DirectChatService) Close(ctx context.Context, p Participant, chatID string) error {
	chat, err := s.Chat(ctx, p, chatID)
	if err != nil {
		return err
	}
	if !chat.Open() {
		return nil
	}
	if err := s.setStatus(ctx, chatID, store.ChatStatusClosed); err != nil {
		return err
	}
	s.logger.Info("direct chat closed", zap.String("chat_id", chatID), zap.Bool("by_staff", p.Staff))
	return nil
}

// NoHistory is shown in the staff inbox for chats without messages.
const NoHistory = "No history"

// OpenChats lists pending and active chats for the staff inbox.
func (s *DirectChatService) OpenChats(ctx context.Context) ([]store.ChatSummary, error) {
	chats, err := s.store.ListOpenChats(ctx)
	if err != nil {
		return nil, err
	}
	for i := range chats {
		if chats[i].LastMessage == "" {
			chats[i].LastMessage = NoHistory
		}
	}
	if chats == nil {
		chats = []store.ChatSummary{}
	}
	return chats, nil
}

// Subscribe streams events of a chat p may access.
func (s *DirectChatService) Subscribe(ctx context.Context, p Participant, chatID string) (<-chan events.Event, func(), error) {
	if _, err := s.Chat(ctx, p, chatID); err != nil {
		return nil, nil, err
	}
	return s.broker.Subscribe(ctx, chatID)
}

func (s *DirectChatService) appendMessage(ctx context.Context, chatID, senderType, senderID, text string) (*store.ChatMessage, error) {
	msg := &store.ChatMessage{
		ChatID:     chatID,
		SenderType: senderType,
		SenderID:   senderID,
		Message:    text,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrChatNotOpen) {
			return nil, ErrChatClosed
		}
		return nil, err
	}
	if err := s.store.TouchChat(ctx, chatID); err != nil {
		s.logger.Warn("failed to touch chat", zap.String("chat_id", chatID), zap.Error(err))
	}
	s.publish(ctx, events.Event{Type: events.TypeMessage, ChatID: chatID, Message: msg})
	return msg, nil
}

func (s *DirectChatService) setStatus(ctx context.Context, chatID, status string) error {
	if err := s.store.UpdateChatStatus(ctx, chatID, status); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: events.TypeStatus, ChatID: chatID, Status: status})
	return nil
}

func (s *DirectChatService) publish(ctx context.Context, ev events.Event) {
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish chat event",
			zap.String("chat_id", ev.ChatID), zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
