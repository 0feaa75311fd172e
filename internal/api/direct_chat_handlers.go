package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medsecure/telehealth/internal/store"
	"go.uber.org/zap"
)

type EscalateRequest struct {
	InitialQuestion string `json:"initial_question"`
}

type DirectChatResponse struct {
	*store.DirectChat
	Messages []store.ChatMessage `json:"messages"`
}

type PostMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// EscalateHandler opens the caller's direct chat with staff (201) or returns
// the open one it already has (200).
func (h *APIHandler) EscalateHandler(w http.ResponseWriter, r *http.Request) {
	p := participant(r)

	var req EscalateRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
	}

	esc, err := h.chats.Escalate(r.Context(), p.ID, req.InitialQuestion)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to create chat")
		return
	}
	status := http.StatusOK
	if esc.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, DirectChatResponse{DirectChat: esc.Chat, Messages: esc.Messages})
}

func (h *APIHandler) CurrentChatHandler(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chats.CurrentChat(r.Context(), participant(r).ID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load chat")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

// MessagesHandler serves chat history to the owning patient or to staff.
func (h *APIHandler) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chats.Messages(r.Context(), participant(r), chi.URLParam(r, "chatID"))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *APIHandler) PatientMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Message is required", "")
		return
	}

	msg, err := h.chats.PostPatientMessage(r.Context(), participant(r).ID, chi.URLParam(r, "chatID"), req.Message)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to post message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// StaffReplyHandler posts a staff answer. The answer also lands in the
// similarity corpus; if that part fails the reply stays posted and the
// caller gets a 500 naming the corpus.
func (h *APIHandler) StaffReplyHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Message is required", "")
		return
	}

	chatID := chi.URLParam(r, "chatID")
	msg, err := h.chats.Reply(r.Context(), participant(r).ID, chatID, req.Message)
	if err != nil && msg != nil {
		h.logger.Error("staff reply not added to corpus", zap.String("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Reply sent but not saved for reuse",
			"The answer could not be indexed. It will not be suggested automatically.")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to send reply")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *APIHandler) CloseChatHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.Close(r.Context(), participant(r), chi.URLParam(r, "chatID")); err != nil {
		h.writeServiceError(w, r, err, "Failed to close chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) InboxHandler(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.OpenChats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list chats")
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

