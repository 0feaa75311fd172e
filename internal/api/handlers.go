package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/medsecure/telehealth/internal/auth"
	"github.com/medsecure/telehealth/internal/core"
	"github.com/medsecure/telehealth/internal/store"
	"go.uber.org/zap"
)

type ChatResolver interface {
	Resolve(ctx context.Context, question string) (*core.Resolution, error)
}

type StaffStore interface {
	GetStaffUserByUsername(ctx context.Context, username string) (*store.StaffUser, error)
}

type APIHandler struct {
	resolver  ChatResolver
	chats     *core.DirectChatService
	knowledge *core.KnowledgeBase
	staff     StaffStore
	tokens    *auth.TokenIssuer
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewAPIHandler(resolver ChatResolver, chats *core.DirectChatService, knowledge *core.KnowledgeBase,
	staff StaffStore, tokens *auth.TokenIssuer, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		resolver:  resolver,
		chats:     chats,
		knowledge: knowledge,
		staff:     staff,
		tokens:    tokens,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

// ChatHandler answers a question through the resolution pipeline.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Message is required", "")
		return
	}

	res, err := h.resolver.Resolve(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "Message is required", "")
			return
		}
		h.logger.Error("chat resolution failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process message",
			"No answer source was able to respond. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *APIHandler) StaffLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required", validationDetails(err))
		return
	}

	user, err := h.staff.GetStaffUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.logger.Error("failed to load staff user", zap.String("username", req.Username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to sign in", "")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", "")
		return
	}

	token, expiresAt, err := h.tokens.Issue(user.ID, auth.RoleStaff)
	if err != nil {
		h.logger.Error("failed to issue staff token", zap.String("username", req.Username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token", "")
		return
	}
	h.logger.Info("staff signed in", zap.String("staff_id", user.ID))
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

type KnowledgeRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// AddKnowledgeHandler stores a staff-curated answer for exact lookups.
func (h *APIHandler) AddKnowledgeHandler(w http.ResponseWriter, r *http.Request) {
	var req KnowledgeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Question and answer are required", validationDetails(err))
		return
	}
	if err := h.knowledge.AddAnswer(r.Context(), req.Question, req.Answer); err != nil {
		h.writeServiceError(w, r, err, "Failed to save knowledge")
		return
	}
	writeJSON(w, http.StatusCreated, req)
}
