package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/medsecure/telehealth/internal/core"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

// decode reads a JSON body into v and validates its struct tags.
func (h *APIHandler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return h.validate.Struct(v)
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " is " + verrs[0].Tag()
	}
	return err.Error()
}

// writeServiceError maps service errors to statuses. Anything unrecognized is
// logged and reported as a 500 with msg.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid input", err.Error())
	case errors.Is(err, core.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "Chat not found", "")
	case errors.Is(err, core.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, core.ErrChatClosed):
		writeError(w, http.StatusConflict, "Chat is closed", "")
	default:
		h.logger.Error(msg,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, msg, "")
	}
}
