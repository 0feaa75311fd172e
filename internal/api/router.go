package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/medsecure/telehealth/internal/auth"
)

func NewRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.HealthHandler)
		r.Post("/chat", h.ChatHandler)

		r.Route("/direct-chats", func(r chi.Router) {
			r.Use(h.RequireRole(auth.RolePatient))

			r.Post("/", h.EscalateHandler)
			r.Get("/current", h.CurrentChatHandler)
			r.Get("/{chatID}/messages", h.MessagesHandler)
			r.Post("/{chatID}/messages", h.PatientMessageHandler)
			r.Post("/{chatID}/close", h.CloseChatHandler)
			r.Get("/{chatID}/events", h.EventsHandler)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Post("/login", h.StaffLoginHandler)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireRole(auth.RoleStaff))

				r.Get("/chats", h.InboxHandler)
				r.Get("/chats/{chatID}/messages", h.MessagesHandler)
				r.Post("/chats/{chatID}/reply", h.StaffReplyHandler)
				r.Post("/chats/{chatID}/close", h.CloseChatHandler)
				r.Get("/chats/{chatID}/events", h.EventsHandler)
				r.Post("/knowledge", h.AddKnowledgeHandler)
			})
		})
	})

	return r
}
