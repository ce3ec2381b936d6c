package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *EventHandler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log.Named("access")))
	r.Use(CORS)
	r.Use(Identify)

	r.Get("/health", HealthCheck)

	r.Route("/commands", func(r chi.Router) {
		r.Get("/", h.ListCommands)
		r.With(RequireUser).Post("/{name}", h.RunCommand)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/search", h.SearchTitles)
		r.Get("/{id}", h.GetEvent)
		r.Get("/{id}/qrcode", h.QRCode)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/", h.CreateEvent)
			r.Patch("/{id}", h.EditEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Post("/{id}/join", h.JoinEvent)
			r.Post("/{id}/leave", h.LeaveEvent)
			r.Post("/{id}/complete", h.CompleteEvent)
			r.Post("/{id}/transfer", h.TransferHost)
			r.Delete("/{id}/participants/{userID}", h.RemoveParticipant)
		})
	})

	r.With(RequireUser).Delete("/communities/{community}/events", h.DeleteAllEvents)

	return r
}
