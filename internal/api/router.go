package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/register", apiHandler.RegisterHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"status":               "ok",
				"assistant_configured": apiHandler.chats.AssistantConfigured(),
			})
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/logout", apiHandler.LogoutHandler)
			r.Post("/view/{choice}", apiHandler.ViewHandler)
			r.Get("/session", apiHandler.SessionHandler)
			r.Get("/profile", apiHandler.GetProfileHandler)
			r.Put("/profile", apiHandler.PutProfileHandler)
			r.Put("/tts", apiHandler.PutTTSHandler)

			r.Get("/conversations", apiHandler.ListConversationsHandler)
			r.Post("/conversations", apiHandler.CreateConversationHandler)
			r.Post("/conversations/{conversationID}/select", apiHandler.SelectConversationHandler)
			r.Delete("/conversations/{conversationID}", apiHandler.DeleteConversationHandler)

			r.Get("/messages", apiHandler.GetMessagesHandler)
			r.Post("/announcement/dismiss", apiHandler.DismissAnnouncementHandler)
			r.Post("/voice/start", apiHandler.VoiceStartHandler)
			r.Post("/voice/error", apiHandler.VoiceErrorHandler)
			r.Get("/ws", apiHandler.WebSocketHandler)

			// Routes that reach the assistant
			r.Group(func(r chi.Router) {
				r.Use(apiHandler.RateLimitMiddleware)
				r.Post("/messages", apiHandler.PostMessageHandler)
				r.Post("/voice/result", apiHandler.VoiceResultHandler)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminOnly)

				r.Get("/instruction", apiHandler.GetInstructionHandler)
				r.Put("/instruction", apiHandler.PutInstructionHandler)
				r.Delete("/instruction", apiHandler.DeleteInstructionHandler)

				r.Get("/templates", apiHandler.ListTemplatesHandler)
				r.Post("/templates", apiHandler.CreateTemplateHandler)
				r.Put("/templates/{templateID}", apiHandler.UpdateTemplateHandler)
				r.Delete("/templates/{templateID}", apiHandler.DeleteTemplateHandler)
				r.Post("/templates/{templateID}/apply", apiHandler.ApplyTemplateHandler)

				r.Get("/announcement", apiHandler.GetAnnouncementHandler)
				r.Post("/announcement", apiHandler.PostAnnouncementHandler)

				r.Get("/users", apiHandler.ListUsersHandler)
			})
		})
	})

	return r
}
