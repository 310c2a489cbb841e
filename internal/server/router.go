package server

import (
	"net/http"

	"github.com/convoflow/convoflow/internal/api"
	"github.com/convoflow/convoflow/internal/api/handlers"
	"github.com/convoflow/convoflow/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	AuthValidator     middleware.AuthValidator
	ChatHandler       *handlers.ChatHandler
	ChatbotHandler    *handlers.ChatbotHandler
	KnowledgeHandler  *handlers.KnowledgeHandler
	AutomationHandler *handlers.AutomationHandler
	LeadHandler       *handlers.LeadHandler
	AuthHandler       *handlers.AuthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public widget endpoints. The chatbot ID in the path is the only scope;
	// visitors never hold API keys.
	r.Route("/chat/{chatbotID}", func(r chi.Router) {
		r.Post("/start", cfg.ChatHandler.Start)
		r.Post("/message", cfg.ChatHandler.Message)
		r.Post("/end", cfg.ChatHandler.End)
	})

	// Management endpoints, authenticated by workspace API key.
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/chatbots", func(r chi.Router) {
			r.Post("/", cfg.ChatbotHandler.Create)
			r.Get("/", cfg.ChatbotHandler.List)
			r.Get("/{id}", cfg.ChatbotHandler.Get)
			r.Put("/{id}", cfg.ChatbotHandler.Update)
			r.Delete("/{id}", cfg.ChatbotHandler.Delete)

			r.Route("/{chatbotID}/sources", func(r chi.Router) {
				r.Post("/", cfg.KnowledgeHandler.Create)
				r.Get("/", cfg.KnowledgeHandler.List)
				r.Get("/{id}", cfg.KnowledgeHandler.Get)
				r.Delete("/{id}", cfg.KnowledgeHandler.Delete)
			})

			r.Route("/{chatbotID}/automations", func(r chi.Router) {
				r.Post("/", cfg.AutomationHandler.Create)
				r.Get("/", cfg.AutomationHandler.List)
				r.Put("/{id}", cfg.AutomationHandler.Update)
				r.Delete("/{id}", cfg.AutomationHandler.Delete)
			})

			r.Route("/{chatbotID}/lead-form", func(r chi.Router) {
				r.Put("/", cfg.LeadHandler.UpsertForm)
				r.Get("/", cfg.LeadHandler.GetForm)
				r.Delete("/", cfg.LeadHandler.DeleteForm)
			})

			r.Get("/{chatbotID}/leads", cfg.LeadHandler.ListLeads)
		})

		r.Route("/apikeys", func(r chi.Router) {
			r.Post("/", cfg.AuthHandler.CreateAPIKey)
			r.Get("/", cfg.AuthHandler.ListAPIKeys)
			r.Delete("/{id}", cfg.AuthHandler.RevokeAPIKey)
		})
	})

	return r
}
