package handlers

import (
	"context"
	"net/http"

	"github.com/convoflow/convoflow/internal/api"
	"github.com/convoflow/convoflow/internal/api/middleware"
	"github.com/convoflow/convoflow/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ChatbotGetter resolves chatbots for ownership checks
type ChatbotGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Chatbot, error)
}

// ownedChatbotIDFromPath loads the {chatbotID} path parameter and enforces
// workspace ownership. A chatbot in another workspace reads as not found.
func ownedChatbotIDFromPath(w http.ResponseWriter, r *http.Request, chatbots ChatbotGetter) (string, bool) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}

	chatbotID := chi.URLParam(r, "chatbotID")
	if chatbotID == "" {
		api.Error(w, http.StatusBadRequest, "chatbot id is required")
		return "", false
	}

	bot, err := chatbots.GetByID(r.Context(), chatbotID)
	if err != nil {
		api.HandleError(w, err)
		return "", false
	}

	if bot.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrChatbotNotFound)
		return "", false
	}

	return bot.ID, true
}
