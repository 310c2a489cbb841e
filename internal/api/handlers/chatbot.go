package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/convoflow/convoflow/internal/api"
	"github.com/convoflow/convoflow/internal/api/middleware"
	"github.com/convoflow/convoflow/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ChatbotRepository interface {
	Create(ctx context.Context, b *domain.Chatbot) error
	GetByID(ctx context.Context, id string) (*domain.Chatbot, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Chatbot, error)
	Update(ctx context.Context, b *domain.Chatbot) error
	Delete(ctx context.Context, id string) error
}

type ChatbotHandler struct {
	repo ChatbotRepository
}

func NewChatbotHandler(repo ChatbotRepository) *ChatbotHandler {
	return &ChatbotHandler{repo: repo}
}

type CreateChatbotRequest struct {
	Name           string   `json:"name"`
	Directive      string   `json:"directive"`
	Personality    string   `json:"personality"`
	ModelID        string   `json:"model_id"`
	Temperature    *float32 `json:"temperature"`
	MaxTokens      *int     `json:"max_tokens"`
	WelcomeMessage string   `json:"welcome_message"`
}

type UpdateChatbotRequest struct {
	Name           string   `json:"name"`
	Directive      string   `json:"directive"`
	Personality    string   `json:"personality"`
	ModelID        string   `json:"model_id"`
	Temperature    *float32 `json:"temperature"`
	MaxTokens      *int     `json:"max_tokens"`
	WelcomeMessage string   `json:"welcome_message"`
}

type ChatbotResponse struct {
	ID             string  `json:"id"`
	WorkspaceID    string  `json:"workspace_id"`
	Name           string  `json:"name"`
	Directive      string  `json:"directive"`
	Personality    string  `json:"personality,omitempty"`
	ModelID        string  `json:"model_id"`
	Temperature    float32 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	WelcomeMessage string  `json:"welcome_message,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func chatbotToResponse(b *domain.Chatbot) *ChatbotResponse {
	return &ChatbotResponse{
		ID:             b.ID,
		WorkspaceID:    b.WorkspaceID,
		Name:           b.Name,
		Directive:      b.Directive,
		Personality:    b.Personality,
		ModelID:        b.ModelID,
		Temperature:    b.Temperature,
		MaxTokens:      b.MaxTokens,
		WelcomeMessage: b.WelcomeMessage,
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *ChatbotHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Directive == "" {
		api.Error(w, http.StatusBadRequest, "directive is required")
		return
	}

	bot := domain.NewChatbot(uuid.NewString(), workspaceID, req.Name, req.Directive, time.Now().UTC())
	bot.Personality = req.Personality
	bot.WelcomeMessage = req.WelcomeMessage
	if req.ModelID != "" {
		bot.ModelID = req.ModelID
	}
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		bot.MaxTokens = *req.MaxTokens
	}

	if err := domain.ValidateChatbot(bot); err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.repo.Create(r.Context(), bot); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, chatbotToResponse(bot))
}

func (h *ChatbotHandler) Get(w http.ResponseWriter, r *http.Request) {
	bot, ok := h.ownedChatbot(w, r)
	if !ok {
		return
	}

	api.Success(w, http.StatusOK, chatbotToResponse(bot))
}

func (h *ChatbotHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bots, err := h.repo.ListByWorkspace(r.Context(), workspaceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*ChatbotResponse, 0, len(bots))
	for _, b := range bots {
		resp = append(resp, chatbotToResponse(b))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *ChatbotHandler) Update(w http.ResponseWriter, r *http.Request) {
	bot, ok := h.ownedChatbot(w, r)
	if !ok {
		return
	}

	var req UpdateChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		bot.Name = req.Name
	}
	if req.Directive != "" {
		bot.Directive = req.Directive
	}
	if req.Personality != "" {
		bot.Personality = req.Personality
	}
	if req.ModelID != "" {
		bot.ModelID = req.ModelID
	}
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		bot.MaxTokens = *req.MaxTokens
	}
	if req.WelcomeMessage != "" {
		bot.WelcomeMessage = req.WelcomeMessage
	}

	if err := domain.ValidateChatbot(bot); err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.repo.Update(r.Context(), bot); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chatbotToResponse(bot))
}

func (h *ChatbotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bot, ok := h.ownedChatbot(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), bot.ID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// ownedChatbot loads the chatbot from the path and enforces workspace
// ownership. A chatbot in another workspace reads as not found.
func (h *ChatbotHandler) ownedChatbot(w http.ResponseWriter, r *http.Request) (*domain.Chatbot, bool) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return nil, false
	}

	bot, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return nil, false
	}

	if bot.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrChatbotNotFound)
		return nil, false
	}

	return bot, true
}
