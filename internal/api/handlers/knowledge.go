package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/convoflow/convoflow/internal/api"
	"github.com/convoflow/convoflow/internal/domain"
	"github.com/convoflow/convoflow/internal/service"
	"github.com/go-chi/chi/v5"
)

type KnowledgeService interface {
	CreateSource(ctx context.Context, input service.CreateSourceInput) (*domain.KnowledgeSource, error)
}

type KnowledgeSourceRepository interface {
	GetSourceByID(ctx context.Context, id string) (*domain.KnowledgeSource, error)
	ListAllSourcesByChatbot(ctx context.Context, chatbotID string) ([]*domain.KnowledgeSource, error)
	DeleteSource(ctx context.Context, id string) error
}

type KnowledgeHandler struct {
	svc      KnowledgeService
	sources  KnowledgeSourceRepository
	chatbots ChatbotGetter
}

func NewKnowledgeHandler(svc KnowledgeService, sources KnowledgeSourceRepository, chatbots ChatbotGetter) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, sources: sources, chatbots: chatbots}
}

type CreateSourceRequest struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

type SourceResponse struct {
	ID         string `json:"id"`
	ChatbotID  string `json:"chatbot_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Dimensions int    `json:"dimensions"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func sourceToResponse(s *domain.KnowledgeSource) *SourceResponse {
	return &SourceResponse{
		ID:         s.ID,
		ChatbotID:  s.ChatbotID,
		Name:       s.Name,
		Status:     string(s.Status),
		Dimensions: s.Dimensions,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := h.ownedChatbotID(w, r)
	if !ok {
		return
	}

	var req CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	source, err := h.svc.CreateSource(r.Context(), service.CreateSourceInput{
		ChatbotID: chatbotID,
		Name:      req.Name,
		Content:   req.Content,
		Filename:  req.Filename,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sourceToResponse(source))
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := h.ownedChatbotID(w, r)
	if !ok {
		return
	}

	sources, err := h.sources.ListAllSourcesByChatbot(r.Context(), chatbotID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*SourceResponse, 0, len(sources))
	for _, s := range sources {
		resp = append(resp, sourceToResponse(s))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	source, ok := h.ownedSource(w, r)
	if !ok {
		return
	}

	api.Success(w, http.StatusOK, sourceToResponse(source))
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	source, ok := h.ownedSource(w, r)
	if !ok {
		return
	}

	if err := h.sources.DeleteSource(r.Context(), source.ID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *KnowledgeHandler) ownedChatbotID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return ownedChatbotIDFromPath(w, r, h.chatbots)
}

func (h *KnowledgeHandler) ownedSource(w http.ResponseWriter, r *http.Request) (*domain.KnowledgeSource, bool) {
	chatbotID, ok := h.ownedChatbotID(w, r)
	if !ok {
		return nil, false
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return nil, false
	}

	source, err := h.sources.GetSourceByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return nil, false
	}

	if source.ChatbotID != chatbotID {
		api.HandleError(w, domain.ErrKnowledgeSourceNotFound)
		return nil, false
	}

	return source, true
}
