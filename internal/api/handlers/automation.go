package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/convoflow/convoflow/internal/api"
	"github.com/convoflow/convoflow/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AutomationRepository interface {
	Create(ctx context.Context, a *domain.Automation) error
	GetByID(ctx context.Context, id string) (*domain.Automation, error)
	ListByChatbot(ctx context.Context, chatbotID string) ([]*domain.Automation, error)
	Update(ctx context.Context, a *domain.Automation) error
	Delete(ctx context.Context, id string) error
}

type AutomationHandler struct {
	repo     AutomationRepository
	chatbots ChatbotGetter
}

func NewAutomationHandler(repo AutomationRepository, chatbots ChatbotGetter) *AutomationHandler {
	return &AutomationHandler{repo: repo, chatbots: chatbots}
}

type CreateAutomationRequest struct {
	Name          string   `json:"name"`
	TriggerType   string   `json:"trigger_type"`
	Keywords      []string `json:"keywords"`
	ActionType    string   `json:"action_type"`
	ActionPayload string   `json:"action_payload"`
	Active        *bool    `json:"active"`
}

type AutomationResponse struct {
	ID            string   `json:"id"`
	ChatbotID     string   `json:"chatbot_id"`
	Name          string   `json:"name"`
	TriggerType   string   `json:"trigger_type"`
	Keywords      []string `json:"keywords,omitempty"`
	ActionType    string   `json:"action_type"`
	ActionPayload string   `json:"action_payload,omitempty"`
	Active        bool     `json:"active"`
	CreatedAt     string   `json:"created_at"`
}

func automationToResponse(a *domain.Automation) *AutomationResponse {
	keywords, _ := a.Keywords()
	return &AutomationResponse{
		ID:            a.ID,
		ChatbotID:     a.ChatbotID,
		Name:          a.Name,
		TriggerType:   string(a.TriggerType),
		Keywords:      keywords,
		ActionType:    string(a.ActionType),
		ActionPayload: a.ActionPayload,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

func isValidTriggerType(t domain.TriggerType) bool {
	return t == domain.TriggerKeyword || t == domain.TriggerConversationStart
}

func isValidActionType(t domain.ActionType) bool {
	return t == domain.ActionOfferLink || t == domain.ActionOfferSchedule || t == domain.ActionCollectLead
}

func (h *AutomationHandler) Create(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := ownedChatbotIDFromPath(w, r, h.chatbots)
	if !ok {
		return
	}

	var req CreateAutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	triggerType := domain.TriggerType(req.TriggerType)
	if !isValidTriggerType(triggerType) {
		api.Error(w, http.StatusBadRequest, "invalid trigger type")
		return
	}

	actionType := domain.ActionType(req.ActionType)
	if !isValidActionType(actionType) {
		api.Error(w, http.StatusBadRequest, "invalid action type")
		return
	}

	if triggerType == domain.TriggerKeyword && len(req.Keywords) == 0 {
		api.Error(w, http.StatusBadRequest, "keywords are required for keyword triggers")
		return
	}

	var keywordsJSON string
	if len(req.Keywords) > 0 {
		raw, err := json.Marshal(req.Keywords)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid keywords")
			return
		}
		keywordsJSON = string(raw)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	automation := &domain.Automation{
		ID:            uuid.NewString(),
		ChatbotID:     chatbotID,
		Name:          req.Name,
		TriggerType:   triggerType,
		KeywordsJSON:  keywordsJSON,
		ActionType:    actionType,
		ActionPayload: req.ActionPayload,
		Active:        active,
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.repo.Create(r.Context(), automation); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, automationToResponse(automation))
}

func (h *AutomationHandler) List(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := ownedChatbotIDFromPath(w, r, h.chatbots)
	if !ok {
		return
	}

	automations, err := h.repo.ListByChatbot(r.Context(), chatbotID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*AutomationResponse, 0, len(automations))
	for _, a := range automations {
		resp = append(resp, automationToResponse(a))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *AutomationHandler) Update(w http.ResponseWriter, r *http.Request) {
	automation, ok := h.ownedAutomation(w, r)
	if !ok {
		return
	}

	var req CreateAutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		automation.Name = req.Name
	}
	if req.TriggerType != "" {
		triggerType := domain.TriggerType(req.TriggerType)
		if !isValidTriggerType(triggerType) {
			api.Error(w, http.StatusBadRequest, "invalid trigger type")
			return
		}
		automation.TriggerType = triggerType
	}
	if req.ActionType != "" {
		actionType := domain.ActionType(req.ActionType)
		if !isValidActionType(actionType) {
			api.Error(w, http.StatusBadRequest, "invalid action type")
			return
		}
		automation.ActionType = actionType
	}
	if req.Keywords != nil {
		raw, err := json.Marshal(req.Keywords)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid keywords")
			return
		}
		automation.KeywordsJSON = string(raw)
	}
	if req.ActionPayload != "" {
		automation.ActionPayload = req.ActionPayload
	}
	if req.Active != nil {
		automation.Active = *req.Active
	}

	if err := h.repo.Update(r.Context(), automation); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, automationToResponse(automation))
}

func (h *AutomationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	automation, ok := h.ownedAutomation(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), automation.ID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *AutomationHandler) ownedAutomation(w http.ResponseWriter, r *http.Request) (*domain.Automation, bool) {
	chatbotID, ok := ownedChatbotIDFromPath(w, r, h.chatbots)
	if !ok {
		return nil, false
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return nil, false
	}

	automation, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return nil, false
	}

	if automation.ChatbotID != chatbotID {
		api.HandleError(w, domain.ErrAutomationNotFound)
		return nil, false
	}

	return automation, true
}
