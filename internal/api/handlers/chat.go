package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/convoflow/convoflow/internal/api"
	"github.com/convoflow/convoflow/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	HandleMessage(ctx context.Context, input service.HandleMessageInput) (*service.HandleMessageOutput, error)
	StartConversation(ctx context.Context, chatbotID, visitorID string) (*service.StartConversationOutput, error)
	EndConversation(ctx context.Context, chatbotID, conversationID string) error
}

// ChatHandler serves the public widget endpoints. These routes are
// unauthenticated; the chatbot ID in the path scopes everything.
type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type StartConversationRequest struct {
	VisitorID string `json:"visitor_id"`
}

type StartConversationResponse struct {
	ConversationID string   `json:"conversation_id"`
	Messages       []string `json:"messages"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	VisitorID      string `json:"visitor_id"`
	Text           string `json:"text"`
}

type FiredTriggerResponse struct {
	AutomationID  string `json:"automation_id"`
	Name          string `json:"name"`
	ActionType    string `json:"action_type"`
	ActionPayload string `json:"action_payload,omitempty"`
	Keyword       string `json:"keyword,omitempty"`
}

type SendMessageResponse struct {
	Answer         string                 `json:"answer"`
	ConversationID string                 `json:"conversation_id"`
	Triggers       []FiredTriggerResponse `json:"triggers,omitempty"`
	Sources        []string               `json:"sources,omitempty"`
}

type EndConversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	chatbotID := chi.URLParam(r, "chatbotID")
	if chatbotID == "" {
		api.Error(w, http.StatusBadRequest, "chatbot id is required")
		return
	}

	var req StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.VisitorID == "" {
		api.Error(w, http.StatusBadRequest, "visitor_id is required")
		return
	}

	out, err := h.svc.StartConversation(r.Context(), chatbotID, req.VisitorID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, StartConversationResponse{
		ConversationID: out.ConversationID,
		Messages:       out.Messages,
	})
}

func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	chatbotID := chi.URLParam(r, "chatbotID")
	if chatbotID == "" {
		api.Error(w, http.StatusBadRequest, "chatbot id is required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.VisitorID == "" {
		api.Error(w, http.StatusBadRequest, "visitor_id is required")
		return
	}

	out, err := h.svc.HandleMessage(r.Context(), service.HandleMessageInput{
		ChatbotID:      chatbotID,
		ConversationID: req.ConversationID,
		VisitorID:      req.VisitorID,
		Text:           req.Text,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SendMessageResponse{
		Answer:         out.Answer,
		ConversationID: out.ConversationID,
		Sources:        out.Sources,
	}
	for _, trigger := range out.Triggers {
		resp.Triggers = append(resp.Triggers, FiredTriggerResponse{
			AutomationID:  trigger.AutomationID,
			Name:          trigger.Name,
			ActionType:    string(trigger.ActionType),
			ActionPayload: trigger.ActionPayload,
			Keyword:       trigger.Keyword,
		})
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *ChatHandler) End(w http.ResponseWriter, r *http.Request) {
	chatbotID := chi.URLParam(r, "chatbotID")
	if chatbotID == "" {
		api.Error(w, http.StatusBadRequest, "chatbot id is required")
		return
	}

	var req EndConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ConversationID == "" {
		api.Error(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	if err := h.svc.EndConversation(r.Context(), chatbotID, req.ConversationID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
