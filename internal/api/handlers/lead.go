package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/convoflow/convoflow/internal/api"
	"github.com/convoflow/convoflow/internal/domain"
	"github.com/convoflow/convoflow/internal/pagination"
	"github.com/convoflow/convoflow/internal/repository"
	"github.com/google/uuid"
)

type LeadFormRepository interface {
	Upsert(ctx context.Context, f *domain.LeadForm) error
	GetByChatbot(ctx context.Context, chatbotID string) (*domain.LeadForm, error)
	Delete(ctx context.Context, chatbotID string) error
}

type LeadRepository interface {
	ListByChatbotWithCursor(ctx context.Context, chatbotID string, cursor *pagination.Cursor, limit int) (*repository.LeadPageResult, error)
}

type LeadHandler struct {
	forms    LeadFormRepository
	leads    LeadRepository
	chatbots ChatbotGetter
}

func NewLeadHandler(forms LeadFormRepository, leads LeadRepository, chatbots ChatbotGetter) *LeadHandler {
	return &LeadHandler{forms: forms, leads: leads, chatbots: chatbots}
}

type LeadFieldRequest struct {
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

type UpsertLeadFormRequest struct {
	Title          string             `json:"title"`
	SuccessMessage string             `json:"success_message"`
	Fields         []LeadFieldRequest `json:"fields"`
}

type LeadFieldResponse struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

type LeadFormResponse struct {
	ID             string              `json:"id"`
	ChatbotID      string              `json:"chatbot_id"`
	Title          string              `json:"title"`
	SuccessMessage string              `json:"success_message"`
	Fields         []LeadFieldResponse `json:"fields"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      string              `json:"updated_at"`
}

type LeadResponse struct {
	ID             string            `json:"id"`
	FormID         string            `json:"form_id"`
	ConversationID string            `json:"conversation_id"`
	VisitorID      string            `json:"visitor_id"`
	Values         map[string]string `json:"values"`
	CreatedAt      string            `json:"created_at"`
}

type LeadListResponse struct {
	Leads      []*LeadResponse `json:"leads"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

func leadFormToResponse(f *domain.LeadForm) *LeadFormResponse {
	fields := make([]LeadFieldResponse, 0, len(f.Fields))
	for _, field := range f.Fields {
		fields = append(fields, LeadFieldResponse{
			ID:       field.ID,
			Label:    field.Label,
			Type:     string(field.Type),
			Required: field.Required,
			Options:  field.Options,
		})
	}
	return &LeadFormResponse{
		ID:             f.ID,
		ChatbotID:      f.ChatbotID,
		Title:          f.Title,
		SuccessMessage: f.SuccessMessage,
		Fields:         fields,
		CreatedAt:      f.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      f.UpdatedAt.Format(time.RFC3339),
	}
}

func leadToResponse(l *domain.Lead) *LeadResponse {
	return &LeadResponse{
		ID:             l.ID,
		FormID:         l.FormID,
		ConversationID: l.ConversationID,
		VisitorID:      l.VisitorID,
		Values:         l.Values,
		CreatedAt:      l.CreatedAt.Format(time.RFC3339),
	}
}

func (h *LeadHandler) UpsertForm(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := ownedChatbotIDFromPath(w, r, h.chatbots)
	if !ok {
		return
	}

	var req UpsertLeadFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Fields) == 0 {
		api.Error(w, http.StatusBadRequest, "at least one field is required")
		return
	}

	now := time.Now().UTC()
	form := &domain.LeadForm{
		ID:             uuid.NewString(),
		ChatbotID:      chatbotID,
		Title:          req.Title,
		SuccessMessage: req.SuccessMessage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, field := range req.Fields {
		form.Fields = append(form.Fields, domain.LeadField{
			ID:       uuid.NewString(),
			Label:    field.Label,
			Type:     domain.FieldType(field.Type),
			Required: field.Required,
			Options:  field.Options,
		})
	}

	if err := domain.ValidateLeadForm(form); err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.forms.Upsert(r.Context(), form); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, leadFormToResponse(form))
}

func (h *LeadHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := ownedChatbotIDFromPath(w, r, h.chatbots)
	if !ok {
		return
	}

	form, err := h.forms.GetByChatbot(r.Context(), chatbotID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, leadFormToResponse(form))
}

func (h *LeadHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := ownedChatbotIDFromPath(w, r, h.chatbots)
	if !ok {
		return
	}

	if err := h.forms.Delete(r.Context(), chatbotID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := ownedChatbotIDFromPath(w, r, h.chatbots)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	page, err := h.leads.ListByChatbotWithCursor(r.Context(), chatbotID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := LeadListResponse{
		Leads:      make([]*LeadResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for _, lead := range page.Items {
		resp.Leads = append(resp.Leads, leadToResponse(lead))
	}

	api.Success(w, http.StatusOK, resp)
}
