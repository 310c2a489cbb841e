package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/convoflow/convoflow/internal/api/middleware"
	"github.com/convoflow/convoflow/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatbotRepository struct {
	mock.Mock
}

func (m *MockChatbotRepository) Create(ctx context.Context, b *domain.Chatbot) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockChatbotRepository) GetByID(ctx context.Context, id string) (*domain.Chatbot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chatbot), args.Error(1)
}

func (m *MockChatbotRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Chatbot, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chatbot), args.Error(1)
}

func (m *MockChatbotRepository) Update(ctx context.Context, b *domain.Chatbot) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockChatbotRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestChatbot() *domain.Chatbot {
	return domain.NewChatbot("bot1", "ws1", "Support bot", "You are a support assistant.", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

// authedRequest builds a request carrying the workspace from auth middleware
// and optional chi URL params.
func authedRequest(method, url string, body []byte, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.WorkspaceIDKey, "ws1")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	return req.WithContext(ctx)
}

func TestChatbotHandler_Create_Success(t *testing.T) {
	mockRepo := new(MockChatbotRepository)
	handler := NewChatbotHandler(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(b *domain.Chatbot) bool {
		return b.WorkspaceID == "ws1" && b.Name == "Support bot" && b.ModelID == "gpt-4o-mini"
	})).Return(nil)

	body := `{"name":"Support bot","directive":"You are a support assistant."}`
	req := authedRequest(http.MethodPost, "/chatbots", []byte(body), nil)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data ChatbotResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ws1", resp.Data.WorkspaceID)
	assert.Equal(t, "gpt-4o-mini", resp.Data.ModelID)
	mockRepo.AssertExpectations(t)
}

func TestChatbotHandler_Create_MissingDirective(t *testing.T) {
	mockRepo := new(MockChatbotRepository)
	handler := NewChatbotHandler(mockRepo)

	req := authedRequest(http.MethodPost, "/chatbots", []byte(`{"name":"Support bot"}`), nil)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestChatbotHandler_Create_Unauthorized(t *testing.T) {
	mockRepo := new(MockChatbotRepository)
	handler := NewChatbotHandler(mockRepo)

	req := httptest.NewRequest(http.MethodPost, "/chatbots", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatbotHandler_Get_OtherWorkspaceReadsAsNotFound(t *testing.T) {
	mockRepo := new(MockChatbotRepository)
	handler := NewChatbotHandler(mockRepo)

	foreign := newTestChatbot()
	foreign.WorkspaceID = "ws-other"
	mockRepo.On("GetByID", mock.Anything, "bot1").Return(foreign, nil)

	req := authedRequest(http.MethodGet, "/chatbots/bot1", nil, map[string]string{"id": "bot1"})
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatbotHandler_List_Success(t *testing.T) {
	mockRepo := new(MockChatbotRepository)
	handler := NewChatbotHandler(mockRepo)

	mockRepo.On("ListByWorkspace", mock.Anything, "ws1").Return([]*domain.Chatbot{newTestChatbot()}, nil)

	req := authedRequest(http.MethodGet, "/chatbots", nil, nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []ChatbotResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "bot1", resp.Data[0].ID)
	mockRepo.AssertExpectations(t)
}

func TestChatbotHandler_Update_Success(t *testing.T) {
	mockRepo := new(MockChatbotRepository)
	handler := NewChatbotHandler(mockRepo)

	mockRepo.On("GetByID", mock.Anything, "bot1").Return(newTestChatbot(), nil)
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(b *domain.Chatbot) bool {
		return b.Name == "Sales bot" && b.Directive == "You are a support assistant."
	})).Return(nil)

	req := authedRequest(http.MethodPut, "/chatbots/bot1", []byte(`{"name":"Sales bot"}`), map[string]string{"id": "bot1"})
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestChatbotHandler_Delete_Success(t *testing.T) {
	mockRepo := new(MockChatbotRepository)
	handler := NewChatbotHandler(mockRepo)

	mockRepo.On("GetByID", mock.Anything, "bot1").Return(newTestChatbot(), nil)
	mockRepo.On("Delete", mock.Anything, "bot1").Return(nil)

	req := authedRequest(http.MethodDelete, "/chatbots/bot1", nil, map[string]string{"id": "bot1"})
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockRepo.AssertExpectations(t)
}
