package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/convoflow/convoflow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) CreateSource(ctx context.Context, input service.CreateSourceInput) (*domain.KnowledgeSource, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeSource), args.Error(1)
}

type MockKnowledgeSourceRepository struct {
	mock.Mock
}

func (m *MockKnowledgeSourceRepository) GetSourceByID(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeSource), args.Error(1)
}

func (m *MockKnowledgeSourceRepository) ListAllSourcesByChatbot(ctx context.Context, chatbotID string) ([]*domain.KnowledgeSource, error) {
	args := m.Called(ctx, chatbotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeSource), args.Error(1)
}

func (m *MockKnowledgeSourceRepository) DeleteSource(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestSource() *domain.KnowledgeSource {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.KnowledgeSource{
		ID:         "src1",
		ChatbotID:  "bot1",
		Name:       "FAQ",
		Status:     domain.KnowledgeSourceStatusPending,
		Dimensions: 1536,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func knowledgeHandlerFixture() (*KnowledgeHandler, *MockKnowledgeService, *MockKnowledgeSourceRepository, *MockChatbotRepository) {
	mockSvc := new(MockKnowledgeService)
	mockSources := new(MockKnowledgeSourceRepository)
	mockChatbots := new(MockChatbotRepository)
	mockChatbots.On("GetByID", mock.Anything, "bot1").Return(newTestChatbot(), nil).Maybe()
	return NewKnowledgeHandler(mockSvc, mockSources, mockChatbots), mockSvc, mockSources, mockChatbots
}

func TestKnowledgeHandler_Create_Success(t *testing.T) {
	handler, mockSvc, _, _ := knowledgeHandlerFixture()

	mockSvc.On("CreateSource", mock.Anything, service.CreateSourceInput{
		ChatbotID: "bot1",
		Name:      "FAQ",
		Content:   "Q: What?\nA: That.",
		Filename:  "faq.txt",
	}).Return(newTestSource(), nil)

	body := `{"name":"FAQ","content":"Q: What?\nA: That.","filename":"faq.txt"}`
	req := authedRequest(http.MethodPost, "/chatbots/bot1/sources", []byte(body), map[string]string{"chatbotID": "bot1"})
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data SourceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "src1", resp.Data.ID)
	assert.Equal(t, "pending", resp.Data.Status)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeHandler_Create_EmptyContent(t *testing.T) {
	handler, mockSvc, _, _ := knowledgeHandlerFixture()

	body := `{"name":"FAQ","content":""}`
	req := authedRequest(http.MethodPost, "/chatbots/bot1/sources", []byte(body), map[string]string{"chatbotID": "bot1"})
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "CreateSource", mock.Anything, mock.Anything)
}

func TestKnowledgeHandler_List_Success(t *testing.T) {
	handler, _, mockSources, _ := knowledgeHandlerFixture()

	mockSources.On("ListAllSourcesByChatbot", mock.Anything, "bot1").Return([]*domain.KnowledgeSource{newTestSource()}, nil)

	req := authedRequest(http.MethodGet, "/chatbots/bot1/sources", nil, map[string]string{"chatbotID": "bot1"})
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []SourceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "FAQ", resp.Data[0].Name)
}

func TestKnowledgeHandler_Get_SourceOfOtherChatbotNotFound(t *testing.T) {
	handler, _, mockSources, _ := knowledgeHandlerFixture()

	foreign := newTestSource()
	foreign.ChatbotID = "other-bot"
	mockSources.On("GetSourceByID", mock.Anything, "src1").Return(foreign, nil)

	req := authedRequest(http.MethodGet, "/chatbots/bot1/sources/src1", nil, map[string]string{"chatbotID": "bot1", "id": "src1"})
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKnowledgeHandler_Delete_Success(t *testing.T) {
	handler, _, mockSources, _ := knowledgeHandlerFixture()

	mockSources.On("GetSourceByID", mock.Anything, "src1").Return(newTestSource(), nil)
	mockSources.On("DeleteSource", mock.Anything, "src1").Return(nil)

	req := authedRequest(http.MethodDelete, "/chatbots/bot1/sources/src1", nil, map[string]string{"chatbotID": "bot1", "id": "src1"})
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSources.AssertExpectations(t)
}
