package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/convoflow/convoflow/internal/api/handlers"
	"github.com/convoflow/convoflow/internal/domain"
	"github.com/convoflow/convoflow/internal/pagination"
	"github.com/convoflow/convoflow/internal/repository"
	"github.com/convoflow/convoflow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "cvf_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) HandleMessage(ctx context.Context, input service.HandleMessageInput) (*service.HandleMessageOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HandleMessageOutput), args.Error(1)
}

func (m *MockChatService) StartConversation(ctx context.Context, chatbotID, visitorID string) (*service.StartConversationOutput, error) {
	args := m.Called(ctx, chatbotID, visitorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StartConversationOutput), args.Error(1)
}

func (m *MockChatService) EndConversation(ctx context.Context, chatbotID, conversationID string) error {
	args := m.Called(ctx, chatbotID, conversationID)
	return args.Error(0)
}

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

type MockAutomationRepository struct {
	mock.Mock
}

func (m *MockAutomationRepository) Create(ctx context.Context, a *domain.Automation) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAutomationRepository) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Automation), args.Error(1)
}

func (m *MockAutomationRepository) ListByChatbot(ctx context.Context, chatbotID string) ([]*domain.Automation, error) {
	args := m.Called(ctx, chatbotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Automation), args.Error(1)
}

func (m *MockAutomationRepository) Update(ctx context.Context, a *domain.Automation) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAutomationRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockLeadFormRepository struct {
	mock.Mock
}

func (m *MockLeadFormRepository) Upsert(ctx context.Context, f *domain.LeadForm) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockLeadFormRepository) GetByChatbot(ctx context.Context, chatbotID string) (*domain.LeadForm, error) {
	args := m.Called(ctx, chatbotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LeadForm), args.Error(1)
}

func (m *MockLeadFormRepository) Delete(ctx context.Context, chatbotID string) error {
	args := m.Called(ctx, chatbotID)
	return args.Error(0)
}

type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) ListByChatbotWithCursor(ctx context.Context, chatbotID string, cursor *pagination.Cursor, limit int) (*repository.LeadPageResult, error) {
	args := m.Called(ctx, chatbotID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.LeadPageResult), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CreateAPIKey(ctx context.Context, workspaceID, name string) (string, error) {
	args := m.Called(ctx, workspaceID, name)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	args := m.Called(ctx, keyID)
	return args.Error(0)
}

func (m *MockAuthService) ListAPIKeys(ctx context.Context, workspaceID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

type routerFixture struct {
	router        http.Handler
	authValidator *MockAuthValidator
	chatSvc       *MockChatService
	chatbots      *MockChatbotRepository
	leads         *MockLeadRepository
}

func setupRouter() *routerFixture {
	authValidator := new(MockAuthValidator)
	chatSvc := new(MockChatService)
	chatbots := new(MockChatbotRepository)
	knowledgeSvc := new(MockKnowledgeService)
	sources := new(MockKnowledgeSourceRepository)
	automations := new(MockAutomationRepository)
	forms := new(MockLeadFormRepository)
	leads := new(MockLeadRepository)
	authSvc := new(MockAuthService)

	cfg := RouterConfig{
		AuthValidator:     authValidator,
		ChatHandler:       handlers.NewChatHandler(chatSvc),
		ChatbotHandler:    handlers.NewChatbotHandler(chatbots),
		KnowledgeHandler:  handlers.NewKnowledgeHandler(knowledgeSvc, sources, chatbots),
		AutomationHandler: handlers.NewAutomationHandler(automations, chatbots),
		LeadHandler:       handlers.NewLeadHandler(forms, leads, chatbots),
		AuthHandler:       handlers.NewAuthHandler(authSvc),
	}

	return &routerFixture{
		router:        NewRouter(cfg),
		authValidator: authValidator,
		chatSvc:       chatSvc,
		chatbots:      chatbots,
		leads:         leads,
	}
}

func TestRouter_HealthEndpoint(t *testing.T) {
	f := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_ChatRoutes_NoAuthRequired(t *testing.T) {
	f := setupRouter()

	f.chatSvc.On("StartConversation", mock.Anything, "bot1", "visitor-1").Return(&service.StartConversationOutput{
		ConversationID: "conv1",
	}, nil)

	body := strings.NewReader(`{"visitor_id":"visitor-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/bot1/start", body)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	f.chatSvc.AssertExpectations(t)
}

func TestRouter_ManagementRoutes_RequireAuth(t *testing.T) {
	f := setupRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/chatbots"},
		{http.MethodPost, "/chatbots"},
		{http.MethodGet, "/chatbots/bot1"},
		{http.MethodPost, "/chatbots/bot1/sources"},
		{http.MethodGet, "/chatbots/bot1/automations"},
		{http.MethodPut, "/chatbots/bot1/lead-form"},
		{http.MethodGet, "/chatbots/bot1/leads"},
		{http.MethodPost, "/apikeys"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			f.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_ManagementRoutes_WithValidAuth(t *testing.T) {
	f := setupRouter()

	f.authValidator.On("ValidateAPIKey", mock.Anything, testToken).Return("ws1", nil)

	bot := domain.NewChatbot("bot1", "ws1", "Support bot", "You help.", time.Now().UTC())
	f.chatbots.On("ListByWorkspace", mock.Anything, "ws1").Return([]*domain.Chatbot{bot}, nil)

	req := httptest.NewRequest(http.MethodGet, "/chatbots", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.authValidator.AssertExpectations(t)
	f.chatbots.AssertExpectations(t)
}

func TestRouter_NestedChatbotRoute_WithValidAuth(t *testing.T) {
	f := setupRouter()

	f.authValidator.On("ValidateAPIKey", mock.Anything, testToken).Return("ws1", nil)

	bot := domain.NewChatbot("bot1", "ws1", "Support bot", "You help.", time.Now().UTC())
	f.chatbots.On("GetByID", mock.Anything, "bot1").Return(bot, nil)
	f.leads.On("ListByChatbotWithCursor", mock.Anything, "bot1", (*pagination.Cursor)(nil), 20).Return(&repository.LeadPageResult{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/chatbots/bot1/leads", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.leads.AssertExpectations(t)
}
