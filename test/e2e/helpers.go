//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/convoflow/convoflow/internal/api/handlers"
	"github.com/convoflow/convoflow/internal/jobs"
	"github.com/convoflow/convoflow/internal/repository"
	"github.com/convoflow/convoflow/internal/server"
	"github.com/convoflow/convoflow/internal/service"
	"github.com/convoflow/convoflow/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// cannedAnswer is what the stub model returns for every completion call.
// Tests assert against it instead of a live provider.
const cannedAnswer = "Our starter plan is $10 per month."

const embeddingDimensions = 1536

// stubEmbedder maps every text to the same unit vector, so any query
// matches any indexed chunk with score 1.0.
type stubEmbedder struct{}

func (stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, embeddingDimensions)
	v[0] = 1
	return v, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, req service.GenerationRequest) (string, error) {
	return cannedAnswer, nil
}

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T              *testing.T
	Ctx            context.Context
	PostgresC      *testutil.PostgresContainer
	Pool           *pgxpool.Pool
	Server         *httptest.Server
	IndexProcessor *jobs.IndexWorker
	WorkspaceID    string
	APIKeyToken    string
	HTTPClient     *http.Client
}

// SetupE2EEnv starts a Postgres container, runs migrations, and serves the
// full router in-process with stubbed model calls.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	workspaceRepo := repository.NewWorkspaceRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	chatbotRepo := repository.NewChatbotRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	sourceRepo := repository.NewKnowledgeSourceRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	automationRepo := repository.NewAutomationRepository(pool)
	leadFormRepo := repository.NewLeadFormRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)

	authSvc := service.NewAuthService(workspaceRepo, apiKeyRepo)
	knowledgeSvc := service.NewKnowledgeService(sourceRepo, embeddingJobRepo, stubEmbedder{}, nil, embeddingDimensions)

	chatSvc := service.NewChatService(service.ChatServiceDeps{
		Chatbots:      chatbotRepo,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Automations:   automationRepo,
		LeadForms:     leadFormRepo,
		LeadFlow:      service.NewLeadFlowService(leadRepo),
		Rewriter:      service.NewQueryRewriter(stubGenerator{}, "gpt-4o-mini"),
		Retriever:     service.NewRetriever(sourceRepo, stubEmbedder{}),
		Composer:      service.NewAnswerComposer(stubGenerator{}),
		History:       service.NewHistoryService(messageRepo),
	})

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:     authSvc,
		ChatHandler:       handlers.NewChatHandler(chatSvc),
		ChatbotHandler:    handlers.NewChatbotHandler(chatbotRepo),
		KnowledgeHandler:  handlers.NewKnowledgeHandler(knowledgeSvc, sourceRepo, chatbotRepo),
		AutomationHandler: handlers.NewAutomationHandler(automationRepo, chatbotRepo),
		LeadHandler:       handlers.NewLeadHandler(leadFormRepo, leadRepo, chatbotRepo),
		AuthHandler:       handlers.NewAuthHandler(authSvc),
	})

	srv := httptest.NewServer(router)

	env := &E2ETestEnv{
		T:              t,
		Ctx:            ctx,
		PostgresC:      pgC,
		Pool:           pool,
		Server:         srv,
		IndexProcessor: jobs.NewIndexWorker(embeddingJobRepo, knowledgeSvc),
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
	}

	env.bootstrap(authSvc)
	return env
}

// bootstrap provisions the workspace and API key the authed requests use
func (e *E2ETestEnv) bootstrap(authSvc *service.AuthService) {
	workspace, err := authSvc.CreateWorkspace(e.Ctx, "E2E Test Workspace")
	if err != nil {
		e.T.Fatalf("failed to create workspace: %v", err)
	}
	e.WorkspaceID = workspace.ID

	token, err := authSvc.CreateAPIKey(e.Ctx, workspace.ID, "e2e-test-key")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}
	e.APIKeyToken = token
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// ProcessPendingJobs runs one index-worker pass so queued sources become ready
func (e *E2ETestEnv) ProcessPendingJobs() {
	if err := e.IndexProcessor.ProcessJobs(e.Ctx); err != nil {
		e.T.Fatalf("failed to process embedding jobs: %v", err)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, authToken)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodPut, path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.Server.URL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// CreateChatbot provisions a chatbot over the API and returns its ID
func (e *E2ETestEnv) CreateChatbot(name string) string {
	resp, err := e.Post("/chatbots", map[string]interface{}{
		"name":      name,
		"directive": "You answer questions about our product.",
	}, e.APIKeyToken)
	if err != nil {
		e.T.Fatalf("failed to create chatbot: %v", err)
	}

	var bot struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &bot); err != nil {
		e.T.Fatalf("failed to parse chatbot response: %v", err)
	}
	return bot.ID
}
