package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockOpenAIAPI) CreateCompletion(ctx context.Context, req CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{embeddings: mockAPI, dimensions: 1536}

	ctx := context.Background()
	text := "What are your opening hours?"
	expectedEmbedding := make([]float32, 1536)
	for i := range expectedEmbedding {
		expectedEmbedding[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", ctx, text).Return(expectedEmbedding, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Len(t, embedding, 1536)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	ctx := context.Background()
	embedding, err := client.GenerateEmbedding(ctx, "")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{embeddings: mockAPI, dimensions: 1536}

	ctx := context.Background()
	text := "Test text"
	apiErr := errors.New("API rate limit exceeded")

	mockAPI.On("CreateEmbeddings", ctx, text).Return(nil, apiErr)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{embeddings: mockAPI, dimensions: 1536}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, "short").Return([]float32{0.1, 0.2}, nil)

	embedding, err := client.GenerateEmbedding(ctx, "short")

	assert.Nil(t, embedding)
	assert.Equal(t, ErrWrongDimensions, err)
}

func TestClient_Generate_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{completions: mockAPI, dimensions: 1536}

	ctx := context.Background()
	req := CompletionRequest{
		ModelID:     "gpt-4o-mini",
		Prompt:      "Say hello",
		MaxTokens:   100,
		Temperature: 0.7,
	}

	mockAPI.On("CreateCompletion", ctx, req).Return("  Hello there.  ", nil)

	text, err := client.Generate(ctx, req)

	assert.NoError(t, err)
	assert.Equal(t, "Hello there.", text)
	mockAPI.AssertExpectations(t)
}

func TestClient_Generate_EmptyPrompt(t *testing.T) {
	client := NewClient("")

	_, err := client.Generate(context.Background(), CompletionRequest{Prompt: "   "})
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_Generate_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{completions: mockAPI, dimensions: 1536}

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, mock.Anything).Return("", errors.New("quota exceeded"))

	_, err := client.Generate(ctx, CompletionRequest{ModelID: "gpt-4o-mini", Prompt: "hi"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create completion")
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.NotNil(t, client.embeddings)
	assert.NotNil(t, client.completions)
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimensions())
}
