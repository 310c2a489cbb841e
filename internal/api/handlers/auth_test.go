package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

func TestAuthHandler_CreateAPIKey_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateAPIKey", mock.Anything, "ws1", "ci key").Return("cvf_abc123", nil)

	req := authedRequest(http.MethodPost, "/apikeys", []byte(`{"name":"ci key"}`), nil)
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data CreateAPIKeyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cvf_abc123", resp.Data.Token)
	assert.Equal(t, "ci key", resp.Data.Name)
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_CreateAPIKey_MissingName(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	req := authedRequest(http.MethodPost, "/apikeys", []byte(`{}`), nil)
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "CreateAPIKey", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthHandler_CreateAPIKey_Unauthorized(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/apikeys", nil)
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_ListAPIKeys_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	revoked := created.Add(24 * time.Hour)
	keys := []*domain.APIKey{
		{ID: "key1", WorkspaceID: "ws1", Name: "active key", CreatedAt: created},
		{ID: "key2", WorkspaceID: "ws1", Name: "old key", CreatedAt: created, RevokedAt: &revoked},
	}
	mockSvc.On("ListAPIKeys", mock.Anything, "ws1").Return(keys, nil)

	req := authedRequest(http.MethodGet, "/apikeys", nil, nil)
	w := httptest.NewRecorder()

	handler.ListAPIKeys(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []APIKeyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Empty(t, resp.Data[0].RevokedAt)
	assert.Equal(t, revoked.Format(time.RFC3339), resp.Data[1].RevokedAt)
}

func TestAuthHandler_RevokeAPIKey_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("RevokeAPIKey", mock.Anything, "key1").Return(nil)

	req := authedRequest(http.MethodDelete, "/apikeys/key1", nil, map[string]string{"id": "key1"})
	w := httptest.NewRecorder()

	handler.RevokeAPIKey(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_RevokeAPIKey_NotFound(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("RevokeAPIKey", mock.Anything, "missing").Return(domain.ErrAPIKeyNotFound)

	req := authedRequest(http.MethodDelete, "/apikeys/missing", nil, map[string]string{"id": "missing"})
	w := httptest.NewRecorder()

	handler.RevokeAPIKey(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
