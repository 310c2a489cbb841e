package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/google/uuid"
)

const apiKeyPrefix = "cvf_"

// WorkspaceRepositoryInterface defines the repository interface for workspaces
type WorkspaceRepositoryInterface interface {
	Create(ctx context.Context, w *domain.Workspace) error
	GetByID(ctx context.Context, id string) (*domain.Workspace, error)
	GetByName(ctx context.Context, name string) (*domain.Workspace, error)
}

// APIKeyRepositoryInterface defines the repository interface for API keys
type APIKeyRepositoryInterface interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

// AuthService manages workspaces and the API keys that authenticate
// management routes. Plaintext tokens are returned exactly once at creation;
// only their SHA-256 hashes are stored.
type AuthService struct {
	workspaces WorkspaceRepositoryInterface
	keys       APIKeyRepositoryInterface

	now   func() time.Time
	newID func() string
}

// NewAuthService creates a new AuthService instance
func NewAuthService(workspaces WorkspaceRepositoryInterface, keys APIKeyRepositoryInterface) *AuthService {
	return &AuthService{
		workspaces: workspaces,
		keys:       keys,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *AuthService) CreateWorkspace(ctx context.Context, name string) (*domain.Workspace, error) {
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "workspace name is required")
	}

	workspace := domain.NewWorkspace(s.newID(), name, s.now().UTC())

	if err := domain.ValidateWorkspace(workspace); err != nil {
		return nil, err
	}

	if err := s.workspaces.Create(ctx, workspace); err != nil {
		return nil, err
	}

	return workspace, nil
}

// CreateAPIKey mints a new key for the workspace and returns the plaintext
// token. It is not recoverable afterwards.
func (s *AuthService) CreateAPIKey(ctx context.Context, workspaceID, name string) (string, error) {
	if workspaceID == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "workspace ID is required")
	}
	if name == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}

	if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
		return "", err
	}

	token, err := generateAPIToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	key := domain.NewAPIKey(s.newID(), workspaceID, name, hashToken(token), s.now().UTC(), nil)

	if err := domain.ValidateAPIKey(key); err != nil {
		return "", err
	}

	if err := s.keys.Create(ctx, key); err != nil {
		return "", err
	}

	return token, nil
}

// CreateAPIKeyWithToken registers a caller-supplied token, used when
// bootstrapping an initial key from configuration.
func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, workspaceID, name, token string) error {
	if workspaceID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "workspace ID is required")
	}
	if name == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}
	if !IsValidAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeValidation, "invalid API key format (expected cvf_<64 hex chars>)")
	}

	if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
		return err
	}

	key := domain.NewAPIKey(s.newID(), workspaceID, name, hashToken(token), s.now().UTC(), nil)

	if err := domain.ValidateAPIKey(key); err != nil {
		return err
	}

	return s.keys.Create(ctx, key)
}

// ValidateAPIKey resolves a plaintext token to its workspace ID. Unknown,
// malformed and revoked keys all fail authentication.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	if !IsValidAPIToken(token) {
		return "", domain.ErrInvalidAPIKey
	}

	key, err := s.keys.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return "", domain.ErrInvalidAPIKey
		}
		return "", err
	}

	if key.IsRevoked() {
		return "", domain.ErrAPIKeyRevoked
	}

	return key.WorkspaceID, nil
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}

	return s.keys.Revoke(ctx, keyID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context, workspaceID string) ([]*domain.APIKey, error) {
	if workspaceID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "workspace ID is required")
	}

	return s.keys.ListByWorkspace(ctx, workspaceID)
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// IsValidAPIToken reports whether token has the cvf_<64 hex chars> shape
func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
