package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeConfig           = "CONFIG_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidSenderKind    = NewDomainError(ErrCodeValidation, "invalid message sender kind")
	ErrInvalidFieldType     = NewDomainError(ErrCodeValidation, "invalid lead field type")
	ErrInvalidTemperature   = NewDomainError(ErrCodeValidation, "temperature must be greater than zero")
	ErrInvalidMaxTokens     = NewDomainError(ErrCodeValidation, "max tokens must be greater than zero")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrChatbotNotFound         = NewDomainError(ErrCodeNotFound, "chatbot not found")
	ErrConversationNotFound    = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrKnowledgeSourceNotFound = NewDomainError(ErrCodeNotFound, "knowledge source not found")
	ErrAutomationNotFound      = NewDomainError(ErrCodeNotFound, "automation not found")
	ErrLeadFormNotFound        = NewDomainError(ErrCodeNotFound, "lead form not found")
	ErrWorkspaceNotFound       = NewDomainError(ErrCodeNotFound, "workspace not found")
	ErrAPIKeyNotFound          = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	ErrLeadAlreadyExists      = NewDomainError(ErrCodeAlreadyExists, "lead already submitted for this conversation")
	ErrWorkspaceAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "workspace already exists")
	ErrAPIKeyAlreadyExists    = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked        = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey        = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrConversationMismatch = NewDomainError(ErrCodeForbidden, "conversation does not belong to this chatbot")
)

// Provider errors
var (
	ErrGenerationFailed = NewDomainError(ErrCodeProvider, "generative model call failed")
	ErrSearchFailed     = NewDomainError(ErrCodeProvider, "similarity search failed")
)

// Configuration errors
var (
	ErrMalformedKeywords   = NewDomainError(ErrCodeConfig, "automation keywords are not valid JSON")
	ErrMalformedLeadFields = NewDomainError(ErrCodeConfig, "lead form fields are not valid JSON")
)

// Operation errors
var (
	ErrConversationEnded          = NewDomainError(ErrCodeInvalidOperation, "conversation has ended")
	ErrEmbeddingDimensionMismatch = NewDomainError(ErrCodeInvalidOperation, "embedding dimensionality does not match knowledge source")
)
