package domain

import (
	"fmt"
	"time"
)

// Chatbot represents one tenant-owned bot configuration. A chatbot is a
// read-only snapshot during a single pipeline turn; the pipeline never
// mutates it.
type Chatbot struct {
	ID             string
	WorkspaceID    string
	Name           string
	Directive      string
	Personality    string
	ModelID        string
	Temperature    float32
	MaxTokens      int
	WelcomeMessage string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewChatbot creates a new Chatbot instance with generation defaults applied
func NewChatbot(id, workspaceID, name, directive string, createdAt time.Time) *Chatbot {
	return &Chatbot{
		ID:          id,
		WorkspaceID: workspaceID,
		Name:        name,
		Directive:   directive,
		ModelID:     "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   500,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateChatbot validates a Chatbot instance
func ValidateChatbot(c *Chatbot) error {
	if c == nil {
		return fmt.Errorf("chatbot cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chatbot ID is required")
	}

	if c.WorkspaceID == "" {
		return fmt.Errorf("chatbot WorkspaceID is required")
	}

	if c.Name == "" {
		return fmt.Errorf("chatbot Name is required")
	}

	if c.ModelID == "" {
		return fmt.Errorf("chatbot ModelID is required")
	}

	if c.Temperature <= 0 {
		return ErrInvalidTemperature
	}

	if c.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}

	return nil
}
