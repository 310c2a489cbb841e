package domain

import (
	"fmt"
	"time"
)

// SenderKind identifies who authored a message
type SenderKind string

const (
	SenderUser SenderKind = "USER"
	SenderBot  SenderKind = "BOT"
)

// Conversation represents one visitor's chat session with a chatbot.
// Conversations are created lazily on the first user turn and ended
// explicitly by flipping Active, which stamps EndedAt.
type Conversation struct {
	ID        string
	ChatbotID string
	VisitorID string
	Active    bool
	LeadID    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Message is one turn in a conversation. Messages are append-only; the
// pipeline never mutates or deletes them.
type Message struct {
	ID             string
	ConversationID string
	Sender         SenderKind
	Content        string
	CreatedAt      time.Time
}

// NewConversation creates a new active Conversation instance
func NewConversation(id, chatbotID, visitorID string, startedAt time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		ChatbotID: chatbotID,
		VisitorID: visitorID,
		Active:    true,
		StartedAt: startedAt,
	}
}

// End marks the conversation inactive and stamps the end time
func (c *Conversation) End(at time.Time) {
	c.Active = false
	c.EndedAt = &at
}

// NewMessage creates a new Message instance
func NewMessage(id, conversationID string, sender SenderKind, content string, createdAt time.Time) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      createdAt,
	}
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}

	if m.ConversationID == "" {
		return fmt.Errorf("message ConversationID is required")
	}

	if m.Sender != SenderUser && m.Sender != SenderBot {
		return ErrInvalidSenderKind
	}

	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}

	return nil
}
