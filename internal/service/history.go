package service

import (
	"context"
	"strings"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
)

const (
	// HistoryLimit caps the number of messages included in the prompt window
	HistoryLimit = 10
	// HistoryMaxAge bounds the window by message age
	HistoryMaxAge = 30 * time.Minute
	// EmptyHistoryMarker stands in for an empty window. Prompt assembly
	// treats it as equivalent to no prior turns.
	EmptyHistoryMarker = "(new conversation)"
)

// MessageRepositoryInterface defines the repository interface for messages
type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Message) error
	ListRecent(ctx context.Context, conversationID string, since time.Time, limit int) ([]*domain.Message, error)
}

// HistoryService loads and formats the bounded recent message window for a
// conversation.
type HistoryService struct {
	messages MessageRepositoryInterface
	now      func() time.Time
}

// NewHistoryService creates a new HistoryService instance
func NewHistoryService(messages MessageRepositoryInterface) *HistoryService {
	return &HistoryService{messages: messages, now: time.Now}
}

// RecentWindow returns the formatted history for a conversation: the last
// HistoryLimit messages newer than HistoryMaxAge, oldest first.
func (h *HistoryService) RecentWindow(ctx context.Context, conversationID string) (string, error) {
	if conversationID == "" {
		return EmptyHistoryMarker, nil
	}

	since := h.now().Add(-HistoryMaxAge)
	messages, err := h.messages.ListRecent(ctx, conversationID, since, HistoryLimit)
	if err != nil {
		return "", err
	}

	return FormatHistory(messages), nil
}

// FormatHistory renders messages as alternating User:/Bot: lines in the
// order given. The transform is lossless on content.
func FormatHistory(messages []*domain.Message) string {
	if len(messages) == 0 {
		return EmptyHistoryMarker
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		prefix := "User: "
		if m.Sender == domain.SenderBot {
			prefix = "Bot: "
		}
		lines = append(lines, prefix+m.Content)
	}
	return strings.Join(lines, "\n")
}
