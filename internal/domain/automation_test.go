package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutomationKeywords(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		expected []string
		wantErr  bool
	}{
		{"simple list", `["pricing", "cost"]`, []string{"pricing", "cost"}, false},
		{"trims entries", `[" demo ", ""]`, []string{"demo"}, false},
		{"empty string config", "", nil, false},
		{"whitespace config", "   ", nil, false},
		{"malformed json", `{"not": "a list"}`, nil, true},
		{"truncated json", `["pricing"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Automation{ID: "a1", ChatbotID: "bot1", TriggerType: TriggerKeyword, KeywordsJSON: tt.json}
			keywords, err := a.Keywords()
			if tt.wantErr {
				require.Error(t, err)
				var domainErr *DomainError
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, ErrCodeConfig, domainErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, keywords)
		})
	}
}

func TestChatbotValidation(t *testing.T) {
	bot := NewChatbot("bot1", "ws1", "Support Bot", "You help customers.", time.Now())
	require.NoError(t, ValidateChatbot(bot))

	t.Run("zero temperature", func(t *testing.T) {
		b := *bot
		b.Temperature = 0
		assert.ErrorIs(t, ValidateChatbot(&b), ErrInvalidTemperature)
	})

	t.Run("zero max tokens", func(t *testing.T) {
		b := *bot
		b.MaxTokens = 0
		assert.ErrorIs(t, ValidateChatbot(&b), ErrInvalidMaxTokens)
	})

	t.Run("missing workspace", func(t *testing.T) {
		b := *bot
		b.WorkspaceID = ""
		assert.Error(t, ValidateChatbot(&b))
	})
}

func TestKnowledgeSourceDimensionCheck(t *testing.T) {
	src := &KnowledgeSource{ID: "s1", ChatbotID: "bot1", Name: "FAQ", Dimensions: 3}

	require.NoError(t, src.CheckDimensions([]float32{0.1, 0.2, 0.3}))

	err := src.CheckDimensions([]float32{0.1, 0.2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingDimensionMismatch)
}
