package service

import (
	"context"
	"errors"
	"testing"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func composerBot() *domain.Chatbot {
	return &domain.Chatbot{
		ID:          "bot1",
		ModelID:     "gpt-4o-mini",
		Directive:   "You are a support assistant.",
		Personality: "Warm and concise.",
		Temperature: 0.7,
		MaxTokens:   500,
	}
}

func TestAnswerComposer_GroundedMode(t *testing.T) {
	llm := new(MockGenerator)
	composer := NewAnswerComposer(llm)

	var captured GenerationRequest
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req GenerationRequest) bool {
		captured = req
		return true
	})).Return("We open at 9am.", nil)

	answer, err := composer.Compose(context.Background(), ComposeInput{
		Bot:     composerBot(),
		Context: `[1] From "FAQ" (95% match):` + "\nWe open at 9am.",
		History: "User: hi\nBot: hello",
		Message: "What are your hours?",
	})

	require.NoError(t, err)
	assert.Equal(t, "We open at 9am.", answer)

	assert.Equal(t, "gpt-4o-mini", captured.ModelID)
	assert.Equal(t, "You are a support assistant.", captured.System)
	assert.Contains(t, captured.Prompt, "Use the context below")
	assert.Contains(t, captured.Prompt, `say "I don't have information about that"`)
	assert.Contains(t, captured.Prompt, "Conversation so far:\nUser: hi\nBot: hello")
	assert.Contains(t, captured.Prompt, "User: What are your hours?\nBot:")
	assert.NotContains(t, captured.Prompt, "Personality:")
}

func TestAnswerComposer_OpenMode(t *testing.T) {
	llm := new(MockGenerator)
	composer := NewAnswerComposer(llm)

	var captured GenerationRequest
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req GenerationRequest) bool {
		captured = req
		return true
	})).Return("Happy to help!", nil)

	answer, err := composer.Compose(context.Background(), ComposeInput{
		Bot:     composerBot(),
		Message: "Tell me about yourselves",
	})

	require.NoError(t, err)
	assert.Equal(t, "Happy to help!", answer)

	assert.Contains(t, captured.Prompt, "Personality: Warm and concise.")
	assert.NotContains(t, captured.Prompt, "Use the context below")
	assert.NotContains(t, captured.Prompt, NoInfoReply)
	assert.Contains(t, captured.Prompt, "Conversation so far:\n(new conversation)")
}

func TestAnswerComposer_BlankContextIsOpenMode(t *testing.T) {
	llm := new(MockGenerator)
	composer := NewAnswerComposer(llm)

	var captured GenerationRequest
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req GenerationRequest) bool {
		captured = req
		return true
	})).Return("ok", nil)

	_, err := composer.Compose(context.Background(), ComposeInput{
		Bot:     composerBot(),
		Context: "   \n  ",
		Message: "hi",
	})

	require.NoError(t, err)
	assert.NotContains(t, captured.Prompt, "Use the context below")
}

func TestAnswerComposer_TriggerNotesIncluded(t *testing.T) {
	llm := new(MockGenerator)
	composer := NewAnswerComposer(llm)

	var captured GenerationRequest
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req GenerationRequest) bool {
		captured = req
		return true
	})).Return("ok", nil)

	_, err := composer.Compose(context.Background(), ComposeInput{
		Bot:          composerBot(),
		TriggerNotes: "Offer the pricing page link.",
		Message:      "how much is it",
	})

	require.NoError(t, err)
	assert.Contains(t, captured.Prompt, "Offer the pricing page link.")
}

func TestAnswerComposer_ProviderFailure(t *testing.T) {
	llm := new(MockGenerator)
	composer := NewAnswerComposer(llm)

	llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("upstream 500"))

	answer, err := composer.Compose(context.Background(), ComposeInput{
		Bot:     composerBot(),
		Message: "hi",
	})

	require.Error(t, err)
	assert.Empty(t, answer)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeProvider, domainErr.Code)
}

func TestAnswerComposer_TrimsAnswer(t *testing.T) {
	llm := new(MockGenerator)
	composer := NewAnswerComposer(llm)

	llm.On("Generate", mock.Anything, mock.Anything).Return("  spaced out  \n", nil)

	answer, err := composer.Compose(context.Background(), ComposeInput{
		Bot:     composerBot(),
		Message: "hi",
	})

	require.NoError(t, err)
	assert.Equal(t, "spaced out", answer)
}
