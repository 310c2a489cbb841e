package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/convoflow/convoflow/internal/domain"
)

// NoInfoReply is the refusal phrase grounded mode instructs the model to use
// when the retrieved context cannot answer the question.
const NoInfoReply = "I don't have information about that"

// AnswerComposer assembles the final prompt and invokes the generative
// model. It builds one of two mutually exclusive shapes: grounded mode when
// knowledge context is present, open mode otherwise.
type AnswerComposer struct {
	llm Generator
}

// NewAnswerComposer creates a new AnswerComposer instance
func NewAnswerComposer(llm Generator) *AnswerComposer {
	return &AnswerComposer{llm: llm}
}

// ComposeInput carries everything one answer is conditioned on
type ComposeInput struct {
	Bot          *domain.Chatbot
	Context      string
	TriggerNotes string
	History      string
	Message      string
}

// Compose builds the prompt and runs the generation call. A provider failure
// is not retried here; it propagates as a typed error with no partial answer.
func (c *AnswerComposer) Compose(ctx context.Context, input ComposeInput) (string, error) {
	var prompt string
	if strings.TrimSpace(input.Context) != "" {
		prompt = groundedPrompt(input)
	} else {
		prompt = openPrompt(input)
	}

	answer, err := c.llm.Generate(ctx, GenerationRequest{
		ModelID:     input.Bot.ModelID,
		System:      input.Bot.Directive,
		Prompt:      prompt,
		MaxTokens:   input.Bot.MaxTokens,
		Temperature: input.Bot.Temperature,
	})
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "answer generation failed", err)
	}

	return strings.TrimSpace(answer), nil
}

func groundedPrompt(input ComposeInput) string {
	var b strings.Builder

	b.WriteString("Use the context below to answer the user's question.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(input.Context)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Answer strictly from the context above. If the context does not contain the answer, say %q.\n", NoInfoReply)

	writeSharedSections(&b, input)
	return b.String()
}

func openPrompt(input ComposeInput) string {
	var b strings.Builder

	if input.Bot.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n\n", input.Bot.Personality)
	}

	writeSharedSections(&b, input)
	return b.String()
}

func writeSharedSections(b *strings.Builder, input ComposeInput) {
	if input.TriggerNotes != "" {
		b.WriteString("\n")
		b.WriteString(input.TriggerNotes)
		b.WriteString("\n")
	}

	history := input.History
	if history == "" {
		history = EmptyHistoryMarker
	}
	fmt.Fprintf(b, "\nConversation so far:\n%s\n", history)
	fmt.Fprintf(b, "\nUser: %s\nBot:", input.Message)
}
