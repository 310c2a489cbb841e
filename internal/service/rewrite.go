package service

import (
	"context"
	"log"
	"strings"
)

// GenerationRequest carries one generative call's parameters
type GenerationRequest struct {
	ModelID     string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Generator is the generative-model collaborator consumed by the pipeline
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

const rewritePrompt = `Rewrite the user message below as a compact search query of 3 to 10 words.
Keep the key nouns and intent, drop filler. Reply with only the query, no quotes.

Message: `

// QueryRewriter turns a conversational utterance into a compact search
// query. Rewriting is a best-effort optimization: any provider failure is
// swallowed and the original utterance is returned unchanged.
type QueryRewriter struct {
	llm     Generator
	modelID string
}

// NewQueryRewriter creates a new QueryRewriter using the given model
func NewQueryRewriter(llm Generator, modelID string) *QueryRewriter {
	return &QueryRewriter{llm: llm, modelID: modelID}
}

// Rewrite returns the compact search query for an utterance, or the
// utterance itself when the rewrite call fails or produces nothing usable.
// One attempt, no retry.
func (r *QueryRewriter) Rewrite(ctx context.Context, utterance string) string {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" || r.llm == nil {
		return utterance
	}

	rewritten, err := r.llm.Generate(ctx, GenerationRequest{
		ModelID:     r.modelID,
		Prompt:      rewritePrompt + utterance,
		MaxTokens:   40,
		Temperature: 0.1,
	})
	if err != nil {
		log.Printf("query rewrite failed, using original utterance: %v", err)
		return utterance
	}

	rewritten = stripQuotes(rewritten)
	if rewritten == "" {
		return utterance
	}
	return rewritten
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "“", "")
	s = strings.ReplaceAll(s, "”", "")
	return strings.TrimSpace(s)
}
