package domain

import (
	"fmt"
	"time"
)

// KnowledgeSourceStatus represents the indexing status of a knowledge source
type KnowledgeSourceStatus string

const (
	KnowledgeSourceStatusPending  KnowledgeSourceStatus = "pending"
	KnowledgeSourceStatusIndexing KnowledgeSourceStatus = "indexing"
	KnowledgeSourceStatusReady    KnowledgeSourceStatus = "ready"
	KnowledgeSourceStatusFailed   KnowledgeSourceStatus = "failed"
)

// KnowledgeSource is a named, independently searchable collection of
// embedded document chunks belonging to one chatbot.
type KnowledgeSource struct {
	ID         string
	ChatbotID  string
	Name       string
	Status     KnowledgeSourceStatus
	Dimensions int
	AssetKey   string // object-storage key of the original document, optional
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentChunk is one indexed slice of a source's content. Every chunk in a
// source carries an embedding of the source's declared dimensionality.
type DocumentChunk struct {
	ID         string
	SourceID   string
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// SearchMatch is one similarity-search hit. Matches are ephemeral: they are
// merged, ranked and rendered within a single turn and never persisted.
type SearchMatch struct {
	Content    string
	Score      float32
	SourceID   string
	SourceName string
	ChunkID    string
}

// ValidateKnowledgeSource validates a KnowledgeSource instance
func ValidateKnowledgeSource(s *KnowledgeSource) error {
	if s == nil {
		return fmt.Errorf("knowledge source cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("knowledge source ID is required")
	}

	if s.ChatbotID == "" {
		return fmt.Errorf("knowledge source ChatbotID is required")
	}

	if s.Name == "" {
		return fmt.Errorf("knowledge source Name is required")
	}

	if s.Dimensions <= 0 {
		return fmt.Errorf("knowledge source Dimensions must be positive")
	}

	return nil
}

// CheckDimensions fails fast when an embedding does not match the source's
// declared dimensionality. Comparing vectors of different dimensionality
// silently produces nonsense scores, so the mismatch is an error.
func (s *KnowledgeSource) CheckDimensions(embedding []float32) error {
	if len(embedding) != s.Dimensions {
		return NewDomainErrorWithCause(
			ErrCodeInvalidOperation,
			fmt.Sprintf("embedding has %d dimensions, source %q expects %d", len(embedding), s.Name, s.Dimensions),
			ErrEmbeddingDimensionMismatch,
		)
	}
	return nil
}
