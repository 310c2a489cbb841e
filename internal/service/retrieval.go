package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/convoflow/convoflow/internal/domain"
)

const (
	// DefaultPerSourceLimit caps matches requested from each knowledge source
	DefaultPerSourceLimit = 5
	// DefaultScoreThreshold is the minimum similarity for a match to count
	DefaultScoreThreshold = 0.65
	// DefaultGlobalLimit caps the merged match list across all sources
	DefaultGlobalLimit = 8
)

// KnowledgeRepositoryInterface defines the repository interface for
// knowledge sources and chunk similarity search
type KnowledgeRepositoryInterface interface {
	ListSourcesByChatbot(ctx context.Context, chatbotID string) ([]*domain.KnowledgeSource, error)
	SearchChunks(ctx context.Context, source *domain.KnowledgeSource, embedding []float32, limit int, threshold float32) ([]domain.SearchMatch, error)
}

// EmbeddingServiceInterface defines the interface for embedding generation
type EmbeddingServiceInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RetrievalConfig controls fan-out, thresholding and merge behavior
type RetrievalConfig struct {
	PerSourceLimit int
	Threshold      float32
	GlobalLimit    int
}

// DefaultRetrievalConfig returns the default aggregator configuration
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		PerSourceLimit: DefaultPerSourceLimit,
		Threshold:      DefaultScoreThreshold,
		GlobalLimit:    DefaultGlobalLimit,
	}
}

// RetrievalResult is the aggregator's output for one query
type RetrievalResult struct {
	Matches []domain.SearchMatch
	Context string
	Sources []string
}

// HasContext reports whether any match survived threshold and truncation.
// Absence of knowledge is not an error; the composer falls back to open mode.
func (r *RetrievalResult) HasContext() bool {
	return r != nil && len(r.Matches) > 0
}

// Retriever fans similarity search out across every knowledge source scoped
// to a chatbot, then merges, ranks and formats the results into the context
// block consumed by answer composition.
type Retriever struct {
	repo     KnowledgeRepositoryInterface
	embedder EmbeddingServiceInterface
	cfg      RetrievalConfig
}

// NewRetriever creates a Retriever with default configuration
func NewRetriever(repo KnowledgeRepositoryInterface, embedder EmbeddingServiceInterface) *Retriever {
	return NewRetrieverWithConfig(repo, embedder, DefaultRetrievalConfig())
}

// NewRetrieverWithConfig creates a Retriever with explicit configuration
func NewRetrieverWithConfig(repo KnowledgeRepositoryInterface, embedder EmbeddingServiceInterface, cfg RetrievalConfig) *Retriever {
	if cfg.PerSourceLimit <= 0 {
		cfg.PerSourceLimit = DefaultPerSourceLimit
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultScoreThreshold
	}
	if cfg.GlobalLimit <= 0 {
		cfg.GlobalLimit = DefaultGlobalLimit
	}
	return &Retriever{repo: repo, embedder: embedder, cfg: cfg}
}

// Retrieve runs the full fan-out, merge, rank, threshold and format pass for
// one query. A failure in any single source, or of the embedding call
// itself, degrades to fewer (or zero) results rather than failing the turn.
func (r *Retriever) Retrieve(ctx context.Context, chatbotID, query string) (*RetrievalResult, error) {
	result := &RetrievalResult{}

	query = strings.TrimSpace(query)
	if query == "" {
		return result, nil
	}

	sources, err := r.repo.ListSourcesByChatbot(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return result, nil
	}

	embedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		log.Printf("knowledge retrieval: embedding failed, answering without context: %v", err)
		return result, nil
	}

	// One search per source, dispatched independently so a slow or failing
	// source cannot block the others. Results land in fan-out order; the
	// merge waits until every dispatched call has settled.
	perSource := make([][]domain.SearchMatch, len(sources))
	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source *domain.KnowledgeSource) {
			defer wg.Done()

			if err := source.CheckDimensions(embedding); err != nil {
				log.Printf("knowledge retrieval: source %s skipped: %v", source.ID, err)
				return
			}

			matches, err := r.repo.SearchChunks(ctx, source, embedding, r.cfg.PerSourceLimit, r.cfg.Threshold)
			if err != nil {
				log.Printf("knowledge retrieval: source %s failed: %v", source.ID, err)
				return
			}
			perSource[i] = matches
		}(i, source)
	}
	wg.Wait()

	merged := make([]domain.SearchMatch, 0, len(sources)*r.cfg.PerSourceLimit)
	for _, matches := range perSource {
		merged = append(merged, matches...)
	}

	// Rank by score descending; ties keep fan-out order.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > r.cfg.GlobalLimit {
		merged = merged[:r.cfg.GlobalLimit]
	}

	if len(merged) == 0 {
		return result, nil
	}

	result.Matches = merged
	result.Context = formatContext(merged)
	result.Sources = distinctSources(merged)
	return result, nil
}

// formatContext renders surviving matches as numbered, source-attributed,
// percentage-scored blocks. This exact string is what the composer injects.
func formatContext(matches []domain.SearchMatch) string {
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "[%d] From %q (%.0f%% match):\n%s", i+1, m.SourceName, m.Score*100, m.Content)
	}
	fmt.Fprintf(&b, "\n\n---\n\nDrawn from %d knowledge source(s).", len(distinctSources(matches)))
	return b.String()
}

func distinctSources(matches []domain.SearchMatch) []string {
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m.SourceID] {
			seen[m.SourceID] = true
			names = append(names, m.SourceName)
		}
	}
	return names
}
