package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/convoflow/convoflow/internal/telemetry"
	"github.com/google/uuid"
)

// IngestRepositoryInterface defines the repository interface for knowledge
// ingestion and indexing
type IngestRepositoryInterface interface {
	CreateSource(ctx context.Context, s *domain.KnowledgeSource) error
	GetSourceByID(ctx context.Context, id string) (*domain.KnowledgeSource, error)
	UpdateSourceStatus(ctx context.Context, id string, status domain.KnowledgeSourceStatus) error
	InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error
	ListChunksWithoutEmbedding(ctx context.Context, sourceID string) ([]*domain.DocumentChunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error
}

// EmbeddingJobRepositoryInterface defines the repository interface for
// embedding jobs
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// StorageClientInterface archives original uploaded documents
type StorageClientInterface interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

// KnowledgeService creates knowledge sources from raw text and indexes their
// chunks. Embedding happens asynchronously via the jobs worker; a source
// becomes searchable once its status is ready.
type KnowledgeService struct {
	repo     IngestRepositoryInterface
	jobs     EmbeddingJobRepositoryInterface
	embedder EmbeddingServiceInterface
	storage  StorageClientInterface
	chunkCfg ChunkConfig

	dimensions int
	now        func() time.Time
	newID      func() string
}

// NewKnowledgeService creates a new KnowledgeService instance. storage may
// be nil when no object store is configured.
func NewKnowledgeService(
	repo IngestRepositoryInterface,
	jobs EmbeddingJobRepositoryInterface,
	embedder EmbeddingServiceInterface,
	storage StorageClientInterface,
	dimensions int,
) *KnowledgeService {
	return &KnowledgeService{
		repo:       repo,
		jobs:       jobs,
		embedder:   embedder,
		storage:    storage,
		chunkCfg:   DefaultChunkConfig(),
		dimensions: dimensions,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// CreateSourceInput carries one new knowledge source's content
type CreateSourceInput struct {
	ChatbotID string
	Name      string
	Content   string
	Filename  string
}

// CreateSource stores a pending source with its unembedded chunks and queues
// one embedding job. The original document is archived when storage is
// configured; an archive failure does not fail the ingest.
func (s *KnowledgeService) CreateSource(ctx context.Context, input CreateSourceInput) (*domain.KnowledgeSource, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.CreateSource", telemetry.SpanAttributes{
		ChatbotID: input.ChatbotID,
		Operation: "create",
	})
	defer span.End()

	source := &domain.KnowledgeSource{
		ID:         s.newID(),
		ChatbotID:  input.ChatbotID,
		Name:       input.Name,
		Status:     domain.KnowledgeSourceStatusPending,
		Dimensions: s.dimensions,
		CreatedAt:  s.now().UTC(),
		UpdatedAt:  s.now().UTC(),
	}
	if err := domain.ValidateKnowledgeSource(source); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge source", err)
	}

	pieces := chunkText(input.Content, s.chunkCfg)
	if len(pieces) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "source content is empty")
	}

	if s.storage != nil && input.Filename != "" {
		key := fmt.Sprintf("%s/%s/%s", input.ChatbotID, source.ID, input.Filename)
		if err := s.storage.Upload(ctx, key, []byte(input.Content), "text/plain"); err != nil {
			log.Printf("knowledge ingest: document archive failed for source %s: %v", source.ID, err)
		} else {
			source.AssetKey = key
		}
	}

	if err := s.repo.CreateSource(ctx, source); err != nil {
		return nil, err
	}

	chunks := make([]domain.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, domain.DocumentChunk{
			ID:         s.newID(),
			SourceID:   source.ID,
			ChunkIndex: i,
			Content:    piece,
			CreatedAt:  s.now().UTC(),
		})
	}
	if err := s.repo.InsertChunks(ctx, chunks); err != nil {
		return nil, err
	}

	job := domain.NewEmbeddingJob(s.newID(), source.ID, s.now().UTC())
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	return source, nil
}

// IndexSource embeds every pending chunk of a source and marks it ready.
// Called by the background worker.
func (s *KnowledgeService) IndexSource(ctx context.Context, sourceID string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.IndexSource", telemetry.SpanAttributes{
		Operation: "index",
	})
	defer span.End()

	source, err := s.repo.GetSourceByID(ctx, sourceID)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateSourceStatus(ctx, source.ID, domain.KnowledgeSourceStatusIndexing); err != nil {
		return err
	}

	chunks, err := s.repo.ListChunksWithoutEmbedding(ctx, source.ID)
	if err != nil {
		return err
	}

	for _, chunk := range chunks {
		embedding, err := s.embedder.GenerateEmbedding(ctx, chunk.Content)
		if err != nil {
			if statusErr := s.repo.UpdateSourceStatus(ctx, source.ID, domain.KnowledgeSourceStatusFailed); statusErr != nil {
				log.Printf("knowledge ingest: marking source %s failed: %v", source.ID, statusErr)
			}
			return fmt.Errorf("embedding chunk %s: %w", chunk.ID, err)
		}

		if err := source.CheckDimensions(embedding); err != nil {
			return err
		}

		if err := s.repo.UpdateChunkEmbedding(ctx, chunk.ID, embedding); err != nil {
			return err
		}
	}

	return s.repo.UpdateSourceStatus(ctx, source.ID, domain.KnowledgeSourceStatusReady)
}
