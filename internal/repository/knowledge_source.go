package repository

import (
	"context"
	"errors"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// KnowledgeSourceRepository handles knowledge sources, their document chunks
// and similarity search over chunk embeddings.
type KnowledgeSourceRepository struct {
	db dbtx
}

func NewKnowledgeSourceRepository(pool *pgxpool.Pool) *KnowledgeSourceRepository {
	return &KnowledgeSourceRepository{db: pool}
}

func NewKnowledgeSourceRepositoryWithTx(tx pgx.Tx) *KnowledgeSourceRepository {
	return &KnowledgeSourceRepository{db: tx}
}

func (r *KnowledgeSourceRepository) CreateSource(ctx context.Context, s *domain.KnowledgeSource) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_sources (id, chatbot_id, name, status, dimensions, asset_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.ChatbotID, s.Name, s.Status, s.Dimensions, nullableString(s.AssetKey), s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *KnowledgeSourceRepository) GetSourceByID(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	var s domain.KnowledgeSource
	var assetKey pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, chatbot_id, name, status, dimensions, asset_key, created_at, updated_at
		 FROM knowledge_sources WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.ChatbotID, &s.Name, &s.Status, &s.Dimensions, &assetKey, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeSourceNotFound
		}
		return nil, err
	}
	if assetKey.Valid {
		s.AssetKey = assetKey.String
	}
	return &s, nil
}

// ListSourcesByChatbot returns the chatbot's searchable sources, ready ones
// only. Pending, indexing and failed sources never participate in retrieval.
func (r *KnowledgeSourceRepository) ListSourcesByChatbot(ctx context.Context, chatbotID string) ([]*domain.KnowledgeSource, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chatbot_id, name, status, dimensions, asset_key, created_at, updated_at
		 FROM knowledge_sources WHERE chatbot_id = $1 AND status = $2 ORDER BY created_at ASC`,
		chatbotID, domain.KnowledgeSourceStatusReady,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

// ListAllSourcesByChatbot returns every source regardless of status, for the
// management API.
func (r *KnowledgeSourceRepository) ListAllSourcesByChatbot(ctx context.Context, chatbotID string) ([]*domain.KnowledgeSource, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chatbot_id, name, status, dimensions, asset_key, created_at, updated_at
		 FROM knowledge_sources WHERE chatbot_id = $1 ORDER BY created_at ASC`,
		chatbotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

func (r *KnowledgeSourceRepository) UpdateSourceStatus(ctx context.Context, id string, status domain.KnowledgeSourceStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_sources SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeSourceNotFound
	}
	return nil
}

func (r *KnowledgeSourceRepository) DeleteSource(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_sources WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeSourceNotFound
	}
	return nil
}

func (r *KnowledgeSourceRepository) InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		var embedding *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}

		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks (id, source_id, chunk_index, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.SourceID, c.ChunkIndex, c.Content, embedding, createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *KnowledgeSourceRepository) ListChunksWithoutEmbedding(ctx context.Context, sourceID string) ([]*domain.DocumentChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, source_id, chunk_index, content, created_at
		 FROM document_chunks WHERE source_id = $1 AND embedding IS NULL ORDER BY chunk_index ASC`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.ChunkIndex, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *KnowledgeSourceRepository) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE document_chunks SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), chunkID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeSourceNotFound
	}
	return nil
}

// SearchChunks runs cosine similarity search over one source's embedded
// chunks. Score is 1/(1+distance), so 1.0 is a perfect match; rows below the
// threshold are filtered in SQL.
func (r *KnowledgeSourceRepository) SearchChunks(ctx context.Context, source *domain.KnowledgeSource, embedding []float32, limit int, threshold float32) ([]domain.SearchMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT id, content, 1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM document_chunks
		 WHERE source_id = $2 AND embedding IS NOT NULL
		   AND 1.0 / (1.0 + (embedding <=> $1)) >= $3
		 ORDER BY score DESC
		 LIMIT $4`,
		vec, source.ID, threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.SearchMatch, 0, limit)
	for rows.Next() {
		var m domain.SearchMatch
		if err := rows.Scan(&m.ChunkID, &m.Content, &m.Score); err != nil {
			return nil, err
		}
		m.SourceID = source.ID
		m.SourceName = source.Name
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func scanSourceRows(rows pgx.Rows) ([]*domain.KnowledgeSource, error) {
	var results []*domain.KnowledgeSource
	for rows.Next() {
		var s domain.KnowledgeSource
		var assetKey pgtype.Text
		if err := rows.Scan(&s.ID, &s.ChatbotID, &s.Name, &s.Status, &s.Dimensions, &assetKey, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if assetKey.Valid {
			s.AssetKey = assetKey.String
		}
		results = append(results, &s)
	}
	return results, rows.Err()
}
