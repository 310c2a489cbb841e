package repository

import (
	"context"
	"errors"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatbotRepository struct {
	db dbtx
}

func NewChatbotRepository(pool *pgxpool.Pool) *ChatbotRepository {
	return &ChatbotRepository{db: pool}
}

func NewChatbotRepositoryWithTx(tx pgx.Tx) *ChatbotRepository {
	return &ChatbotRepository{db: tx}
}

func (r *ChatbotRepository) Create(ctx context.Context, b *domain.Chatbot) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chatbots (id, workspace_id, name, directive, personality, model_id, temperature, max_tokens, welcome_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.WorkspaceID, b.Name, b.Directive, b.Personality, b.ModelID, b.Temperature, b.MaxTokens, b.WelcomeMessage, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (r *ChatbotRepository) GetByID(ctx context.Context, id string) (*domain.Chatbot, error) {
	var b domain.Chatbot
	err := r.db.QueryRow(ctx,
		`SELECT id, workspace_id, name, directive, personality, model_id, temperature, max_tokens, welcome_message, created_at, updated_at
		 FROM chatbots WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.Directive, &b.Personality, &b.ModelID, &b.Temperature, &b.MaxTokens, &b.WelcomeMessage, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatbotNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *ChatbotRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Chatbot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, workspace_id, name, directive, personality, model_id, temperature, max_tokens, welcome_message, created_at, updated_at
		 FROM chatbots WHERE workspace_id = $1 ORDER BY created_at DESC`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*domain.Chatbot
	for rows.Next() {
		var b domain.Chatbot
		if err := rows.Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.Directive, &b.Personality, &b.ModelID, &b.Temperature, &b.MaxTokens, &b.WelcomeMessage, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bots = append(bots, &b)
	}
	return bots, rows.Err()
}

func (r *ChatbotRepository) Update(ctx context.Context, b *domain.Chatbot) error {
	b.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chatbots SET name = $1, directive = $2, personality = $3, model_id = $4, temperature = $5, max_tokens = $6, welcome_message = $7, updated_at = $8
		 WHERE id = $9`,
		b.Name, b.Directive, b.Personality, b.ModelID, b.Temperature, b.MaxTokens, b.WelcomeMessage, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChatbotNotFound
	}
	return nil
}

func (r *ChatbotRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM chatbots WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChatbotNotFound
	}
	return nil
}
