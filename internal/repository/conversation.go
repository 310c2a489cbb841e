package repository

import (
	"context"
	"errors"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, chatbot_id, visitor_id, active, lead_id, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ChatbotID, c.VisitorID, c.Active, nullableString(c.LeadID), c.StartedAt, c.EndedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	var leadID pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, chatbot_id, visitor_id, active, lead_id, started_at, ended_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ChatbotID, &c.VisitorID, &c.Active, &leadID, &c.StartedAt, &c.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	if leadID.Valid {
		c.LeadID = leadID.String
	}
	return &c, nil
}

func (r *ConversationRepository) Update(ctx context.Context, c *domain.Conversation) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE conversations SET active = $1, lead_id = $2, ended_at = $3 WHERE id = $4`,
		c.Active, nullableString(c.LeadID), c.EndedAt, c.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) ListByChatbot(ctx context.Context, chatbotID string) ([]*domain.Conversation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chatbot_id, visitor_id, active, lead_id, started_at, ended_at
		 FROM conversations WHERE chatbot_id = $1 ORDER BY started_at DESC`,
		chatbotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var leadID pgtype.Text
		if err := rows.Scan(&c.ID, &c.ChatbotID, &c.VisitorID, &c.Active, &leadID, &c.StartedAt, &c.EndedAt); err != nil {
			return nil, err
		}
		if leadID.Valid {
			c.LeadID = leadID.String
		}
		conversations = append(conversations, &c)
	}
	return conversations, rows.Err()
}
