package repository

import (
	"context"
	"errors"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AutomationRepository struct {
	db dbtx
}

func NewAutomationRepository(pool *pgxpool.Pool) *AutomationRepository {
	return &AutomationRepository{db: pool}
}

func NewAutomationRepositoryWithTx(tx pgx.Tx) *AutomationRepository {
	return &AutomationRepository{db: tx}
}

func (r *AutomationRepository) Create(ctx context.Context, a *domain.Automation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO automations (id, chatbot_id, name, trigger_type, keywords, action_type, action_payload, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ChatbotID, a.Name, a.TriggerType, nullableString(a.KeywordsJSON), a.ActionType, a.ActionPayload, a.Active, a.CreatedAt,
	)
	return err
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	var a domain.Automation
	var keywords *string
	err := r.db.QueryRow(ctx,
		`SELECT id, chatbot_id, name, trigger_type, keywords, action_type, action_payload, active, created_at
		 FROM automations WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.ChatbotID, &a.Name, &a.TriggerType, &keywords, &a.ActionType, &a.ActionPayload, &a.Active, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAutomationNotFound
		}
		return nil, err
	}
	if keywords != nil {
		a.KeywordsJSON = *keywords
	}
	return &a, nil
}

func (r *AutomationRepository) ListActiveByChatbot(ctx context.Context, chatbotID string) ([]*domain.Automation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chatbot_id, name, trigger_type, keywords, action_type, action_payload, active, created_at
		 FROM automations WHERE chatbot_id = $1 AND active ORDER BY created_at ASC`,
		chatbotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAutomationRows(rows)
}

func (r *AutomationRepository) ListByChatbot(ctx context.Context, chatbotID string) ([]*domain.Automation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chatbot_id, name, trigger_type, keywords, action_type, action_payload, active, created_at
		 FROM automations WHERE chatbot_id = $1 ORDER BY created_at ASC`,
		chatbotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAutomationRows(rows)
}

func (r *AutomationRepository) Update(ctx context.Context, a *domain.Automation) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE automations SET name = $1, trigger_type = $2, keywords = $3, action_type = $4, action_payload = $5, active = $6
		 WHERE id = $7`,
		a.Name, a.TriggerType, nullableString(a.KeywordsJSON), a.ActionType, a.ActionPayload, a.Active, a.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAutomationNotFound
	}
	return nil
}

func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM automations WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAutomationNotFound
	}
	return nil
}

func scanAutomationRows(rows pgx.Rows) ([]*domain.Automation, error) {
	var automations []*domain.Automation
	for rows.Next() {
		var a domain.Automation
		var keywords *string
		if err := rows.Scan(&a.ID, &a.ChatbotID, &a.Name, &a.TriggerType, &keywords, &a.ActionType, &a.ActionPayload, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		if keywords != nil {
			a.KeywordsJSON = *keywords
		}
		automations = append(automations, &a)
	}
	return automations, rows.Err()
}
