package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeadFormRepository struct {
	db dbtx
}

func NewLeadFormRepository(pool *pgxpool.Pool) *LeadFormRepository {
	return &LeadFormRepository{db: pool}
}

func NewLeadFormRepositoryWithTx(tx pgx.Tx) *LeadFormRepository {
	return &LeadFormRepository{db: tx}
}

// Upsert stores a chatbot's lead form, one per chatbot. Field definitions are
// stored as a JSON document; ordering within the document is the collection
// order.
func (r *LeadFormRepository) Upsert(ctx context.Context, f *domain.LeadForm) error {
	fields, err := json.Marshal(f.Fields)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO lead_forms (id, chatbot_id, title, success_message, fields, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (chatbot_id) DO UPDATE
		 SET title = EXCLUDED.title,
		     success_message = EXCLUDED.success_message,
		     fields = EXCLUDED.fields,
		     updated_at = EXCLUDED.updated_at`,
		f.ID, f.ChatbotID, f.Title, f.SuccessMessage, fields, f.CreatedAt, time.Now().UTC(),
	)
	return err
}

func (r *LeadFormRepository) GetByChatbot(ctx context.Context, chatbotID string) (*domain.LeadForm, error) {
	var f domain.LeadForm
	var fields []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, chatbot_id, title, success_message, fields, created_at, updated_at
		 FROM lead_forms WHERE chatbot_id = $1`,
		chatbotID,
	).Scan(&f.ID, &f.ChatbotID, &f.Title, &f.SuccessMessage, &fields, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLeadFormNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(fields, &f.Fields); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "lead form fields are not valid JSON", err)
	}
	return &f, nil
}

func (r *LeadFormRepository) Delete(ctx context.Context, chatbotID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM lead_forms WHERE chatbot_id = $1`,
		chatbotID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrLeadFormNotFound
	}
	return nil
}
