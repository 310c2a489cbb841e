package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/convoflow/convoflow/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeadPageResult struct {
	Items      []*domain.Lead
	NextCursor string
	HasMore    bool
}

type LeadRepository struct {
	db dbtx
}

func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: pool}
}

func NewLeadRepositoryWithTx(tx pgx.Tx) *LeadRepository {
	return &LeadRepository{db: tx}
}

// Create inserts a lead. The (chatbot_id, conversation_id) unique constraint
// is the idempotence guarantee for double submission; a violation maps to
// domain.ErrLeadAlreadyExists.
func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	values, err := json.Marshal(lead.Values)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO leads (id, form_id, chatbot_id, conversation_id, visitor_id, field_values, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lead.ID, lead.FormID, lead.ChatbotID, lead.ConversationID, lead.VisitorID, values, lead.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrLeadAlreadyExists
	}
	return err
}

// HasSubmitted reports whether this visitor already submitted a lead for the
// chatbot, across all their conversations.
func (r *LeadRepository) HasSubmitted(ctx context.Context, chatbotID, visitorID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE chatbot_id = $1 AND visitor_id = $2)`,
		chatbotID, visitorID,
	).Scan(&exists)
	return exists, err
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	var values []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, form_id, chatbot_id, conversation_id, visitor_id, field_values, created_at
		 FROM leads WHERE id = $1`,
		id,
	).Scan(&lead.ID, &lead.FormID, &lead.ChatbotID, &lead.ConversationID, &lead.VisitorID, &values, &lead.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrCodeNotFound, "lead not found")
		}
		return nil, err
	}
	if err := json.Unmarshal(values, &lead.Values); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepository) ListByChatbotWithCursor(ctx context.Context, chatbotID string, cursor *pagination.Cursor, limit int) (*LeadPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, form_id, chatbot_id, conversation_id, visitor_id, field_values, created_at
			 FROM leads
			 WHERE chatbot_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			chatbotID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, form_id, chatbot_id, conversation_id, visitor_id, field_values, created_at
			 FROM leads
			 WHERE chatbot_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			chatbotID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		var lead domain.Lead
		var values []byte
		if err := rows.Scan(&lead.ID, &lead.FormID, &lead.ChatbotID, &lead.ConversationID, &lead.VisitorID, &values, &lead.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(values, &lead.Values); err != nil {
			return nil, err
		}
		leads = append(leads, &lead)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(leads) > limit
	if hasMore {
		leads = leads[:limit]
	}

	var nextCursor string
	if hasMore && len(leads) > 0 {
		lastLead := leads[len(leads)-1]
		nextCursor = pagination.EncodeCursor(lastLead.ID, lastLead.CreatedAt)
	}

	return &LeadPageResult{
		Items:      leads,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
