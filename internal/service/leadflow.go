package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/google/uuid"
)

// SessionStatus is the lead collection state for one conversation
type SessionStatus string

const (
	SessionIdle       SessionStatus = "idle"
	SessionCollecting SessionStatus = "collecting"
	SessionSubmitting SessionStatus = "submitting"
	SessionDone       SessionStatus = "done"
	SessionError      SessionStatus = "error"
)

// maxFieldRetries bounds re-prompting for one field. After this many
// consecutive invalid answers the raw answer is force-accepted (or the field
// skipped, if optional) so an unanswerable field cannot stall the
// conversation. Force-accepted values are not re-validated.
const maxFieldRetries = 3

// GenericThankYou is emitted after submission when the form has no
// configured success message.
const GenericThankYou = "Thank you! We've received your details and will be in touch soon."

// submitApology is emitted when lead submission fails
const submitApology = "Sorry, something went wrong saving your details. Let's try that again."

// LeadRepositoryInterface defines the repository interface for leads
type LeadRepositoryInterface interface {
	Create(ctx context.Context, lead *domain.Lead) error
	HasSubmitted(ctx context.Context, chatbotID, visitorID string) (bool, error)
}

// LeadSession is the ephemeral per-conversation collection state. It lives
// in the arena keyed by conversation id; it is never persisted mid-flight
// and is recoverable only by restarting from field zero.
type LeadSession struct {
	ConversationID string
	VisitorID      string
	Form           *domain.LeadForm
	Status         SessionStatus
	FieldIndex     int
	Values         map[string]string
	Retries        map[string]int
}

func (s *LeadSession) currentField() (domain.LeadField, bool) {
	if s.FieldIndex < 0 || s.FieldIndex >= len(s.Form.Fields) {
		return domain.LeadField{}, false
	}
	return s.Form.Fields[s.FieldIndex], true
}

// LeadFlowService orchestrates multi-turn, field-by-field lead capture
// interleaved with normal chat. Sessions are mutated by at most one request
// per conversation at a time; the mutex guards only the arena map.
type LeadFlowService struct {
	mu       sync.Mutex
	sessions map[string]*LeadSession

	leads LeadRepositoryInterface
	randn func(n int) int
	newID func() string
}

// NewLeadFlowService creates a new LeadFlowService instance
func NewLeadFlowService(leads LeadRepositoryInterface) *LeadFlowService {
	return &LeadFlowService{
		sessions: make(map[string]*LeadSession),
		leads:    leads,
		randn:    rand.New(rand.NewSource(time.Now().UnixNano())).Intn,
		newID:    uuid.NewString,
	}
}

// Begin starts collection for a conversation. It is a no-op when no form is
// configured or when this visitor has already submitted a lead for the
// chatbot (durable flag; collection never restarts for them). Returns the
// first field's question and whether collection actually started.
func (f *LeadFlowService) Begin(ctx context.Context, bot *domain.Chatbot, form *domain.LeadForm, conversationID, visitorID string) (string, bool, error) {
	if form == nil || len(form.Fields) == 0 {
		return "", false, nil
	}

	submitted, err := f.leads.HasSubmitted(ctx, bot.ID, visitorID)
	if err != nil {
		return "", false, err
	}
	if submitted {
		return "", false, nil
	}

	session := &LeadSession{
		ConversationID: conversationID,
		VisitorID:      visitorID,
		Form:           form,
		Status:         SessionCollecting,
		FieldIndex:     0,
		Values:         make(map[string]string, len(form.Fields)),
		Retries:        make(map[string]int),
	}

	f.mu.Lock()
	f.sessions[conversationID] = session
	f.mu.Unlock()

	return BuildQuestion(form.Fields[0]), true, nil
}

// HandleAnswer offers one user message to the state machine. When the
// session is not collecting, the message is reported not consumed and falls
// through to the normal answering pipeline; the two paths never both run for
// one turn.
func (f *LeadFlowService) HandleAnswer(ctx context.Context, bot *domain.Chatbot, conversationID, answer string) (string, bool, error) {
	f.mu.Lock()
	session := f.sessions[conversationID]
	f.mu.Unlock()

	if session == nil || session.Status != SessionCollecting {
		return "", false, nil
	}

	field, ok := session.currentField()
	if !ok {
		// Index past the end should have submitted already; recover by
		// submitting now.
		return f.submit(ctx, bot, session)
	}

	trimmed := trimAnswer(answer)

	// The skip token only applies to optional fields. On a required field
	// "skip" is validated like any other answer.
	if equalsSkip(trimmed) && !field.Required {
		session.Values[field.Label] = ""
		return f.advance(ctx, bot, session)
	}

	if err := ValidateFieldAnswer(field, trimmed); err != nil {
		session.Retries[field.ID]++
		if session.Retries[field.ID] < maxFieldRetries {
			return fmt.Sprintf("%s %s", validationMessage(err), BuildQuestion(field)), true, nil
		}

		// Bounded-retry-then-accept: take the raw answer as-is, or record
		// an empty value when the field is optional and the answer is the
		// skip token.
		if equalsSkip(trimmed) {
			trimmed = ""
		}
		session.Values[field.Label] = trimmed
		delete(session.Retries, field.ID)
		return f.advance(ctx, bot, session)
	}

	session.Values[field.Label] = trimmed
	delete(session.Retries, field.ID)
	return f.advance(ctx, bot, session)
}

// Status returns the session status for a conversation, SessionIdle when no
// session exists.
func (f *LeadFlowService) Status(conversationID string) SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[conversationID]; ok {
		return s.Status
	}
	return SessionIdle
}

// Retry re-enters collecting from the error state so the user can finish
// the remaining flow.
func (f *LeadFlowService) Retry(conversationID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session := f.sessions[conversationID]
	if session == nil || session.Status != SessionError {
		return "", false
	}

	session.Status = SessionCollecting
	if field, ok := session.currentField(); ok {
		return BuildQuestion(field), true
	}
	return "", false
}

// Abandon destroys the session for a conversation, if any
func (f *LeadFlowService) Abandon(conversationID string) {
	f.mu.Lock()
	delete(f.sessions, conversationID)
	f.mu.Unlock()
}

func (f *LeadFlowService) advance(ctx context.Context, bot *domain.Chatbot, session *LeadSession) (string, bool, error) {
	session.FieldIndex++

	if field, ok := session.currentField(); ok {
		ack := acknowledgments[f.randn(len(acknowledgments))]
		return fmt.Sprintf("%s %s", ack, BuildQuestion(field)), true, nil
	}

	return f.submit(ctx, bot, session)
}

func (f *LeadFlowService) submit(ctx context.Context, bot *domain.Chatbot, session *LeadSession) (string, bool, error) {
	session.Status = SessionSubmitting

	lead := &domain.Lead{
		ID:             f.newID(),
		FormID:         session.Form.ID,
		ChatbotID:      bot.ID,
		ConversationID: session.ConversationID,
		VisitorID:      session.VisitorID,
		Values:         session.Values,
		CreatedAt:      time.Now().UTC(),
	}

	if err := f.leads.Create(ctx, lead); err != nil {
		if errors.Is(err, domain.ErrLeadAlreadyExists) {
			// A lead already exists for this conversation; treat the
			// session as complete rather than surfacing a conflict.
			session.Status = SessionDone
			f.Abandon(session.ConversationID)
			return f.successMessage(session), true, nil
		}

		log.Printf("lead submission failed for conversation %s: %v", session.ConversationID, err)
		session.Status = SessionError
		// Submission is reached with the index past the last field. Step
		// back onto it so the apology carries its question and Retry can
		// resume from there.
		if session.FieldIndex >= len(session.Form.Fields) {
			session.FieldIndex = len(session.Form.Fields) - 1
		}
		reply := submitApology
		if field, ok := session.currentField(); ok {
			reply = fmt.Sprintf("%s %s", submitApology, BuildQuestion(field))
		}
		return reply, true, nil
	}

	session.Status = SessionDone
	f.Abandon(session.ConversationID)
	return f.successMessage(session), true, nil
}

func (f *LeadFlowService) successMessage(session *LeadSession) string {
	if session.Form.SuccessMessage != "" {
		return session.Form.SuccessMessage
	}
	return GenericThankYou
}

func trimAnswer(answer string) string {
	return strings.TrimSpace(answer)
}

func equalsSkip(answer string) bool {
	return strings.EqualFold(answer, SkipToken)
}

func validationMessage(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		msg := domainErr.Message
		if msg != "" {
			return strings.ToUpper(msg[:1]) + msg[1:] + "."
		}
	}
	return "That doesn't look right."
}
