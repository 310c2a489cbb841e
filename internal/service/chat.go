package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
	"github.com/convoflow/convoflow/internal/telemetry"
	"github.com/google/uuid"
)

// FallbackReply is the single user-visible message for irrecoverable
// failures. Error detail stays in logs and telemetry, never in the chat.
const FallbackReply = "Sorry, I encountered an error. Please try again."

// ChatbotRepositoryInterface defines the repository interface for chatbots
type ChatbotRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Chatbot, error)
}

// ConversationRepositoryInterface defines the repository interface for
// conversations
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	Update(ctx context.Context, c *domain.Conversation) error
}

// AutomationRepositoryInterface defines the repository interface for
// automations
type AutomationRepositoryInterface interface {
	ListActiveByChatbot(ctx context.Context, chatbotID string) ([]*domain.Automation, error)
}

// LeadFormRepositoryInterface defines the repository interface for lead forms
type LeadFormRepositoryInterface interface {
	GetByChatbot(ctx context.Context, chatbotID string) (*domain.LeadForm, error)
}

// ChatService runs the query-answering pipeline for one inbound message:
// lead-collection interception, trigger matching, query rewriting, knowledge
// retrieval and answer composition, with message persistence around it.
type ChatService struct {
	chatbots      ChatbotRepositoryInterface
	conversations ConversationRepositoryInterface
	messages      MessageRepositoryInterface
	automations   AutomationRepositoryInterface
	leadForms     LeadFormRepositoryInterface

	leadFlow  *LeadFlowService
	rewriter  *QueryRewriter
	retriever *Retriever
	composer  *AnswerComposer
	history   *HistoryService

	now   func() time.Time
	newID func() string
}

// ChatServiceDeps bundles the collaborators for NewChatService
type ChatServiceDeps struct {
	Chatbots      ChatbotRepositoryInterface
	Conversations ConversationRepositoryInterface
	Messages      MessageRepositoryInterface
	Automations   AutomationRepositoryInterface
	LeadForms     LeadFormRepositoryInterface
	LeadFlow      *LeadFlowService
	Rewriter      *QueryRewriter
	Retriever     *Retriever
	Composer      *AnswerComposer
	History       *HistoryService
}

// NewChatService creates a new ChatService instance
func NewChatService(deps ChatServiceDeps) *ChatService {
	return &ChatService{
		chatbots:      deps.Chatbots,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		automations:   deps.Automations,
		leadForms:     deps.LeadForms,
		leadFlow:      deps.LeadFlow,
		rewriter:      deps.Rewriter,
		retriever:     deps.Retriever,
		composer:      deps.Composer,
		history:       deps.History,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// HandleMessageInput is one inbound user turn
type HandleMessageInput struct {
	ChatbotID      string
	ConversationID string
	VisitorID      string
	Text           string
}

// HandleMessageOutput is the pipeline's response payload
type HandleMessageOutput struct {
	Answer         string
	ConversationID string
	Triggers       []FiredTrigger
	Sources        []string
}

// HandleMessage processes one user turn end to end. Structural failures
// (unknown chatbot, conversation ownership mismatch) abort before anything
// is persisted; a generation failure after the user message is stored is
// answered with FallbackReply.
func (s *ChatService) HandleMessage(ctx context.Context, input HandleMessageInput) (*HandleMessageOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.HandleMessage", telemetry.SpanAttributes{
		ChatbotID:      input.ChatbotID,
		ConversationID: input.ConversationID,
		Operation:      "message",
	})
	defer span.End()

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message text is required")
	}

	bot, err := s.chatbots.GetByID(ctx, input.ChatbotID)
	if err != nil {
		return nil, err
	}

	conversation, err := s.resolveConversation(ctx, bot, input)
	if err != nil {
		return nil, err
	}

	// The window is captured before the user message is stored so the
	// current utterance appears in the prompt exactly once, as the final
	// User: line.
	history, err := s.history.RecentWindow(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	userMsg := domain.NewMessage(s.newID(), conversation.ID, domain.SenderUser, text, s.now().UTC())
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, err
	}

	// Lead collection intercepts the turn entirely when a session is
	// collecting; the answering pipeline never runs for the same message.
	if reply, consumed, err := s.leadFlow.HandleAnswer(ctx, bot, conversation.ID, text); err != nil {
		return nil, err
	} else if consumed {
		if err := s.persistBotMessage(ctx, conversation.ID, reply); err != nil {
			return nil, err
		}
		return &HandleMessageOutput{Answer: reply, ConversationID: conversation.ID}, nil
	}

	return s.answer(ctx, bot, conversation, text, history)
}

func (s *ChatService) answer(ctx context.Context, bot *domain.Chatbot, conversation *domain.Conversation, text, history string) (*HandleMessageOutput, error) {
	automations, err := s.automations.ListActiveByChatbot(ctx, bot.ID)
	if err != nil {
		log.Printf("chat: loading automations failed, continuing without triggers: %v", err)
		automations = nil
	}
	fired := MatchTriggers(text, automations)

	query := s.rewriter.Rewrite(ctx, text)

	retrieval, err := s.retriever.Retrieve(ctx, bot.ID, query)
	if err != nil {
		log.Printf("chat: retrieval failed, answering without context: %v", err)
		retrieval = &RetrievalResult{}
	}

	answer, err := s.composer.Compose(ctx, ComposeInput{
		Bot:          bot,
		Context:      retrieval.Context,
		TriggerNotes: FormatTriggerNotes(fired),
		History:      history,
		Message:      text,
	})
	if err != nil {
		telemetry.CaptureError(ctx, err)
		log.Printf("chat: answer generation failed for conversation %s: %v", conversation.ID, err)
		answer = FallbackReply
	}

	if err := s.persistBotMessage(ctx, conversation.ID, answer); err != nil {
		return nil, err
	}

	return &HandleMessageOutput{
		Answer:         answer,
		ConversationID: conversation.ID,
		Triggers:       fired,
		Sources:        retrieval.Sources,
	}, nil
}

// StartConversationOutput is the response to an explicit conversation start
type StartConversationOutput struct {
	ConversationID string
	Messages       []string
}

// StartConversation creates a conversation up front, emits the chatbot's
// welcome message, and begins lead collection when an active automation
// requests it.
func (s *ChatService) StartConversation(ctx context.Context, chatbotID, visitorID string) (*StartConversationOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.StartConversation", telemetry.SpanAttributes{
		ChatbotID: chatbotID,
		Operation: "start",
	})
	defer span.End()

	bot, err := s.chatbots.GetByID(ctx, chatbotID)
	if err != nil {
		return nil, err
	}

	conversation := domain.NewConversation(s.newID(), bot.ID, visitorID, s.now().UTC())
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}

	out := &StartConversationOutput{ConversationID: conversation.ID}

	if bot.WelcomeMessage != "" {
		if err := s.persistBotMessage(ctx, conversation.ID, bot.WelcomeMessage); err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, bot.WelcomeMessage)
	}

	if s.wantsLeadOnStart(ctx, bot.ID) {
		form, err := s.leadForms.GetByChatbot(ctx, bot.ID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if form != nil {
			question, started, err := s.leadFlow.Begin(ctx, bot, form, conversation.ID, visitorID)
			if err != nil {
				return nil, err
			}
			if started {
				if err := s.persistBotMessage(ctx, conversation.ID, question); err != nil {
					return nil, err
				}
				out.Messages = append(out.Messages, question)
			}
		}
	}

	return out, nil
}

// EndConversation flips the activity flag, stamps the end time and abandons
// any in-flight lead session.
func (s *ChatService) EndConversation(ctx context.Context, chatbotID, conversationID string) error {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.EndConversation", telemetry.SpanAttributes{
		ChatbotID:      chatbotID,
		ConversationID: conversationID,
		Operation:      "end",
	})
	defer span.End()

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conversation.ChatbotID != chatbotID {
		return domain.ErrConversationMismatch
	}

	conversation.End(s.now().UTC())
	if err := s.conversations.Update(ctx, conversation); err != nil {
		return err
	}

	s.leadFlow.Abandon(conversationID)
	return nil
}

func (s *ChatService) resolveConversation(ctx context.Context, bot *domain.Chatbot, input HandleMessageInput) (*domain.Conversation, error) {
	if input.ConversationID == "" {
		conversation := domain.NewConversation(s.newID(), bot.ID, input.VisitorID, s.now().UTC())
		if err := s.conversations.Create(ctx, conversation); err != nil {
			return nil, err
		}
		return conversation, nil
	}

	conversation, err := s.conversations.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if conversation.ChatbotID != bot.ID {
		return nil, domain.ErrConversationMismatch
	}
	return conversation, nil
}

func (s *ChatService) persistBotMessage(ctx context.Context, conversationID, content string) error {
	msg := domain.NewMessage(s.newID(), conversationID, domain.SenderBot, content, s.now().UTC())
	return s.messages.Create(ctx, msg)
}

func (s *ChatService) wantsLeadOnStart(ctx context.Context, chatbotID string) bool {
	automations, err := s.automations.ListActiveByChatbot(ctx, chatbotID)
	if err != nil {
		log.Printf("chat: loading automations failed, skipping lead collection: %v", err)
		return false
	}
	for _, a := range automations {
		if a.Active && a.TriggerType == domain.TriggerConversationStart && a.ActionType == domain.ActionCollectLead {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == domain.ErrCodeNotFound
	}
	return false
}
