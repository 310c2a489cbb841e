package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TriggerType represents how an automation is activated
type TriggerType string

const (
	TriggerKeyword            TriggerType = "keyword"
	TriggerConversationStart  TriggerType = "conversation_start"
)

// ActionType represents the side action an automation performs when fired
type ActionType string

const (
	ActionOfferLink     ActionType = "offer_link"
	ActionOfferSchedule ActionType = "offer_schedule"
	ActionCollectLead   ActionType = "collect_lead"
)

// Automation is a configured side action for a chatbot. Keyword automations
// fire when any of their keywords appears in a user message.
type Automation struct {
	ID            string
	ChatbotID     string
	Name          string
	TriggerType   TriggerType
	KeywordsJSON  string
	ActionType    ActionType
	ActionPayload string
	Active        bool
	CreatedAt     time.Time
}

// Keywords parses the configured keyword list. Malformed configuration
// returns ErrMalformedKeywords; callers in the matching path treat that as
// "no match" rather than a fatal error.
func (a *Automation) Keywords() ([]string, error) {
	if strings.TrimSpace(a.KeywordsJSON) == "" {
		return nil, nil
	}

	var raw []string
	if err := json.Unmarshal([]byte(a.KeywordsJSON), &raw); err != nil {
		return nil, NewDomainErrorWithCause(ErrCodeConfig, "automation keywords are not valid JSON", err)
	}

	keywords := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords, nil
}
