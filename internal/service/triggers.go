package service

import (
	"fmt"
	"log"
	"strings"

	"github.com/convoflow/convoflow/internal/domain"
)

// FiredTrigger is one automation that matched the current user message.
// The same set is injected into the prompt as an annotation and returned to
// the caller for UI side-channel delivery.
type FiredTrigger struct {
	AutomationID  string
	Name          string
	ActionType    domain.ActionType
	ActionPayload string
	Keyword       string
}

// MatchTriggers scans active keyword automations against a user message.
// Matching is a case-insensitive substring check of any configured keyword.
// Malformed keyword configuration is tolerated: the automation is skipped,
// never fatal to the turn.
func MatchTriggers(message string, automations []*domain.Automation) []FiredTrigger {
	if strings.TrimSpace(message) == "" || len(automations) == 0 {
		return nil
	}

	haystack := strings.ToLower(message)
	fired := make([]FiredTrigger, 0, 2)

	for _, a := range automations {
		if a == nil || !a.Active || a.TriggerType != domain.TriggerKeyword {
			continue
		}

		keywords, err := a.Keywords()
		if err != nil {
			log.Printf("trigger matcher: skipping automation %s: %v", a.ID, err)
			continue
		}

		for _, keyword := range keywords {
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				fired = append(fired, FiredTrigger{
					AutomationID:  a.ID,
					Name:          a.Name,
					ActionType:    a.ActionType,
					ActionPayload: a.ActionPayload,
					Keyword:       keyword,
				})
				break
			}
		}
	}

	return fired
}

// FormatTriggerNotes renders fired triggers as prompt annotations so the
// answer can reference the offered action.
func FormatTriggerNotes(fired []FiredTrigger) string {
	if len(fired) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Available actions to mention:\n")
	for _, f := range fired {
		switch f.ActionType {
		case domain.ActionOfferLink:
			fmt.Fprintf(&b, "- Share this link with the user: %s\n", f.ActionPayload)
		case domain.ActionOfferSchedule:
			fmt.Fprintf(&b, "- Offer to schedule a meeting: %s\n", f.ActionPayload)
		default:
			fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.ActionPayload)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
