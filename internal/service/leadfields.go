package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/convoflow/convoflow/internal/domain"
)

// SkipToken is the literal answer that skips an optional field
const SkipToken = "skip"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitPattern = regexp.MustCompile(`\d`)
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ValidateFieldAnswer checks one answer against one field's declared type.
// The per-type rules form an explicit decision table so retry policy can be
// tested independently of the dialogue plumbing. Returns nil when the answer
// is acceptable.
func ValidateFieldAnswer(field domain.LeadField, answer string) error {
	answer = strings.TrimSpace(answer)

	if answer == "" {
		if field.Required {
			return validationError(fmt.Sprintf("%s is required", field.Label))
		}
		return nil
	}

	switch field.Type {
	case domain.FieldEmail:
		if !emailPattern.MatchString(answer) {
			return validationError("that doesn't look like a valid email address")
		}

	case domain.FieldPhone:
		if len(digitPattern.FindAllString(answer, -1)) < 7 {
			return validationError("a phone number needs at least 7 digits")
		}

	case domain.FieldNumber:
		if _, err := strconv.ParseFloat(answer, 64); err != nil {
			return validationError("please enter a number")
		}

	case domain.FieldCurrency:
		cleaned := strings.TrimLeft(answer, "$€£ ")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
			return validationError("please enter an amount, like 1500 or $1,500")
		}

	case domain.FieldDate:
		if !parsesAsDate(answer) {
			return validationError("please enter a date, like 2026-03-15")
		}

	case domain.FieldLink:
		u, err := url.Parse(answer)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return validationError("please enter a full URL, like https://example.com")
		}

	case domain.FieldSelect, domain.FieldRadio:
		if !containsOption(field.Options, answer) {
			return validationError(fmt.Sprintf("please choose one of: %s", strings.Join(field.Options, ", ")))
		}
	}

	// TEXT, TEXTAREA, CHECKBOX and MULTISELECT accept any non-empty answer.
	return nil
}

func parsesAsDate(answer string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, answer); err == nil {
			return true
		}
	}
	return false
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), answer) {
			return true
		}
	}
	return false
}

func validationError(message string) error {
	return domain.NewDomainError(domain.ErrCodeValidation, message)
}

// BuildQuestion produces the prompt text for a field, given where the
// collection stands.
func BuildQuestion(field domain.LeadField) string {
	var q string
	switch field.Type {
	case domain.FieldEmail:
		q = "What's the best email address to reach you?"
		if !strings.Contains(strings.ToLower(field.Label), "email") {
			q = fmt.Sprintf("What email address should we use for %s?", lowerLabel(field))
		}
	case domain.FieldPhone:
		q = "What's a good phone number to reach you?"
		if !strings.Contains(strings.ToLower(field.Label), "phone") {
			q = fmt.Sprintf("What phone number should we use for %s?", lowerLabel(field))
		}
	case domain.FieldSelect, domain.FieldRadio, domain.FieldMultiselect:
		q = fmt.Sprintf("Which %s works for you? Options: %s.", lowerLabel(field), strings.Join(field.Options, ", "))
	case domain.FieldDate:
		q = fmt.Sprintf("What date works for your %s?", lowerLabel(field))
	default:
		q = fmt.Sprintf("Could you share your %s?", lowerLabel(field))
	}

	if !field.Required {
		q += ` (Type "skip" to skip this one.)`
	}
	return q
}

func lowerLabel(field domain.LeadField) string {
	return strings.ToLower(strings.TrimSpace(field.Label))
}

// acknowledgments are prefixed to the next question after a successful
// answer. Picked at random for a little variety.
var acknowledgments = []string{
	"Got it!",
	"Thanks!",
	"Perfect.",
	"Great, thank you.",
	"Noted!",
}
