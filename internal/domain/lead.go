package domain

import (
	"fmt"
	"time"
)

// FieldType represents the declared type of a lead form field
type FieldType string

const (
	FieldText        FieldType = "TEXT"
	FieldEmail       FieldType = "EMAIL"
	FieldPhone       FieldType = "PHONE"
	FieldNumber      FieldType = "NUMBER"
	FieldCurrency    FieldType = "CURRENCY"
	FieldDate        FieldType = "DATE"
	FieldLink        FieldType = "LINK"
	FieldSelect      FieldType = "SELECT"
	FieldRadio       FieldType = "RADIO"
	FieldCheckbox    FieldType = "CHECKBOX"
	FieldTextarea    FieldType = "TEXTAREA"
	FieldMultiselect FieldType = "MULTISELECT"
)

var fieldTypes = map[FieldType]bool{
	FieldText: true, FieldEmail: true, FieldPhone: true, FieldNumber: true,
	FieldCurrency: true, FieldDate: true, FieldLink: true, FieldSelect: true,
	FieldRadio: true, FieldCheckbox: true, FieldTextarea: true, FieldMultiselect: true,
}

// IsValidFieldType reports whether t is a known lead field type
func IsValidFieldType(t FieldType) bool {
	return fieldTypes[t]
}

// LeadField is one ordered, typed entry of a lead form
type LeadField struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// LeadForm is a chatbot's configured lead-capture form
type LeadForm struct {
	ID             string
	ChatbotID      string
	Title          string
	SuccessMessage string
	Fields         []LeadField
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Lead is the persisted result of one completed collection session.
// At most one lead exists per (chatbot, conversation) pair.
type Lead struct {
	ID             string
	FormID         string
	ChatbotID      string
	ConversationID string
	VisitorID      string
	Values         map[string]string
	CreatedAt      time.Time
}

// ValidateLeadForm validates a LeadForm instance
func ValidateLeadForm(f *LeadForm) error {
	if f == nil {
		return fmt.Errorf("lead form cannot be nil")
	}

	if f.ID == "" {
		return fmt.Errorf("lead form ID is required")
	}

	if f.ChatbotID == "" {
		return fmt.Errorf("lead form ChatbotID is required")
	}

	if len(f.Fields) == 0 {
		return fmt.Errorf("lead form must have at least one field")
	}

	for i, field := range f.Fields {
		if field.Label == "" {
			return fmt.Errorf("field %d: label is required", i)
		}
		if !IsValidFieldType(field.Type) {
			return ErrInvalidFieldType
		}
		if (field.Type == FieldSelect || field.Type == FieldRadio || field.Type == FieldMultiselect) && len(field.Options) == 0 {
			return fmt.Errorf("field %q: options are required for type %s", field.Label, field.Type)
		}
	}

	return nil
}

// ValidateLead validates a Lead instance
func ValidateLead(l *Lead) error {
	if l == nil {
		return fmt.Errorf("lead cannot be nil")
	}

	if l.ID == "" {
		return fmt.Errorf("lead ID is required")
	}

	if l.FormID == "" {
		return fmt.Errorf("lead FormID is required")
	}

	if l.ChatbotID == "" {
		return fmt.Errorf("lead ChatbotID is required")
	}

	if l.ConversationID == "" {
		return fmt.Errorf("lead ConversationID is required")
	}

	return nil
}
