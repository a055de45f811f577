package transform

import (
	"fmt"
	"net/mail"
	"unicode/utf8"

	"github.com/suitesync/suitesync/internal/domain"
)

// ValidationResult reports field-constraint checks for one converted value.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateValue checks a converted value against the target field's declared
// constraints: required presence, maximum length, and email syntax. The value
// is never mutated.
func ValidateValue(value any, field domain.CrmField) ValidationResult {
	var errs []string

	label := field.Label
	if label == "" {
		label = field.Name
	}

	if value == nil || value == "" {
		if field.Required {
			errs = append(errs, fmt.Sprintf("Field '%s' is required", label))
		}
		return ValidationResult{Valid: len(errs) == 0, Errors: errs}
	}

	if s, ok := value.(string); ok {
		if field.MaxLength != nil && *field.MaxLength > 0 && utf8.RuneCountInString(s) > *field.MaxLength {
			errs = append(errs, fmt.Sprintf("Field '%s' exceeds maximum length of %d", label, *field.MaxLength))
		}
		if field.Type == "email" {
			if _, err := mail.ParseAddress(s); err != nil {
				errs = append(errs, fmt.Sprintf("Field '%s' is not a valid email address", label))
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
