package transform

import (
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/suitesync/suitesync/internal/domain"
)

// truthy is the token set coerced to true for boolean target fields.
var truthy = map[string]bool{
	"y": true, "yes": true, "1": true, "true": true, "on": true,
}

// dateLayouts are tried in order for date and datetime targets. Best effort:
// an unparsable value converts to nil.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ConvertValue coerces a raw value to whatever the target CRM field declares.
// Empty input short-circuits to the field's declared default (or nil) before
// type dispatch. Unconvertible values become nil rather than erroring; the
// caller decides whether a nil is acceptable via ValidateValue.
func ConvertValue(raw string, field domain.CrmField) any {
	if raw == "" {
		if field.Default != "" {
			return field.Default
		}
		return nil
	}

	switch field.Type {
	case "bool", "boolean":
		return truthy[strings.ToLower(strings.TrimSpace(raw))]

	case "int", "integer", "tinyint", "smallint", "bigint":
		s := strings.TrimSpace(raw)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		// Tolerate decimal notation for integer targets.
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return nil

	case "float", "double", "decimal", "currency":
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
		return nil

	case "date":
		if t, ok := parseDate(raw); ok {
			return t.Format("2006-01-02")
		}
		return nil

	case "datetime", "datetimecombo":
		if t, ok := parseDate(raw); ok {
			return t.Format("2006-01-02 15:04:05")
		}
		return nil

	case "multienum":
		return encodeMultiEnum(raw)

	case "email":
		addr := strings.TrimSpace(raw)
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil
		}
		return addr

	default:
		// varchar, text, name, phone, url and anything unrecognized: plain
		// string, right-truncated to the declared length.
		return truncate(raw, field.MaxLength)
	}
}

func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// encodeMultiEnum wraps each selected option in the CRM's ^...^ sentinel.
// Input may be a |-delimited multi-select answer or a single value.
func encodeMultiEnum(raw string) string {
	parts := strings.Split(raw, "|")
	encoded := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		encoded = append(encoded, "^"+p+"^")
	}
	return strings.Join(encoded, ",")
}

// EncodeMultiEnumValues is the slice form of multienum encoding, used when the
// answer arrives pre-tokenized.
func EncodeMultiEnumValues(values []string) string {
	return encodeMultiEnum(strings.Join(values, "|"))
}

func truncate(s string, maxLength *int) string {
	if maxLength == nil || *maxLength <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= *maxLength {
		return s
	}
	return string(runes[:*maxLength])
}
