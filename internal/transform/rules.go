// Package transform converts raw survey answers into CRM-compatible values.
// It is pure: no I/O, no persistence.
package transform

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/suitesync/suitesync/internal/domain"
)

// Transform rules. Value rules reshape a non-empty answer and pass empty input
// through; auto rules ignore the answer entirely and always produce a value.
const (
	RuleSplitFirst  = "split_first"
	RuleSplitLast   = "split_last"
	RuleSplitMiddle = "split_middle"
	RuleUppercase   = "uppercase"
	RuleLowercase   = "lowercase"
	RuleTrim        = "trim"
	RuleEmailDomain = "email_domain"
	RuleEmailLocal  = "email_local"

	RuleAutoUUID      = "auto_uuid"
	RuleAutoNumber    = "auto_number"
	RuleAutoDate      = "auto_date"
	RuleAutoDatetime  = "auto_datetime"
	RuleAutoTimestamp = "auto_timestamp"
	RuleAutoSurveyRef = "auto_survey_ref"
)

// DefaultRefPrefix is used by auto_survey_ref when the context carries none.
const DefaultRefPrefix = "SURVEY"

// IsAutoRule reports whether the rule generates its value independently of the
// source answer. Auto rules run even when the question was never answered.
func IsAutoRule(rule string) bool {
	return strings.HasPrefix(rule, "auto_")
}

// ApplyRule applies a transform rule to a raw answer. Unknown or empty rules
// pass the input through unchanged.
func ApplyRule(raw, rule string, ctx domain.TransformContext) string {
	switch rule {
	case RuleSplitFirst:
		tokens := splitTokens(raw)
		if len(tokens) == 0 {
			return ""
		}
		return tokens[0]
	case RuleSplitLast:
		tokens := splitTokens(raw)
		if len(tokens) == 0 {
			return ""
		}
		return tokens[len(tokens)-1]
	case RuleSplitMiddle:
		tokens := splitTokens(raw)
		if len(tokens) <= 2 {
			return ""
		}
		return strings.Join(tokens[1:len(tokens)-1], " ")
	case RuleUppercase:
		return strings.ToUpper(raw)
	case RuleLowercase:
		return strings.ToLower(raw)
	case RuleTrim:
		return strings.TrimSpace(raw)
	case RuleEmailDomain:
		if _, domainPart, ok := strings.Cut(raw, "@"); ok {
			return domainPart
		}
		return raw
	case RuleEmailLocal:
		if local, _, ok := strings.Cut(raw, "@"); ok {
			return local
		}
		return raw
	case RuleAutoUUID:
		return uuid.NewString()
	case RuleAutoNumber:
		return fmt.Sprintf("%s-%04d", time.Now().Format("20060102-150405"), rand.Intn(10000))
	case RuleAutoDate:
		return time.Now().Format("2006-01-02")
	case RuleAutoDatetime:
		return time.Now().Format("2006-01-02 15:04:05")
	case RuleAutoTimestamp:
		return strconv.FormatInt(time.Now().Unix(), 10)
	case RuleAutoSurveyRef:
		prefix := ctx.RefPrefix
		if prefix == "" {
			prefix = DefaultRefPrefix
		}
		return fmt.Sprintf("%s-%d-%d", prefix, ctx.SurveyID, ctx.ResponseID)
	default:
		return raw
	}
}

// splitTokens tokenizes on whitespace and commas.
func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}
