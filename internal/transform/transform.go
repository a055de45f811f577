package transform

import "github.com/suitesync/suitesync/internal/domain"

// Transform runs the full per-field pipeline: the mapping's transform rule
// first, then coercion to the target field's declared type.
func Transform(raw, rule string, field domain.CrmField, ctx domain.TransformContext) any {
	return ConvertValue(ApplyRule(raw, rule, ctx), field)
}
