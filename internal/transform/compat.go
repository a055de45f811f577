package transform

import "fmt"

// compatibility maps a survey question type code to the CRM field types its
// answers convert into cleanly. The matrix is advisory: conversions outside
// the allow-list are still attempted, the matrix only powers warnings in the
// mapping editor.
var compatibility = map[string][]string{
	// Short free text
	"S": {"varchar", "text", "email", "phone", "url", "name"},
	// Long and huge free text
	"T": {"varchar", "text"},
	"U": {"varchar", "text"},
	// Numeric input / multiple numeric
	"N": {"int", "integer", "float", "double", "decimal", "currency", "varchar"},
	"K": {"int", "integer", "float", "double", "decimal", "currency", "varchar"},
	// Date/time
	"D": {"date", "datetime", "datetimecombo", "varchar"},
	// Yes/no
	"Y": {"bool", "boolean", "varchar"},
	// Gender
	"G": {"enum", "varchar"},
	// Single-choice lists (radio, dropdown, with comment)
	"L": {"enum", "varchar", "text"},
	"!": {"enum", "varchar", "text"},
	"O": {"enum", "varchar", "text"},
	// Multiple choice
	"M": {"multienum", "varchar", "text"},
	// Equation
	"*": {"varchar", "text", "int", "float"},
}

// IsCompatible reports whether answers of the given survey question type are
// expected to convert cleanly into the given CRM field type. Unknown question
// types are treated as compatible with everything.
func IsCompatible(questionType, fieldType string) bool {
	allowed, ok := compatibility[questionType]
	if !ok {
		return true
	}
	for _, t := range allowed {
		if t == fieldType {
			return true
		}
	}
	return false
}

// MismatchWarning renders the human-readable warning shown when a mapping
// pairs a question type with an unexpected CRM field type.
func MismatchWarning(questionType, fieldType, fieldLabel string) string {
	return fmt.Sprintf(
		"question type %q does not usually map onto %s field %q; the value will be converted on a best-effort basis",
		questionType, fieldType, fieldLabel,
	)
}
