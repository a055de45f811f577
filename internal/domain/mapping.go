package domain

// FieldMapping associates one survey question with one CRM module field. A
// question may populate many fields (one-to-many) but never the same
// (module, field) pair twice.
type FieldMapping struct {
	ID            int64  `json:"id,omitempty"`
	SurveyID      int    `json:"surveyId"`
	QuestionID    int    `json:"questionId"`
	Module        string `json:"crmModule"`
	FieldName     string `json:"crmFieldName"`
	FieldLabel    string `json:"crmFieldLabel"`
	FieldType     string `json:"crmFieldType"`
	TransformRule string `json:"transformRule,omitempty"`
	Position      int    `json:"position"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// MappingDocument is the editable JSON form of a question's mappings. The
// relational rows are a projection of this document, refreshed whenever it
// changes.
type MappingDocument struct {
	Mappings []FieldMapping `json:"mappings"`
}
