package domain

// CrmField describes one field of a CRM module, as reported by the CRM's
// field-metadata endpoint. MaxLength is nil when the CRM declares no length
// limit for the field.
type CrmField struct {
	Name      string            `json:"name"`
	Module    string            `json:"module"`
	Type      string            `json:"type"`
	DBType    string            `json:"dbType,omitempty"`
	Label     string            `json:"label"`
	Required  bool              `json:"required"`
	MaxLength *int              `json:"maxLength,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
	Default   string            `json:"default,omitempty"`
	Comment   string            `json:"comment,omitempty"`
}
