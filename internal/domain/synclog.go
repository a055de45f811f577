package domain

// Sync outcome statuses. A record is "partial" when the CRM accepted it but
// some field mappings failed to transform or validate.
const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)

// SyncLogEntry is one immutable audit record: one entry per (response, module)
// sync attempt. Entries are appended, never updated.
type SyncLogEntry struct {
	ID             int64  `json:"id,omitempty"`
	ResponseID     int    `json:"responseId"`
	SurveyID       int    `json:"surveyId"`
	Module         string `json:"crmModule"`
	RecordID       string `json:"crmRecordId,omitempty"`
	Status         string `json:"status"`
	RequestPayload string `json:"requestPayload,omitempty"`
	ResponseData   string `json:"responseData,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	MappingsUsed   string `json:"fieldMappingsUsed,omitempty"`
	SyncedAt       string `json:"syncedAt"`
}

// SyncStats aggregates sync log entries for one survey.
type SyncStats struct {
	Total        int    `json:"total"`
	Success      int    `json:"success"`
	Partial      int    `json:"partial"`
	Failed       int    `json:"failed"`
	LastSyncedAt string `json:"lastSyncedAt,omitempty"`
}
