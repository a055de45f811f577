package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
var migrations = [][]string{
	// Migration 1: all core tables
	{
		`CREATE TABLE field_mappings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			survey_id INTEGER NOT NULL,
			question_id INTEGER NOT NULL,
			crm_module TEXT NOT NULL,
			crm_field_name TEXT NOT NULL,
			crm_field_label TEXT NOT NULL DEFAULT '',
			crm_field_type TEXT NOT NULL DEFAULT '',
			transform_rule TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			UNIQUE(question_id, crm_module, crm_field_name)
		)`,
		`CREATE INDEX idx_field_mappings_survey ON field_mappings(survey_id, question_id)`,

		`CREATE TABLE mapping_documents (
			survey_id INTEGER NOT NULL,
			question_id INTEGER NOT NULL,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (survey_id, question_id)
		)`,

		`CREATE TABLE sync_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			response_id INTEGER NOT NULL,
			survey_id INTEGER NOT NULL,
			crm_module TEXT NOT NULL,
			crm_record_id TEXT,
			status TEXT NOT NULL,
			request_payload TEXT,
			response_data TEXT,
			error_message TEXT,
			field_mappings_used TEXT,
			synced_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_sync_log_survey ON sync_log(survey_id, synced_at)`,

		`CREATE TABLE settings (
			scope TEXT NOT NULL DEFAULT '',
			scope_id TEXT NOT NULL DEFAULT '',
			key TEXT NOT NULL,
			value TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (scope, scope_id, key)
		)`,
	},

	// Migration 2: status rollups for the stats endpoint
	{
		`CREATE INDEX idx_sync_log_status ON sync_log(survey_id, status)`,
	},
}
