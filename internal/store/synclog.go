package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/suitesync/suitesync/internal/domain"
)

// SyncLogStore defines operations over the append-only sync audit trail.
// Entries are never updated or deleted.
type SyncLogStore interface {
	Append(ctx context.Context, entry *domain.SyncLogEntry) (int64, error)
	ListBySurvey(ctx context.Context, surveyID, limit int) ([]domain.SyncLogEntry, error)
	Stats(ctx context.Context, surveyID int) (domain.SyncStats, error)
}

// SQLiteSyncLogStore implements SyncLogStore using SQLite.
type SQLiteSyncLogStore struct {
	db *sql.DB
}

// NewSQLiteSyncLogStore creates a new SQLiteSyncLogStore.
func NewSQLiteSyncLogStore(db *sql.DB) *SQLiteSyncLogStore {
	return &SQLiteSyncLogStore{db: db}
}

// Append inserts one sync log entry and returns its id. SyncedAt is assigned
// here if the entry carries none.
func (s *SQLiteSyncLogStore) Append(ctx context.Context, entry *domain.SyncLogEntry) (int64, error) {
	if entry.SyncedAt == "" {
		entry.SyncedAt = now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (
			response_id, survey_id, crm_module, crm_record_id, status,
			request_payload, response_data, error_message, field_mappings_used, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ResponseID, entry.SurveyID, entry.Module,
		nullable(entry.RecordID), entry.Status,
		nullable(entry.RequestPayload), nullable(entry.ResponseData),
		nullable(entry.ErrorMessage), nullable(entry.MappingsUsed),
		entry.SyncedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("append sync log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sync log id: %w", err)
	}
	entry.ID = id
	return id, nil
}

// ListBySurvey returns the survey's log entries, newest first. A limit at or
// below zero returns everything.
func (s *SQLiteSyncLogStore) ListBySurvey(ctx context.Context, surveyID, limit int) ([]domain.SyncLogEntry, error) {
	query := `SELECT id, response_id, survey_id, crm_module, crm_record_id, status,
		request_payload, response_data, error_message, field_mappings_used, synced_at
		FROM sync_log WHERE survey_id = ? ORDER BY synced_at DESC, id DESC`
	args := []any{surveyID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.SyncLogEntry
	for rows.Next() {
		var e domain.SyncLogEntry
		var recordID, payload, response, errMsg, used sql.NullString
		if err := rows.Scan(
			&e.ID, &e.ResponseID, &e.SurveyID, &e.Module, &recordID, &e.Status,
			&payload, &response, &errMsg, &used, &e.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sync log entry: %w", err)
		}
		e.RecordID = recordID.String
		e.RequestPayload = payload.String
		e.ResponseData = response.String
		e.ErrorMessage = errMsg.String
		e.MappingsUsed = used.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates per-status counts and the most recent sync timestamp for a
// survey. A survey with no log rows yields all-zero counts and an empty
// timestamp.
func (s *SQLiteSyncLogStore) Stats(ctx context.Context, surveyID int) (domain.SyncStats, error) {
	var stats domain.SyncStats
	var last sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			MAX(synced_at)
		 FROM sync_log WHERE survey_id = ?`,
		domain.SyncStatusSuccess, domain.SyncStatusPartial, domain.SyncStatusFailed,
		surveyID,
	).Scan(&stats.Total, &stats.Success, &stats.Partial, &stats.Failed, &last)
	if err != nil {
		return domain.SyncStats{}, fmt.Errorf("sync stats: %w", err)
	}

	stats.LastSyncedAt = last.String
	return stats, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
