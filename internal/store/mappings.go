package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/suitesync/suitesync/internal/domain"
)

// MappingStore defines operations over per-question field mappings. Saving is
// always a wholesale replace of a question's mapping set, never an
// incremental patch.
type MappingStore interface {
	SaveMappings(ctx context.Context, surveyID, questionID int, mappings []domain.FieldMapping) error
	GetMappings(ctx context.Context, questionID int) ([]domain.FieldMapping, error)
	GetMappingsForSurvey(ctx context.Context, surveyID int) (map[int][]domain.FieldMapping, error)
	GetMappingsGroupedByModule(ctx context.Context, surveyID int) (map[string]map[int][]domain.FieldMapping, error)
	DeleteMappings(ctx context.Context, questionID int) error
	SyncFromJSON(ctx context.Context, surveyID, questionID int, doc []byte) error
	GetMappingDocument(ctx context.Context, surveyID, questionID int) ([]byte, error)
}

// SQLiteMappingStore implements MappingStore using SQLite.
type SQLiteMappingStore struct {
	db *sql.DB
}

// NewSQLiteMappingStore creates a new SQLiteMappingStore.
func NewSQLiteMappingStore(db *sql.DB) *SQLiteMappingStore {
	return &SQLiteMappingStore{db: db}
}

const mappingCols = `id, survey_id, question_id, crm_module, crm_field_name,
	crm_field_label, crm_field_type, transform_rule, position, created_at`

// SaveMappings atomically replaces the question's mapping set: all existing
// rows are deleted and the new set inserted inside one transaction. An empty
// input list clears the question's mappings. Any insert failure rolls the
// whole operation back.
func (s *SQLiteMappingStore) SaveMappings(ctx context.Context, surveyID, questionID int, mappings []domain.FieldMapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save mappings: %w", err)
	}

	if err := replaceMappings(ctx, tx, surveyID, questionID, mappings); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save mappings: %w", err)
	}
	return nil
}

// SyncFromJSON projects the question's editable JSON mapping document into
// relational rows. The document is stored alongside the replaced rows in the
// same transaction, so document and projection never diverge.
func (s *SQLiteMappingStore) SyncFromJSON(ctx context.Context, surveyID, questionID int, doc []byte) error {
	var parsed domain.MappingDocument
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return fmt.Errorf("parse mapping document: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mapping sync: %w", err)
	}

	if err := replaceMappings(ctx, tx, surveyID, questionID, parsed.Mappings); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO mapping_documents (survey_id, question_id, doc, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(survey_id, question_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		surveyID, questionID, string(doc), now(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store mapping document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mapping sync: %w", err)
	}
	return nil
}

// GetMappingDocument returns the stored JSON mapping document for a question,
// or nil if none has been saved.
func (s *SQLiteMappingStore) GetMappingDocument(ctx context.Context, surveyID, questionID int) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM mapping_documents WHERE survey_id = ? AND question_id = ?`,
		surveyID, questionID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping document: %w", err)
	}
	return []byte(doc), nil
}

func replaceMappings(ctx context.Context, tx *sql.Tx, surveyID, questionID int, mappings []domain.FieldMapping) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM field_mappings WHERE question_id = ?`, questionID); err != nil {
		return fmt.Errorf("clear mappings for question %d: %w", questionID, err)
	}

	ts := now()
	for i, m := range mappings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO field_mappings (
				survey_id, question_id, crm_module, crm_field_name,
				crm_field_label, crm_field_type, transform_rule, position, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			surveyID, questionID, m.Module, m.FieldName,
			m.FieldLabel, m.FieldType, m.TransformRule, i, ts,
		); err != nil {
			return fmt.Errorf("insert mapping %s.%s for question %d: %w", m.Module, m.FieldName, questionID, err)
		}
	}
	return nil
}

// GetMappings returns a question's mappings in insertion order.
func (s *SQLiteMappingStore) GetMappings(ctx context.Context, questionID int) ([]domain.FieldMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mappingCols+` FROM field_mappings
		 WHERE question_id = ?
		 ORDER BY position, id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("get mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMappings(rows)
}

// GetMappingsForSurvey groups the survey's mappings by question, each list in
// insertion order.
func (s *SQLiteMappingStore) GetMappingsForSurvey(ctx context.Context, surveyID int) (map[int][]domain.FieldMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mappingCols+` FROM field_mappings
		 WHERE survey_id = ?
		 ORDER BY question_id, position, id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("get survey mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	mappings, err := scanMappings(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int][]domain.FieldMapping)
	for _, m := range mappings {
		grouped[m.QuestionID] = append(grouped[m.QuestionID], m)
	}
	return grouped, nil
}

// GetMappingsGroupedByModule re-groups the survey's mappings as
// module -> question -> mappings. This is the read path the sync pipeline
// uses: one CRM record is created per module.
func (s *SQLiteMappingStore) GetMappingsGroupedByModule(ctx context.Context, surveyID int) (map[string]map[int][]domain.FieldMapping, error) {
	byQuestion, err := s.GetMappingsForSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string]map[int][]domain.FieldMapping)
	for questionID, mappings := range byQuestion {
		for _, m := range mappings {
			if grouped[m.Module] == nil {
				grouped[m.Module] = make(map[int][]domain.FieldMapping)
			}
			grouped[m.Module][questionID] = append(grouped[m.Module][questionID], m)
		}
	}
	return grouped, nil
}

// DeleteMappings removes every mapping for the question, along with its
// stored mapping document.
func (s *SQLiteMappingStore) DeleteMappings(ctx context.Context, questionID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete mappings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM field_mappings WHERE question_id = ?`, questionID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete mappings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM mapping_documents WHERE question_id = ?`, questionID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete mapping document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete mappings: %w", err)
	}
	return nil
}

func scanMappings(rows *sql.Rows) ([]domain.FieldMapping, error) {
	var mappings []domain.FieldMapping
	for rows.Next() {
		var m domain.FieldMapping
		if err := rows.Scan(
			&m.ID, &m.SurveyID, &m.QuestionID, &m.Module, &m.FieldName,
			&m.FieldLabel, &m.FieldType, &m.TransformRule, &m.Position, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
