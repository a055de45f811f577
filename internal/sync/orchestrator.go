// Package sync drives the survey-to-CRM pipeline: on survey completion it
// loads mappings, transforms answers per module, creates CRM records, and
// writes the sync log.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/suitesync/suitesync/internal/crm"
	"github.com/suitesync/suitesync/internal/domain"
	"github.com/suitesync/suitesync/internal/settings"
	"github.com/suitesync/suitesync/internal/store"
	"github.com/suitesync/suitesync/internal/transform"
)

// Per-survey enablement override, stored in the settings store.
const (
	surveyScope      = "survey"
	surveyEnabledKey = "survey_enabled"
)

// ResponseSource fetches a completed response from the host survey engine.
type ResponseSource interface {
	GetResponse(ctx context.Context, surveyID, responseID int) (*domain.Response, error)
}

// QuestionSource fetches question metadata from the host survey engine.
type QuestionSource interface {
	ListQuestions(ctx context.Context, surveyID int) ([]domain.Question, error)
}

// RecordCreator creates records in the CRM. The crm.Client satisfies it.
type RecordCreator interface {
	CreateRecord(ctx context.Context, module string, attributes map[string]any) (*crm.Record, error)
}

// FieldSource serves CRM field definitions, normally through the field cache.
type FieldSource interface {
	GetFields(ctx context.Context, module string, forceRefresh bool) (map[string]domain.CrmField, error)
}

// Params collects the orchestrator's dependencies.
type Params struct {
	Enabled   bool
	RefPrefix string

	Settings  settings.Store
	Mappings  store.MappingStore
	SyncLog   store.SyncLogStore
	Fields    FieldSource
	CRM       RecordCreator
	Responses ResponseSource
	Questions QuestionSource
	Logger    *slog.Logger
}

// Orchestrator runs one synchronous pipeline per survey-completion event.
type Orchestrator struct {
	enabled   bool
	refPrefix string

	settings  settings.Store
	mappings  store.MappingStore
	syncLog   store.SyncLogStore
	fields    FieldSource
	crm       RecordCreator
	responses ResponseSource
	questions QuestionSource
	logger    *slog.Logger
}

// New creates an Orchestrator.
func New(p Params) *Orchestrator {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		enabled:   p.Enabled,
		refPrefix: p.RefPrefix,
		settings:  p.Settings,
		mappings:  p.Mappings,
		syncLog:   p.SyncLog,
		fields:    p.Fields,
		crm:       p.CRM,
		responses: p.Responses,
		questions: p.Questions,
		logger:    logger,
	}
}

// Register binds the orchestrator's handlers into the event registry.
func (o *Orchestrator) Register(r *Registry) {
	r.Register(EventSurveyComplete, o.HandleSurveyComplete)
}

// HandleSurveyComplete runs the full pipeline for one completed response.
// A disabled integration or a survey without mappings is a no-op, not an
// error. Failures while loading mappings or resolving the response abort the
// whole event; per-module failures are contained and logged.
func (o *Orchestrator) HandleSurveyComplete(ctx context.Context, ev Event) error {
	if !o.surveyEnabled(ctx, ev.SurveyID) {
		o.logger.Debug("integration disabled, skipping", "survey", ev.SurveyID)
		return nil
	}

	grouped, err := o.mappings.GetMappingsGroupedByModule(ctx, ev.SurveyID)
	if err != nil {
		return fmt.Errorf("load mappings for survey %d: %w", ev.SurveyID, err)
	}
	if len(grouped) == 0 {
		o.logger.Debug("no mappings configured", "survey", ev.SurveyID)
		return nil
	}

	resp, err := o.responses.GetResponse(ctx, ev.SurveyID, ev.ResponseID)
	if err != nil {
		return fmt.Errorf("fetch response %d: %w", ev.ResponseID, err)
	}

	questionList, err := o.questions.ListQuestions(ctx, ev.SurveyID)
	if err != nil {
		return fmt.Errorf("resolve questions of survey %d: %w", ev.SurveyID, err)
	}
	questionIdx := make(map[int]domain.Question, len(questionList))
	for _, q := range questionList {
		questionIdx[q.ID] = q
	}

	tctx := domain.TransformContext{
		SurveyID:   ev.SurveyID,
		ResponseID: ev.ResponseID,
		RefPrefix:  o.refPrefix,
	}

	// Deterministic module order; one module's failure never blocks the next.
	modules := make([]string, 0, len(grouped))
	for module := range grouped {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	for _, module := range modules {
		o.syncModule(ctx, module, grouped[module], resp, questionIdx, tctx)
	}
	return nil
}

// surveyEnabled combines the global flag with the per-survey override.
func (o *Orchestrator) surveyEnabled(ctx context.Context, surveyID int) bool {
	if !o.enabled {
		return false
	}
	v, ok, err := o.settings.Get(ctx, surveyEnabledKey, surveyScope, strconv.Itoa(surveyID))
	if err != nil {
		o.logger.Warn("read per-survey setting", "survey", surveyID, "error", err)
		return true
	}
	if !ok {
		return true
	}
	switch strings.ToLower(v) {
	case "0", "false", "off", "no":
		return false
	}
	return true
}

// syncModule transforms every mapping that targets one module, creates one
// CRM record from the fields that survived, and appends exactly one log
// entry. Individual mapping failures are accumulated, not fatal.
func (o *Orchestrator) syncModule(
	ctx context.Context,
	module string,
	byQuestion map[int][]domain.FieldMapping,
	resp *domain.Response,
	questionIdx map[int]domain.Question,
	tctx domain.TransformContext,
) {
	fields, err := o.fields.GetFields(ctx, module, false)
	if err != nil {
		o.appendLog(ctx, &domain.SyncLogEntry{
			ResponseID:   resp.ResponseID,
			SurveyID:     resp.SurveyID,
			Module:       module,
			Status:       domain.SyncStatusFailed,
			ErrorMessage: fmt.Sprintf("load field definitions: %v", err),
		})
		return
	}

	attrs := make(map[string]any)
	var fieldErrs []string
	var used []domain.FieldMapping

	questionIDs := make([]int, 0, len(byQuestion))
	for qid := range byQuestion {
		questionIDs = append(questionIDs, qid)
	}
	sort.Ints(questionIDs)

	for _, qid := range questionIDs {
		question, known := questionIdx[qid]
		answer := ""
		if known {
			answer = resp.Answers[question.Code]
		}

		for _, m := range byQuestion[qid] {
			// Auto rules run regardless of the answer; everything else skips
			// silently on an unanswered question.
			if answer == "" && !transform.IsAutoRule(m.TransformRule) {
				continue
			}

			def, ok := fields[m.FieldName]
			if !ok {
				// Mapping predates the field cache or targets a custom field
				// the CRM no longer reports; fall back to the stored shape.
				def = domain.CrmField{
					Name: m.FieldName, Module: module,
					Type: m.FieldType, Label: m.FieldLabel,
				}
			}

			if known && !transform.IsCompatible(question.Type, def.Type) {
				o.logger.Debug("mapping type mismatch",
					"warning", transform.MismatchWarning(question.Type, def.Type, def.Label))
			}

			value := transform.Transform(answer, m.TransformRule, def, tctx)

			if result := transform.ValidateValue(value, def); !result.Valid {
				fieldErrs = append(fieldErrs, result.Errors...)
				continue
			}
			if value == nil {
				continue
			}

			attrs[m.FieldName] = value
			used = append(used, m)
		}
	}

	entry := &domain.SyncLogEntry{
		ResponseID:   resp.ResponseID,
		SurveyID:     resp.SurveyID,
		Module:       module,
		MappingsUsed: encodeUsed(used),
	}

	if len(attrs) == 0 {
		entry.Status = domain.SyncStatusFailed
		entry.ErrorMessage = "no fields could be transformed"
		if len(fieldErrs) > 0 {
			entry.ErrorMessage = strings.Join(fieldErrs, "; ")
		}
		o.appendLog(ctx, entry)
		return
	}

	payload, err := json.Marshal(attrs)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", attrs))
	}
	entry.RequestPayload = string(payload)

	record, err := o.crm.CreateRecord(ctx, module, attrs)
	if err != nil {
		entry.Status = domain.SyncStatusFailed
		entry.ErrorMessage = err.Error()
		o.appendLog(ctx, entry)
		return
	}

	entry.RecordID = record.ID
	if respData, err := json.Marshal(record); err == nil {
		entry.ResponseData = string(respData)
	}
	if len(fieldErrs) > 0 {
		entry.Status = domain.SyncStatusPartial
		entry.ErrorMessage = strings.Join(fieldErrs, "; ")
	} else {
		entry.Status = domain.SyncStatusSuccess
	}
	o.appendLog(ctx, entry)

	o.logger.Info("crm record created",
		"survey", resp.SurveyID, "response", resp.ResponseID,
		"module", module, "record", record.ID, "status", entry.Status)
}

// appendLog writes a sync log entry, swallowing persistence failures after a
// diagnostic write: logging must never break the pipeline.
func (o *Orchestrator) appendLog(ctx context.Context, entry *domain.SyncLogEntry) {
	if _, err := o.syncLog.Append(ctx, entry); err != nil {
		o.logger.Error("failed to write sync log entry",
			"survey", entry.SurveyID, "module", entry.Module, "error", err)
	}
}

func encodeUsed(used []domain.FieldMapping) string {
	if len(used) == 0 {
		return ""
	}
	refs := make([]string, len(used))
	for i, m := range used {
		refs[i] = fmt.Sprintf("%d:%s.%s", m.QuestionID, m.Module, m.FieldName)
	}
	return strings.Join(refs, ",")
}
