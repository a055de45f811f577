package sync_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitesync/suitesync/internal/crm"
	"github.com/suitesync/suitesync/internal/domain"
	"github.com/suitesync/suitesync/internal/settings"
	"github.com/suitesync/suitesync/internal/store"
	"github.com/suitesync/suitesync/internal/sync"
	"github.com/suitesync/suitesync/internal/testhelpers"
)

type createCall struct {
	module string
	attrs  map[string]any
}

type fakeCRM struct {
	calls       []createCall
	failModules map[string]error
}

func (f *fakeCRM) CreateRecord(ctx context.Context, module string, attrs map[string]any) (*crm.Record, error) {
	f.calls = append(f.calls, createCall{module: module, attrs: attrs})
	if err := f.failModules[module]; err != nil {
		return nil, err
	}
	return &crm.Record{ID: "rec-" + module, Type: module, Attributes: attrs}, nil
}

type staticResponses struct {
	resp *domain.Response
	err  error
}

func (s *staticResponses) GetResponse(ctx context.Context, surveyID, responseID int) (*domain.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type staticQuestions struct {
	questions []domain.Question
}

func (s *staticQuestions) ListQuestions(ctx context.Context, surveyID int) ([]domain.Question, error) {
	return s.questions, nil
}

type staticFields struct {
	byModule map[string]map[string]domain.CrmField
	failFor  string
}

func (s *staticFields) GetFields(ctx context.Context, module string, force bool) (map[string]domain.CrmField, error) {
	if module == s.failFor {
		return nil, errors.New("metadata endpoint down")
	}
	return s.byModule[module], nil
}

type fixture struct {
	orch     *sync.Orchestrator
	crm      *fakeCRM
	settings settings.Store
	mappings store.MappingStore
	syncLog  store.SyncLogStore
}

func leadQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Code: "firstName", Type: "S"},
		{ID: 2, Code: "lastName", Type: "S"},
		{ID: 3, Code: "email", Type: "S"},
		{ID: 4, Code: "unanswered", Type: "S"},
	}
}

func leadFieldDefs() map[string]domain.CrmField {
	return map[string]domain.CrmField{
		"first_name":   {Name: "first_name", Module: "Leads", Type: "varchar", Label: "First Name"},
		"last_name":    {Name: "last_name", Module: "Leads", Type: "varchar", Label: "Last Name", Required: true},
		"email1":       {Name: "email1", Module: "Leads", Type: "email", Label: "Email Address"},
		"external_ref": {Name: "external_ref", Module: "Leads", Type: "varchar", Label: "External Ref"},
	}
}

func newFixture(t *testing.T, enabled bool, crmFake *fakeCRM, fields sync.FieldSource) *fixture {
	t.Helper()
	db := testhelpers.NewMigratedDB(t)
	st := store.New(db)
	settingsStore := settings.NewSQLiteStore(db)

	if fields == nil {
		fields = &staticFields{byModule: map[string]map[string]domain.CrmField{
			"Leads": leadFieldDefs(),
			"Cases": {
				"name": {Name: "name", Module: "Cases", Type: "name", Label: "Subject"},
			},
		}}
	}

	resp := &domain.Response{
		SurveyID:   100,
		ResponseID: 42,
		Answers: map[string]string{
			"firstName": "Jane",
			"lastName":  "Doe",
			"email":     "jane@x.com",
		},
	}

	orch := sync.New(sync.Params{
		Enabled:   enabled,
		RefPrefix: "SURVEY",
		Settings:  settingsStore,
		Mappings:  st.Mappings,
		SyncLog:   st.SyncLog,
		Fields:    fields,
		CRM:       crmFake,
		Responses: &staticResponses{resp: resp},
		Questions: &staticQuestions{questions: leadQuestions()},
	})

	return &fixture{
		orch:     orch,
		crm:      crmFake,
		settings: settingsStore,
		mappings: st.Mappings,
		syncLog:  st.SyncLog,
	}
}

func saveLeadMappings(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 1, []domain.FieldMapping{
		{Module: "Leads", FieldName: "first_name", FieldType: "varchar"},
	}))
	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 2, []domain.FieldMapping{
		{Module: "Leads", FieldName: "last_name", FieldType: "varchar"},
	}))
	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 3, []domain.FieldMapping{
		{Module: "Leads", FieldName: "email1", FieldType: "email"},
	}))
}

func TestHandleSurveyComplete_HappyPath(t *testing.T) {
	f := newFixture(t, true, &fakeCRM{}, nil)
	saveLeadMappings(t, f)
	ctx := context.Background()

	err := f.orch.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42})
	require.NoError(t, err)

	require.Len(t, f.crm.calls, 1)
	call := f.crm.calls[0]
	assert.Equal(t, "Leads", call.module)
	assert.Equal(t, map[string]any{
		"first_name": "Jane",
		"last_name":  "Doe",
		"email1":     "jane@x.com",
	}, call.attrs)

	entries, err := f.syncLog.ListBySurvey(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.SyncStatusSuccess, entries[0].Status)
	assert.Equal(t, "rec-Leads", entries[0].RecordID)
	assert.Empty(t, entries[0].ErrorMessage)
	assert.Contains(t, entries[0].RequestPayload, `"last_name":"Doe"`)
}

func TestHandleSurveyComplete_DisabledIsNoop(t *testing.T) {
	f := newFixture(t, false, &fakeCRM{}, nil)
	saveLeadMappings(t, f)
	ctx := context.Background()

	require.NoError(t, f.orch.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42}))
	assert.Empty(t, f.crm.calls)

	entries, err := f.syncLog.ListBySurvey(ctx, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleSurveyComplete_PerSurveyDisable(t *testing.T) {
	f := newFixture(t, true, &fakeCRM{}, nil)
	saveLeadMappings(t, f)
	ctx := context.Background()

	require.NoError(t, f.settings.Set(ctx, "survey_enabled", "0", "survey", "100"))

	require.NoError(t, f.orch.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42}))
	assert.Empty(t, f.crm.calls)
}

func TestHandleSurveyComplete_NoMappingsIsNoop(t *testing.T) {
	f := newFixture(t, true, &fakeCRM{}, nil)

	require.NoError(t, f.orch.HandleSurveyComplete(context.Background(), sync.Event{SurveyID: 100, ResponseID: 42}))
	assert.Empty(t, f.crm.calls)
}

func TestHandleSurveyComplete_AutoRuleOnUnansweredQuestion(t *testing.T) {
	f := newFixture(t, true, &fakeCRM{}, nil)
	ctx := context.Background()

	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 4, []domain.FieldMapping{
		{Module: "Leads", FieldName: "external_ref", FieldType: "varchar", TransformRule: "auto_uuid"},
		{Module: "Leads", FieldName: "last_name", FieldType: "varchar"},
	}))

	require.NoError(t, f.orch.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42}))

	require.Len(t, f.crm.calls, 1)
	attrs := f.crm.calls[0].attrs

	// The regular mapping on the unanswered question is skipped silently; the
	// auto rule still contributes a well-formed v4 UUID.
	assert.NotContains(t, attrs, "last_name")
	ref, ok := attrs["external_ref"].(string)
	require.True(t, ok, "external_ref missing: %v", attrs)
	assert.Regexp(t,
		regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`),
		ref)
}

func TestHandleSurveyComplete_CreateFailureIsolatedPerModule(t *testing.T) {
	crmFake := &fakeCRM{failModules: map[string]error{
		"Cases": &crm.APIError{StatusCode: 500, Detail: "database unavailable"},
	}}
	f := newFixture(t, true, crmFake, nil)
	ctx := context.Background()

	saveLeadMappings(t, f)
	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 2, []domain.FieldMapping{
		{Module: "Leads", FieldName: "last_name", FieldType: "varchar"},
		{Module: "Cases", FieldName: "name", FieldType: "name"},
	}))

	err := f.orch.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42})
	require.NoError(t, err, "module-level failure must not raise past the pipeline")

	// Both modules were attempted despite the Cases failure.
	require.Len(t, f.crm.calls, 2)

	entries, err := f.syncLog.ListBySurvey(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byModule := map[string]domain.SyncLogEntry{}
	for _, e := range entries {
		byModule[e.Module] = e
	}
	failed := byModule["Cases"]
	assert.Equal(t, domain.SyncStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "database unavailable")
	assert.NotEmpty(t, failed.RequestPayload, "failed entries keep the attempted payload")
	assert.Empty(t, failed.RecordID)

	assert.Equal(t, domain.SyncStatusSuccess, byModule["Leads"].Status)
}

func TestHandleSurveyComplete_PartialSuccess(t *testing.T) {
	// firstName also targets a required integer field; "Jane" coerces to nil
	// and the required check collects an error, but the record still goes out.
	fields := &staticFields{byModule: map[string]map[string]domain.CrmField{
		"Leads": {
			"last_name": {Name: "last_name", Module: "Leads", Type: "varchar", Label: "Last Name"},
			"score":     {Name: "score", Module: "Leads", Type: "int", Label: "Score", Required: true},
		},
	}}
	f := newFixture(t, true, &fakeCRM{}, fields)
	ctx := context.Background()

	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 1, []domain.FieldMapping{
		{Module: "Leads", FieldName: "score", FieldType: "int"},
	}))
	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 2, []domain.FieldMapping{
		{Module: "Leads", FieldName: "last_name", FieldType: "varchar"},
	}))

	require.NoError(t, f.orch.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42}))

	require.Len(t, f.crm.calls, 1)
	assert.Equal(t, map[string]any{"last_name": "Doe"}, f.crm.calls[0].attrs)

	entries, err := f.syncLog.ListBySurvey(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.SyncStatusPartial, entries[0].Status)
	assert.Contains(t, entries[0].ErrorMessage, "'Score' is required")
}

func TestHandleSurveyComplete_NothingTransformableLogsFailed(t *testing.T) {
	f := newFixture(t, true, &fakeCRM{}, nil)
	ctx := context.Background()

	// The only mapping sits on an unanswered question with a value rule, so
	// nothing is left to send and no CRM call is made.
	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 4, []domain.FieldMapping{
		{Module: "Leads", FieldName: "last_name", FieldType: "varchar", TransformRule: "trim"},
	}))

	require.NoError(t, f.orch.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42}))

	assert.Empty(t, f.crm.calls)

	entries, err := f.syncLog.ListBySurvey(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.SyncStatusFailed, entries[0].Status)
	assert.NotEmpty(t, entries[0].ErrorMessage)
}

func TestHandleSurveyComplete_FieldFetchFailureLogsFailed(t *testing.T) {
	fields := &staticFields{
		byModule: map[string]map[string]domain.CrmField{"Leads": leadFieldDefs()},
		failFor:  "Cases",
	}
	f := newFixture(t, true, &fakeCRM{}, fields)
	ctx := context.Background()

	saveLeadMappings(t, f)
	require.NoError(t, f.mappings.SaveMappings(ctx, 100, 2, []domain.FieldMapping{
		{Module: "Leads", FieldName: "last_name", FieldType: "varchar"},
		{Module: "Cases", FieldName: "name", FieldType: "name"},
	}))

	require.NoError(t, f.orch.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42}))

	// Only Leads reached the CRM; Cases failed before transforming.
	require.Len(t, f.crm.calls, 1)
	assert.Equal(t, "Leads", f.crm.calls[0].module)

	entries, err := f.syncLog.ListBySurvey(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestHandleSurveyComplete_ResponseFetchFailureAborts(t *testing.T) {
	f := newFixture(t, true, &fakeCRM{}, nil)
	saveLeadMappings(t, f)
	ctx := context.Background()

	broken := sync.New(sync.Params{
		Enabled:   true,
		Settings:  f.settings,
		Mappings:  f.mappings,
		SyncLog:   f.syncLog,
		Fields:    &staticFields{},
		CRM:       f.crm,
		Responses: &staticResponses{err: errors.New("survey engine unreachable")},
		Questions: &staticQuestions{},
	})

	err := broken.HandleSurveyComplete(ctx, sync.Event{SurveyID: 100, ResponseID: 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "survey engine unreachable")
	assert.Empty(t, f.crm.calls)
}

func TestRegistry_Dispatch(t *testing.T) {
	f := newFixture(t, true, &fakeCRM{}, nil)
	saveLeadMappings(t, f)

	registry := sync.NewRegistry()
	f.orch.Register(registry)

	err := registry.Dispatch(context.Background(), sync.EventSurveyComplete, sync.Event{SurveyID: 100, ResponseID: 42})
	require.NoError(t, err)
	assert.Len(t, f.crm.calls, 1)

	err = registry.Dispatch(context.Background(), sync.EventKind("unknown"), sync.Event{})
	require.Error(t, err)
}
