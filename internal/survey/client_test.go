package survey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLimeSurvey answers RemoteControl calls for one survey.
type fakeLimeSurvey struct {
	sessionReleased bool
	badCredentials  bool
}

func (f *fakeLimeSurvey) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		write := func(result any) {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "result": result, "error": nil})
		}

		switch req.Method {
		case "get_session_key":
			if f.badCredentials {
				write(map[string]string{"status": "Invalid user name or password"})
				return
			}
			write("session-key-1")
		case "release_session_key":
			f.sessionReleased = true
			write("OK")
		case "export_responses":
			export := map[string]any{
				"responses": []any{
					map[string]any{
						"42": map[string]any{
							"firstName": "Jane",
							"lastName":  "Doe",
							"email":     "jane@x.com",
							"age":       float64(33),
							"comment":   nil,
						},
					},
				},
			}
			raw, _ := json.Marshal(export)
			write(base64.StdEncoding.EncodeToString(raw))
		case "list_questions":
			write([]any{
				map[string]any{"qid": "7", "title": "firstName", "type": "S", "question": "Your first name?"},
				map[string]any{"qid": float64(8), "title": "email", "type": "S", "question": "Your email?"},
			})
		default:
			write(map[string]string{"status": "Unknown method"})
		}
	})
}

func newTestSurveyClient(t *testing.T, f *fakeLimeSurvey) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Username: "admin", Password: "secret"})
}

func TestGetResponse(t *testing.T) {
	f := &fakeLimeSurvey{}
	c := newTestSurveyClient(t, f)

	resp, err := c.GetResponse(context.Background(), 100, 42)
	require.NoError(t, err)

	assert.Equal(t, 100, resp.SurveyID)
	assert.Equal(t, 42, resp.ResponseID)
	assert.Equal(t, "Jane", resp.Answers["firstName"])
	assert.Equal(t, "Doe", resp.Answers["lastName"])
	assert.Equal(t, "33", resp.Answers["age"], "numeric answers are stringified")
	assert.NotContains(t, resp.Answers, "comment", "null answers are dropped")
	assert.True(t, f.sessionReleased, "session key must be released")
}

func TestGetResponse_BadCredentials(t *testing.T) {
	c := newTestSurveyClient(t, &fakeLimeSurvey{badCredentials: true})

	_, err := c.GetResponse(context.Background(), 100, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid user name or password")
}

func TestListQuestions(t *testing.T) {
	c := newTestSurveyClient(t, &fakeLimeSurvey{})

	questions, err := c.ListQuestions(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	assert.Equal(t, 7, questions[0].ID)
	assert.Equal(t, "firstName", questions[0].Code)
	assert.Equal(t, "S", questions[0].Type)
	assert.Equal(t, 8, questions[1].ID, "numeric qids are accepted too")
}

func TestParseExportedAnswers_FlatForm(t *testing.T) {
	data := []byte(`{"responses":[{"firstName":"Jane","lastName":"Doe"}]}`)
	answers, err := parseExportedAnswers(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"firstName": "Jane", "lastName": "Doe"}, answers)
}

func TestParseExportedAnswers_Empty(t *testing.T) {
	_, err := parseExportedAnswers([]byte(`{"responses":[]}`))
	require.Error(t, err)
}
