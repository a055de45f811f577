// Package survey fetches completed responses and question metadata from a
// LimeSurvey instance over its RemoteControl JSON-RPC API.
package survey

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/suitesync/suitesync/internal/domain"
)

const requestTimeout = 30 * time.Second

// Config holds the RemoteControl endpoint and credentials.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Debug    bool
	Logger   *slog.Logger

	HTTPClient *http.Client
}

// Client talks to one LimeSurvey instance.
type Client struct {
	baseURL    string
	username   string
	password   string
	debug      bool
	logger     *slog.Logger
	httpClient *http.Client
}

// New creates a Client from the given configuration.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		debug:      cfg.Debug,
		logger:     logger,
		httpClient: httpClient,
	}
}

// GetResponse fetches one completed response as a question-code to answer
// map.
func (c *Client) GetResponse(ctx context.Context, surveyID, responseID int) (*domain.Response, error) {
	key, err := c.sessionKey(ctx)
	if err != nil {
		return nil, err
	}
	defer c.releaseSession(ctx, key)

	var encoded string
	err = c.rpc(ctx, "export_responses",
		[]any{key, surveyID, "json", "", "complete", "code", "answer", responseID, responseID},
		&encoded)
	if err != nil {
		return nil, fmt.Errorf("export response %d of survey %d: %w", responseID, surveyID, err)
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode exported response: %w", err)
	}

	answers, err := parseExportedAnswers(decoded)
	if err != nil {
		return nil, err
	}
	return &domain.Response{SurveyID: surveyID, ResponseID: responseID, Answers: answers}, nil
}

// ListQuestions fetches the survey's question metadata.
func (c *Client) ListQuestions(ctx context.Context, surveyID int) ([]domain.Question, error) {
	key, err := c.sessionKey(ctx)
	if err != nil {
		return nil, err
	}
	defer c.releaseSession(ctx, key)

	var raw []map[string]any
	if err := c.rpc(ctx, "list_questions", []any{key, surveyID}, &raw); err != nil {
		return nil, fmt.Errorf("list questions of survey %d: %w", surveyID, err)
	}

	questions := make([]domain.Question, 0, len(raw))
	for _, q := range raw {
		questions = append(questions, domain.Question{
			ID:   asInt(q["qid"]),
			Code: asString(q["title"]),
			Type: asString(q["type"]),
			Text: asString(q["question"]),
		})
	}
	return questions, nil
}

func (c *Client) sessionKey(ctx context.Context) (string, error) {
	var key string
	if err := c.rpc(ctx, "get_session_key", []any{c.username, c.password}, &key); err != nil {
		return "", fmt.Errorf("acquire session key: %w", err)
	}
	if key == "" {
		return "", fmt.Errorf("survey engine rejected credentials")
	}
	return key, nil
}

func (c *Client) releaseSession(ctx context.Context, key string) {
	var out any
	if err := c.rpc(ctx, "release_session_key", []any{key}, &out); err != nil {
		c.logger.Debug("release session key failed", "error", err)
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// rpc performs one RemoteControl call. LimeSurvey reports many failures as a
// {"status": "..."} result object rather than a JSON-RPC error, so both forms
// are checked.
func (c *Client) rpc(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params, ID: 1})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/admin/remotecontrol", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.debug {
		c.logger.Debug("remotecontrol request", "method", method)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if len(rpcResp.Error) > 0 && string(rpcResp.Error) != "null" {
		return fmt.Errorf("%s: %s", method, rpcResp.Error)
	}

	// Status-object failure form.
	var statusObj struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rpcResp.Result, &statusObj); err == nil && statusObj.Status != "" {
		return fmt.Errorf("%s: %s", method, statusObj.Status)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// parseExportedAnswers flattens LimeSurvey's export payload, which wraps each
// response in {"responses": [{"<id>": {code: answer}}]} or, on newer
// versions, a flat list of answer maps.
func parseExportedAnswers(data []byte) (map[string]string, error) {
	var payload struct {
		Responses []map[string]json.RawMessage `json:"responses"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse exported responses: %w", err)
	}
	if len(payload.Responses) == 0 {
		return nil, fmt.Errorf("response not found in export")
	}

	first := payload.Responses[0]

	// Keyed-by-id form: one entry whose value is the answer map.
	if len(first) == 1 {
		for _, inner := range first {
			var nested map[string]any
			if err := json.Unmarshal(inner, &nested); err == nil {
				return stringifyAnswers(nested), nil
			}
		}
	}

	flat := make(map[string]any, len(first))
	for code, raw := range first {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		flat[code] = v
	}
	return stringifyAnswers(flat), nil
}

func stringifyAnswers(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for code, v := range in {
		if v == nil {
			continue
		}
		out[code] = asString(v)
	}
	return out
}

func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func asInt(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		n, _ := strconv.Atoi(val)
		return n
	default:
		return 0
	}
}
