// Package crm is a SuiteCRM REST v8 API client: OAuth2 password-grant
// authentication, module/field discovery, and record creation.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/suitesync/suitesync/internal/domain"
)

const (
	// requestTimeout bounds every call to the CRM, token requests included.
	requestTimeout = 30 * time.Second

	// tokenRefreshMargin renews the bearer token this long before its actual
	// expiry to avoid racing the server clock.
	tokenRefreshMargin = 60 * time.Second

	contentTypeJSONAPI = "application/vnd.api+json"
)

// systemFields are CRM-internal field names stripped from discovery results;
// they are never valid mapping targets.
var systemFields = map[string]bool{
	"id":                 true,
	"deleted":            true,
	"date_entered":       true,
	"date_modified":      true,
	"modified_user_id":   true,
	"modified_by_name":   true,
	"created_by":         true,
	"created_by_name":    true,
	"assigned_user_id":   true,
	"assigned_user_name": true,
	"team_id":            true,
	"team_set_id":        true,
	"team_count":         true,
	"team_name":          true,
}

type authState int

const (
	authUninitialized authState = iota
	authReady
	authFailed
)

// Config holds everything the client needs to reach a SuiteCRM instance.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Debug        bool
	Logger       *slog.Logger

	// HTTPClient overrides the default 30s-timeout client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to one SuiteCRM instance. It is not safe for concurrent use;
// the pipeline processes one event at a time.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	username     string
	password     string
	debug        bool
	logger       *slog.Logger
	httpClient   *http.Client

	state       authState
	failReason  string
	token       string
	tokenExpiry time.Time
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
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		username:     cfg.Username,
		password:     cfg.Password,
		debug:        cfg.Debug,
		logger:       logger,
		httpClient:   httpClient,
	}
}

// Record is the CRM's view of a created record. The ID is whatever the CRM
// assigned; it is never fabricated client-side.
type Record struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// ConnectionReport is the outcome of TestConnection. It never comes with an
// error: failures are reported in Message.
type ConnectionReport struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	ModulesCount int      `json:"modules_count,omitempty"`
	Modules      []string `json:"modules,omitempty"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ensureAuthenticated acquires a bearer token if the cached one is absent or
// within the refresh margin of expiry. Idempotent; called at the top of every
// CRM-bound path.
func (c *Client) ensureAuthenticated(ctx context.Context) error {
	if c.state == authReady && time.Until(c.tokenExpiry) > tokenRefreshMargin {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/Api/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.debugLog("token request", "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.state = authFailed
		c.failReason = err.Error()
		return &TransportError{Op: "token request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.state = authFailed
		c.failReason = err.Error()
		return &TransportError{Op: "read token response", Err: err}
	}

	c.debugLog("token response", "status", resp.StatusCode, "body", string(body))

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		detail := tok.ErrorDescription
		if detail == "" {
			detail = tok.Error
		}
		if detail == "" {
			detail = fmt.Sprintf("no access_token in response (HTTP %d)", resp.StatusCode)
		}
		c.state = authFailed
		c.failReason = detail
		return &AuthError{Detail: detail}
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.state = authReady
	c.failReason = ""
	return nil
}

// GetAccessToken returns a valid bearer token, requesting one if needed.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return "", err
	}
	return c.token, nil
}

// ListModules returns the names of the modules the CRM exposes, sorted.
func (c *Client) ListModules(ctx context.Context) ([]string, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/Api/V8/meta/modules", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Attributes map[string]json.RawMessage `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode modules response: %w", err)
	}

	modules := make([]string, 0, len(payload.Data.Attributes))
	for name := range payload.Data.Attributes {
		modules = append(modules, name)
	}
	sort.Strings(modules)
	return modules, nil
}

// GetModuleFields fetches the field metadata of one module, strips CRM-internal
// fields, and normalizes the rest.
func (c *Client) GetModuleFields(ctx context.Context, module string) (map[string]domain.CrmField, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/Api/V8/meta/fields/"+url.PathEscape(module), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Attributes map[string]map[string]any `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode fields response: %w", err)
	}

	fields := make(map[string]domain.CrmField, len(payload.Data.Attributes))
	for name, attrs := range payload.Data.Attributes {
		if systemFields[name] {
			continue
		}
		fields[name] = normalizeField(name, module, attrs)
	}
	return fields, nil
}

// CreateRecord creates one record in the given module and returns the CRM's
// view of it.
func (c *Client) CreateRecord(ctx context.Context, module string, attributes map[string]any) (*Record, error) {
	reqBody := map[string]any{
		"data": map[string]any{
			"type":       module,
			"attributes": attributes,
		},
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/Api/V8/module", reqBody)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data Record `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	return &payload.Data, nil
}

// TestConnection attempts token acquisition plus module discovery and reports
// the outcome. It never returns an error.
func (c *Client) TestConnection(ctx context.Context) ConnectionReport {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return ConnectionReport{Success: false, Message: err.Error()}
	}

	modules, err := c.ListModules(ctx)
	if err != nil {
		return ConnectionReport{Success: false, Message: err.Error()}
	}

	return ConnectionReport{
		Success:      true,
		Message:      fmt.Sprintf("connected, %d modules available", len(modules)),
		ModulesCount: len(modules),
		Modules:      modules,
	}
}

// doJSON performs one authenticated JSON:API request and returns the raw
// response body on 2xx.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	var reqBytes []byte
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBytes = b
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", contentTypeJSONAPI)
	if reqBody != nil {
		req.Header.Set("Content-Type", contentTypeJSONAPI)
	}

	c.debugLog("crm request", "method", method, "path", path, "body", string(reqBytes))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response for " + path, Err: err}
	}

	c.debugLog("crm response", "path", path, "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(resp.StatusCode, body)}
	}
	return body, nil
}

// errorDetail extracts the CRM's error message following its body conventions
// (errors[0].detail, then error_description), falling back to the HTTP status.
func errorDetail(status int, body []byte) string {
	var jsonAPI struct {
		Errors []struct {
			Detail string `json:"detail"`
			Title  string `json:"title"`
		} `json:"errors"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &jsonAPI); err == nil {
		if len(jsonAPI.Errors) > 0 {
			if jsonAPI.Errors[0].Detail != "" {
				return jsonAPI.Errors[0].Detail
			}
			if jsonAPI.Errors[0].Title != "" {
				return jsonAPI.Errors[0].Title
			}
		}
		if jsonAPI.ErrorDescription != "" {
			return jsonAPI.ErrorDescription
		}
	}
	return http.StatusText(status)
}

// debugLog records request/response details when debug mode is on. Failures
// remain loggable through the same channel.
func (c *Client) debugLog(msg string, args ...any) {
	if !c.debug {
		return
	}
	c.logger.Debug(msg, args...)
}

// normalizeField flattens the CRM's loosely typed field metadata into a
// CrmField.
func normalizeField(name, module string, attrs map[string]any) domain.CrmField {
	f := domain.CrmField{
		Name:    name,
		Module:  module,
		Type:    asString(attrs["type"]),
		DBType:  asString(attrs["dbType"]),
		Label:   deriveLabel(name, asString(attrs["vname"])),
		Default: asString(attrs["default"]),
		Comment: asString(attrs["comment"]),
	}
	f.Required = asBool(attrs["required"])
	if n, ok := asInt(attrs["len"]); ok && n > 0 {
		f.MaxLength = &n
	}
	if opts, ok := attrs["options"].(map[string]any); ok {
		f.Options = make(map[string]string, len(opts))
		for k, v := range opts {
			f.Options[k] = asString(v)
		}
	}
	return f
}

// deriveLabel turns a vname language key like "LBL_LAST_NAME" into "Last
// Name", falling back to a humanized field name.
func deriveLabel(name, vname string) string {
	if vname != "" {
		return humanize(strings.TrimPrefix(vname, "LBL_"))
	}
	return humanize(name)
}

func humanize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		w = strings.ToLower(w)
		if w != "" {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		words[i] = w
	}
	return strings.Join(words, " ")
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

func asBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "1" || val == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func asInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
