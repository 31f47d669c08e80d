package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/collabtask/internal/logging"
	"github.com/nhle/collabtask/internal/model"
)

// authPathPrefix marks endpoints whose 401s are real credential failures,
// never a reason to refresh.
const authPathPrefix = "/auth/"

// conflictSignatures identify a version-mismatch rejection when the status
// code alone does not.
var conflictSignatures = []string{
	"version mismatch",
	"modified by another user",
}

// Session is the credential slot the client reads tokens from and reports
// refresh outcomes to. *session.Session implements it.
type Session interface {
	AccessToken() string
	RefreshToken() string
	Login(cred model.Credential) error
	Rotate(access, refresh string) error
	Clear() error
	End(reason error)
}

// Config holds the client settings.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	MaxAuthRetries    int
	ExpiredSignatures []string
}

// ConfigFrom converts the api section of the app config.
func ConfigFrom(c model.APIConfig) Config {
	return Config{
		BaseURL:           c.BaseURL,
		Timeout:           c.Timeout(),
		MaxAuthRetries:    c.MaxAuthRetries,
		ExpiredSignatures: c.ExpiredSignatures,
	}
}

// Client is the authenticated HTTP client for the CollabTask API. It
// attaches the current bearer token to every call, refreshes the token when
// the server reports it expired, and re-issues the call with the new token.
type Client struct {
	baseURL    string
	cfg        Config
	session    Session
	httpClient *http.Client
	logger     *zap.Logger

	// refreshes holds the single in-flight refresh all callers join.
	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Timeout is
// ignored; the per-call timeout comes from Config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for cfg.BaseURL reading credentials from sess.
func NewClient(cfg Config, sess Session, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAuthRetries < 0 {
		cfg.MaxAuthRetries = 0
	}
	if len(cfg.ExpiredSignatures) == 0 {
		cfg.ExpiredSignatures = model.DefaultExpiredSignatures
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cfg:        cfg,
		session:    sess,
		httpClient: &http.Client{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a successful call's decoded envelope.
type Response struct {
	Status    int
	Message   string
	Data      json.RawMessage
	RequestID string
}

type requestOptions struct {
	token string
	query url.Values
}

// RequestOption adjusts a single call.
type RequestOption func(*requestOptions)

// WithToken sends token instead of the session's access token. Calls made
// with an override token are never refreshed or retried.
func WithToken(token string) RequestOption {
	return func(o *requestOptions) { o.token = token }
}

// WithQuery appends query parameters to the path.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// Get performs a GET and decodes the envelope's data into result.
func (c *Client) Get(ctx context.Context, path string, result interface{}, opts ...RequestOption) error {
	return c.decode(ctx, http.MethodGet, path, nil, result, opts)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}, opts ...RequestOption) error {
	return c.decode(ctx, http.MethodPost, path, body, result, opts)
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, result interface{}, opts ...RequestOption) error {
	return c.decode(ctx, http.MethodPut, path, body, result, opts)
}

// Patch performs a PATCH with an optional JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, result interface{}, opts ...RequestOption) error {
	return c.decode(ctx, http.MethodPatch, path, body, result, opts)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string, result interface{}, opts ...RequestOption) error {
	return c.decode(ctx, http.MethodDelete, path, nil, result, opts)
}

func (c *Client) decode(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
	opts []RequestOption,
) error {
	res, err := c.Do(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}

	if result == nil || len(res.Data) == 0 || string(res.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(res.Data, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	return nil
}

// Do issues one logical call. A 401 carrying a session-expired message on a
// non-auth path triggers a shared token refresh and a re-issue with the new
// token, at most MaxAuthRetries times. When the refresh fails or the budget
// runs out the session is ended and a *SessionExpiredError returned.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	opts ...RequestOption,
) (*Response, error) {
	o := requestOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	target := path
	if len(o.query) > 0 {
		target += "?" + o.query.Encode()
	}

	if o.token != "" {
		raw, err := c.send(ctx, method, path, target, payload, o.token)
		if err != nil {
			return nil, err
		}
		return c.finish(method, path, raw)
	}

	token := c.session.AccessToken()
	for attempt := 0; ; attempt++ {
		raw, err := c.send(ctx, method, path, target, payload, token)
		if err != nil {
			return nil, err
		}

		if !c.sessionExpired(path, token, raw) {
			return c.finish(method, path, raw)
		}

		if attempt >= c.cfg.MaxAuthRetries {
			cause := fmt.Errorf(
				"still unauthorized after %d refreshes on %s %s",
				attempt, method, path,
			)
			c.session.End(cause)
			return nil, &SessionExpiredError{Cause: cause}
		}

		c.logger.Debug("access token rejected, refreshing",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
		)

		token, err = c.refresh(ctx, token)
		if err != nil {
			return nil, err
		}
	}
}

// rawResponse is one HTTP exchange before envelope interpretation.
type rawResponse struct {
	status    int
	body      []byte
	envelope  envelope
	parsed    bool
	requestID string
}

// envelope decodes the response wrapper. Success is a pointer so a missing
// field is distinguishable from false.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

// send performs a single HTTP exchange bounded by the per-call timeout.
func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	target string,
	payload []byte,
	token string,
) (*rawResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	requestID := uuid.NewString()
	logger := logging.WithRequestID(logging.ContextWithRequestID(ctx, requestID), c.logger)

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, callCtx, method, path, err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, c.transportError(ctx, callCtx, method, path, err)
	}

	logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	raw := &rawResponse{
		status:    resp.StatusCode,
		body:      body,
		requestID: requestID,
	}
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &raw.envelope) == nil {
		raw.parsed = true
	}
	return raw, nil
}

// transportError classifies a failed exchange. A fired per-call deadline is
// a timeout; a cancelled caller context is returned as-is.
func (c *Client) transportError(
	parent context.Context,
	callCtx context.Context,
	method string,
	path string,
	err error,
) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &RequestError{
			Kind:    KindTimeout,
			Method:  method,
			Path:    path,
			Message: "request timed out",
			Err:     err,
		}
	}
	if parent.Err() != nil {
		return fmt.Errorf("%s %s: %w", method, path, parent.Err())
	}
	return &RequestError{
		Kind:    KindNetwork,
		Method:  method,
		Path:    path,
		Message: err.Error(),
		Err:     err,
	}
}

// sessionExpired reports whether raw is a stale-token rejection that a
// refresh could fix.
func (c *Client) sessionExpired(path string, token string, raw *rawResponse) bool {
	if raw.status != http.StatusUnauthorized || token == "" {
		return false
	}
	if strings.HasPrefix(path, authPathPrefix) {
		return false
	}

	msg := strings.ToLower(messageOf(raw))
	for _, sig := range c.cfg.ExpiredSignatures {
		if sig != "" && strings.Contains(msg, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}

// finish turns a non-expired exchange into a Response or a typed error.
func (c *Client) finish(method, path string, raw *rawResponse) (*Response, error) {
	ok := raw.status >= 200 && raw.status < 300
	if ok && raw.parsed && raw.envelope.Success != nil && !*raw.envelope.Success {
		ok = false
	}

	if !ok {
		reqErr := &RequestError{
			Kind:    KindHTTP,
			Method:  method,
			Path:    path,
			Status:  raw.status,
			Message: messageOf(raw),
			RawBody: raw.body,
		}
		if isConflict(raw.status, reqErr.Message) {
			return nil, &ConflictError{RequestError: reqErr}
		}
		return nil, reqErr
	}

	if !raw.parsed && len(bytes.TrimSpace(raw.body)) > 0 {
		return nil, &RequestError{
			Kind:    KindNetwork,
			Method:  method,
			Path:    path,
			Status:  raw.status,
			Message: "unreadable response body",
			RawBody: raw.body,
		}
	}

	return &Response{
		Status:    raw.status,
		Message:   raw.envelope.Message,
		Data:      raw.envelope.Data,
		RequestID: raw.requestID,
	}, nil
}

func isConflict(status int, message string) bool {
	if status == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(message)
	for _, sig := range conflictSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// messageOf extracts the server's message: "message", then "detail"
// (a string, or a list of validation errors), then "error".
func messageOf(raw *rawResponse) string {
	if !raw.parsed {
		if raw.status >= 200 && raw.status < 300 {
			return ""
		}
		return "Request failed"
	}

	env := raw.envelope
	if env.Message != "" {
		return env.Message
	}

	if len(env.Detail) > 0 {
		var detail string
		if json.Unmarshal(env.Detail, &detail) == nil && detail != "" {
			return detail
		}

		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(env.Detail, &items) == nil {
			var msgs []string
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	if env.Error != "" {
		return env.Error
	}
	return "Request failed"
}

// escape encodes one path segment.
func escape(segment string) string {
	return url.PathEscape(segment)
}
