// Package gateway is the single choke point for every call the console makes
// to the CarePulse API. It resolves targets against the configured base URL,
// injects the session's bearer credential, bounds each attempt with a
// timeout, retries idempotent calls on transport failures and 5xx answers,
// normalises error bodies, and tears the session down on 401.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepulse/console/internal/platform/session"
)

const (
	RequestIDHeader = "X-Request-ID"

	// LoginView is the view the console is sent to when the session expires.
	LoginView = "login"
)

var (
	absoluteURL = regexp.MustCompile(`(?i)^https?://`)

	retryableMethods = map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodOptions: true,
	}

	authViews = map[string]bool{
		"login":    true,
		"register": true,
		"forgot":   true,
		"reset":    true,
	}
)

// IsAuthView reports whether view is one of the authentication views, on
// which a 401 must not trigger another redirect.
func IsAuthView(view string) bool {
	v := strings.ToLower(strings.TrimSpace(view))
	v = strings.TrimSuffix(v, ".html")
	if i := strings.LastIndex(v, "/"); i >= 0 {
		v = v[i+1:]
	}
	return authViews[v]
}

// Navigator is the rendering layer's view router, as seen by the client.
type Navigator interface {
	CurrentView() string
	Redirect(view string)
}

// NoRetry and NoDelay turn retries and backoff off in a Policy. A literal
// zero cannot, because zero fields take the client's defaults.
const (
	NoRetry               = -1
	NoDelay time.Duration = -1
)

// Policy bounds one Send call. Zero fields take the client's defaults, so
// MaxRetries: 0 still retries DefaultPolicy().MaxRetries times. Use NoRetry
// for a single attempt and NoDelay to retry without waiting.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultPolicy is 10s per attempt, one retry, 350ms linear backoff.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:    10 * time.Second,
		MaxRetries: 1,
		RetryDelay: 350 * time.Millisecond,
	}
}

func (p Policy) merge(def Policy) Policy {
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	switch {
	case p.MaxRetries == 0:
		p.MaxRetries = def.MaxRetries
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	}
	switch {
	case p.RetryDelay == 0:
		p.RetryDelay = def.RetryDelay
	case p.RetryDelay < 0:
		p.RetryDelay = 0
	}
	return p
}

// Options describes one request. Body may be nil, []byte, string, an
// io.Reader (all sent as-is), or any other value, which is JSON-encoded.
type Options struct {
	Method string
	Header http.Header
	Body   any
}

// Result is a successful (2xx) response.
type Result struct {
	Status  int
	Header  http.Header
	Body    []byte
	Payload any
}

// Decode unmarshals the raw body into out.
func (r *Result) Decode(out any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, out)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client's logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithNavigator sets the router notified when a 401 ends the session.
func WithNavigator(n Navigator) ClientOption {
	return func(c *Client) { c.nav = n }
}

// WithDefaultPolicy replaces the policy used for zero Policy fields.
func WithDefaultPolicy(p Policy) ClientOption {
	return func(c *Client) { c.defaults = p.merge(DefaultPolicy()) }
}

// Client talks to the CarePulse API on behalf of one session.
type Client struct {
	baseURL    string
	session    *session.Session
	httpClient *http.Client
	logger     zerolog.Logger
	nav        Navigator
	defaults   Policy
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient returns a client for the API at baseURL.
func NewClient(baseURL string, sess *session.Session, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    sess,
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
		defaults:   DefaultPolicy(),
		sleep:      sleepContext,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Session returns the session whose credential the client injects.
func (c *Client) Session() *session.Session {
	return c.session
}

// URL resolves target against the base URL.
func (c *Client) URL(target string) string {
	if absoluteURL.MatchString(target) {
		return target
	}
	if strings.HasPrefix(target, "/") {
		return c.baseURL + target
	}
	return c.baseURL + "/" + target
}

// Send executes the request described by opts under policy. It returns the
// 2xx result, an *ApiError for any other status, or a *TransportError when
// no response arrived. A zero policy.MaxRetries means the client default,
// not zero retries; pass NoRetry for a single attempt.
func (c *Client) Send(ctx context.Context, target string, opts Options, policy Policy) (*Result, error) {
	policy = policy.merge(c.defaults)
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}
	url := c.URL(target)

	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if contentType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", contentType)
	}
	if header.Get("Authorization") == "" && c.session != nil {
		if token := c.session.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	if header.Get(RequestIDHeader) == "" {
		header.Set(RequestIDHeader, uuid.NewString())
	}
	rid := header.Get(RequestIDHeader)

	retryable := retryableMethods[method]
	log := c.logger.With().Str("request_id", rid).Str("method", method).Str("url", url).Logger()

	for attempt := 0; ; attempt++ {
		res, err := c.do(ctx, method, url, header, body, policy.Timeout)
		if err != nil {
			if !retryable || attempt >= policy.MaxRetries || ctx.Err() != nil {
				log.Error().Err(err).Int("attempt", attempt+1).Msg("request failed")
				return nil, &TransportError{Method: method, URL: url, Attempts: attempt + 1, Err: err}
			}
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("transport failure, retrying")
			if serr := c.sleep(ctx, policy.RetryDelay*time.Duration(attempt+1)); serr != nil {
				return nil, &TransportError{Method: method, URL: url, Attempts: attempt + 1, Err: serr}
			}
			continue
		}

		log.Debug().Int("status", res.Status).Int("attempt", attempt+1).Msg("response")

		if res.Status == http.StatusUnauthorized {
			c.expire(log)
		}

		if res.Status >= 500 && retryable && attempt < policy.MaxRetries {
			log.Warn().Int("status", res.Status).Int("attempt", attempt+1).Msg("server error, retrying")
			if serr := c.sleep(ctx, policy.RetryDelay*time.Duration(attempt+1)); serr != nil {
				return nil, &TransportError{Method: method, URL: url, Attempts: attempt + 1, Err: serr}
			}
			continue
		}

		if res.Status < 200 || res.Status > 299 {
			return nil, &ApiError{
				Method:  method,
				URL:     url,
				Status:  res.Status,
				Message: normalizeMessage(res.Payload, fmt.Sprintf("Request failed (%d)", res.Status)),
				Payload: res.Payload,
			}
		}
		return res, nil
	}
}

// JSON sends the request and decodes a 2xx body into out. A nil out
// discards the body; an empty body (204) leaves out untouched.
func (c *Client) JSON(ctx context.Context, target string, opts Options, policy Policy, out any) error {
	res, err := c.Send(ctx, target, opts, policy)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(res.Body)) == 0 {
		return nil
	}
	if err := res.Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", strings.ToUpper(orGet(opts.Method)), target, err)
	}
	return nil
}

// Get is JSON with the GET method and the default policy.
func (c *Client) Get(ctx context.Context, target string, out any) error {
	return c.JSON(ctx, target, Options{}, Policy{}, out)
}

// Post is JSON with the POST method and the default policy.
func (c *Client) Post(ctx context.Context, target string, body, out any) error {
	return c.JSON(ctx, target, Options{Method: http.MethodPost, Body: body}, Policy{}, out)
}

// Put is JSON with the PUT method and the default policy.
func (c *Client) Put(ctx context.Context, target string, body, out any) error {
	return c.JSON(ctx, target, Options{Method: http.MethodPut, Body: body}, Policy{}, out)
}

// Delete is JSON with the DELETE method and the default policy.
func (c *Client) Delete(ctx context.Context, target string, out any) error {
	return c.JSON(ctx, target, Options{Method: http.MethodDelete}, Policy{}, out)
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header, body []byte, timeout time.Duration) (*Result, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(actx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Result{
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Body:    raw,
		Payload: parsePayload(resp.Header.Get("Content-Type"), raw),
	}, nil
}

// expire ends the session and, outside the auth views, sends the console to
// the login view.
func (c *Client) expire(log zerolog.Logger) {
	if c.session != nil {
		c.session.Teardown()
	}
	log.Warn().Msg("session expired")
	if c.nav == nil {
		return
	}
	if IsAuthView(c.nav.CurrentView()) {
		return
	}
	c.nav.Redirect(LoginView)
}

func parsePayload(contentType string, raw []byte) any {
	if strings.Contains(contentType, "application/json") {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil
		}
		return v
	}
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	case io.Reader:
		raw, err := io.ReadAll(b)
		return raw, "", err
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return raw, "application/json", nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func orGet(method string) string {
	if method == "" {
		return http.MethodGet
	}
	return method
}
