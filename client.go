package instakit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Client is the authenticated session against the provider. Build one at
// startup and pass it to whatever needs the API.
type Client struct {
	cfg     Config
	store   TokenStore
	browser Browser
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger enables logging. Clients log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRateLimit spaces API calls to at most perSecond with the given burst.
// Calls wait for a slot; nothing is retried.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// New returns a client for cfg. browser may be nil when the client is only
// used for requests with an already stored token.
func New(cfg *Config, store TokenStore, browser Browser, opts ...Option) *Client {
	c := &Client{
		cfg:     *cfg,
		store:   store,
		browser: browser,
		http:    http.DefaultClient,
		log:     slog.New(slog.DiscardHandler),
	}
	c.cfg.applyDefaults()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login runs the implicit-grant flow in the browser and stores the token.
func (c *Client) Login(ctx context.Context, scopes ...Scope) (*oauth2.Token, error) {
	if !c.cfg.Credentials.Valid() {
		return nil, &Error{Kind: KindMissingConfiguration, Op: "login", Message: "client id and redirect uri are required"}
	}
	if c.browser == nil {
		return nil, &Error{Kind: KindMissingConfiguration, Op: "login", Message: "no browser configured"}
	}
	req, err := NewAuthorizationRequest(c.cfg.AuthorizeURL, c.cfg.Credentials, scopes)
	if err != nil {
		return nil, &Error{Kind: KindMissingConfiguration, Op: "login", Err: err}
	}
	if c.cfg.ClearCookies {
		if cc, ok := c.browser.(CookieClearer); ok {
			cc.ClearCookies(req.AuthURL.Hostname())
		}
	}

	flow := NewLoginFlow(req)
	c.log.Debug("login started", "authorize_url", c.cfg.AuthorizeURL, "scopes", scopes)
	if err := flow.Start(ctx, c.browser); err != nil {
		c.browser.Dismiss()
		return nil, fmt.Errorf("present login: %w", err)
	}

	var res Result
	select {
	case res = <-flow.Results():
	case <-ctx.Done():
		flow.Cancel(ctx.Err())
		res = <-flow.Results()
	}
	c.browser.Dismiss()

	if res.Err != nil {
		c.log.Info("login failed", "state", flow.State(), "error", res.Err)
		return nil, res.Err
	}
	if err := c.store.Set(ctx, res.Token); err != nil {
		c.log.Warn("token not persisted", "error", err)
		if KindOf(err) != KindStorageError {
			err = storageError("store.set", codeIO, err)
		}
		return nil, err
	}
	c.log.Info("login succeeded", "token", MaskKey(res.Token.AccessToken))
	return res.Token, nil
}

// Logout deletes the stored token. A nil error means it is gone.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Delete(ctx); err != nil {
		if KindOf(err) != KindStorageError {
			err = storageError("store.delete", codeIO, err)
		}
		return err
	}
	c.log.Info("logged out")
	return nil
}

// AccessToken returns the stored token, if any.
func (c *Client) AccessToken(ctx context.Context) (string, bool) {
	tok, err := c.store.Get(ctx)
	if err != nil {
		c.log.Warn("token lookup failed", "error", err)
		return "", false
	}
	if tok == nil || tok.AccessToken == "" {
		return "", false
	}
	return tok.AccessToken, true
}

// IsAuthenticated reports whether a token can be read from the store.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	_, ok := c.AccessToken(ctx)
	return ok
}

// Response carries the metadata of a decoded envelope.
type Response struct {
	StatusCode int
	Meta       Meta
	Pagination *Pagination
}

// Do calls endpoint (relative to the base URL) with the stored access token
// and params in the query string (an access_token in params is ignored),
// and decodes the envelope's data into out.
// An empty body succeeds without touching out.
func (c *Client) Do(ctx context.Context, method, endpoint string, params url.Values, out any) (*Response, error) {
	u, err := c.endpointURL(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "instakit/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, endpoint, err)
	}
	c.log.Debug("api call", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body))

	result := &Response{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}

	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{Kind: KindParseError, Op: "request", Message: err.Error(), Err: err}
	}
	result.Meta = env.Meta
	result.Pagination = env.Pagination
	if env.Meta.ErrorMessage != "" {
		return result, &Error{
			Kind:    KindInvalidRequest,
			Op:      "request",
			Code:    env.Meta.Code,
			Message: strings.TrimSpace(env.Meta.ErrorType + " " + env.Meta.ErrorMessage),
		}
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(*env.Data, out); err != nil {
			return result, &Error{Kind: KindParseError, Op: "request", Message: err.Error(), Err: err}
		}
	}
	return result, nil
}

// endpointURL appends access_token, empty when logged out, and params.
// A caller-supplied access_token is ignored.
func (c *Client) endpointURL(ctx context.Context, endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	tok, err := c.store.Get(ctx)
	if err != nil {
		return "", err
	}
	access := ""
	if tok != nil {
		access = tok.AccessToken
	}
	q := u.Query()
	q.Set("access_token", access)
	for k, vs := range params {
		if k == "access_token" {
			// the stored token always wins
			continue
		}
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// MaskKey masks a token for display, showing only the first and last 4 chars.
func MaskKey(key string) string {
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
