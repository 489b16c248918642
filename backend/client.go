// Package backend is the thin client for the storefront's remote REST
// backend. Only the session-relevant contract lives here: login hands
// back a bearer token plus a user record, and any authenticated request
// the backend rejects as unauthorized is surfaced through the same
// forced-logout path as a client-detected expiry. Session failures are
// never retried.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/bundlefront/sessionguard/internal/errors"
	"github.com/bundlefront/sessionguard/sessions"
	"github.com/bundlefront/sessionguard/users"
)

const defaultTimeout = 15 * time.Second

// TokenSource supplies the current bearer token, or "" when signed out.
type TokenSource func() string

// Client talks to the remote backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokenSource    TokenSource
	onUnauthorized func()
	logger         zerolog.Logger
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource makes Do attach the current bearer token to each
// request.
func WithTokenSource(source TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = source
	}
}

// WithUnauthorizedHandler registers the hook run when the backend rejects
// an authenticated request — wire it to the guard's HandleUnauthorized.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  users.Record `json:"user"`
}

// Login authenticates against the backend and returns the issued session.
// Rejected credentials come back as ErrRemoteUnauthorized; that is a
// failed sign-in, not a forced logout, so the unauthorized hook does not
// run here.
func (c *Client) Login(ctx context.Context, email, password string) (*sessions.Session, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Login] marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Login] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Login] request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.ErrRemoteUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrUnexpectedStatus, "[Login] status %d", resp.StatusCode)
	}

	var decoded loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, pkgerrors.Wrap(err, "[Login] decode response")
	}
	if decoded.Token == "" || !decoded.User.Role.Valid() {
		return nil, errors.Wrapf(errors.ErrUnexpectedStatus, "[Login] incomplete session in response")
	}

	return &sessions.Session{Token: decoded.Token, User: &decoded.User}, nil
}

// Do sends an authenticated request. A 401 response drains the body,
// invokes the unauthorized hook, and returns ErrRemoteUnauthorized — the
// caller's session is already being torn down by the hook. There is no
// retry: an unauthorized session is terminal.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.tokenSource != nil {
		if rawToken := c.tokenSource(); rawToken != "" {
			req.Header.Set("Authorization", "Bearer "+rawToken)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Do] request failed")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		c.logger.Info().Str("url", req.URL.Path).Msg("backend rejected request as unauthorized")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, errors.ErrRemoteUnauthorized
	}

	return resp, nil
}
