// Package middleware is the server-rendered routing gate. It reads the
// session-mirroring cookies the store writes and makes a coarse
// allow/deny decision before any client code runs: missing or expired
// token redirects to sign-in, a wrong-role request is rerouted to its own
// area. It never treats the cookie user record as authorization — the
// backend re-checks every request it receives.
package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/bundlefront/sessionguard/internal/config"
	"github.com/bundlefront/sessionguard/token"
	"github.com/bundlefront/sessionguard/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the user record parsed from the cookie mirror
	ContextKeyUser ContextKey = "user"
)

// Gate builds the guarding middleware from the mirrored cookie names and
// redirect targets.
type Gate struct {
	keys   config.StorageConfig
	routes config.RouteConfig
	logger zerolog.Logger
}

// GateOption defines a function type to modify the Gate instance.
type GateOption func(*Gate)

// WithKeys overrides the cookie names (primarily for testing).
func WithKeys(keys config.StorageConfig) GateOption {
	return func(g *Gate) {
		g.keys = keys
	}
}

// WithRoutes overrides the redirect targets.
func WithRoutes(routes config.RouteConfig) GateOption {
	return func(g *Gate) {
		g.routes = routes
	}
}

// WithLogger sets the gate's logger.
func WithLogger(logger zerolog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

func NewGate(options ...GateOption) *Gate {
	g := &Gate{
		keys:   config.Storage{},
		routes: config.Routes{},
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// RequireSession is middleware for server-rendered routes in a protected
// area. expectedRole scopes the area to one role; pass an empty role to
// accept any signed-in user.
func (g *Gate) RequireSession(expectedRole users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken := g.cookieValue(r, g.keys.GetTokenKey())
			if rawToken == "" {
				rawToken = g.cookieValue(r, g.keys.GetLegacyTokenKey())
			}
			if rawToken == "" || token.IsExpired(rawToken) {
				http.Redirect(w, r, g.routes.GetSignInPath(), http.StatusSeeOther)
				return
			}

			record := g.userRecord(r)
			if record == nil {
				// token without a readable user record is not a session
				http.Redirect(w, r, g.routes.GetSignInPath(), http.StatusSeeOther)
				return
			}

			if expectedRole != "" && record.Role != expectedRole {
				http.Redirect(w, r, record.Role.HomePath(g.routes), http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, record)
			next(w, r.WithContext(ctx))
		}
	}
}

// UserFromContext returns the record RequireSession stored, or nil.
func UserFromContext(ctx context.Context) *users.Record {
	record, _ := ctx.Value(ContextKeyUser).(*users.Record)
	return record
}

func (g *Gate) cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// userRecord parses the URL-encoded JSON user cookie. Anything unreadable
// resolves to nil, never to an error page.
func (g *Gate) userRecord(r *http.Request) *users.Record {
	rawCookie := g.cookieValue(r, g.keys.GetUserKey())
	if rawCookie == "" {
		return nil
	}

	rawUser, err := url.QueryUnescape(rawCookie)
	if err != nil {
		g.logger.Debug().Err(err).Msg("user cookie not URL-decodable")
		return nil
	}

	record, err := users.ParseRecord([]byte(rawUser))
	if err != nil {
		g.logger.Debug().Err(err).Msg("user cookie unreadable")
		return nil
	}
	return record
}
