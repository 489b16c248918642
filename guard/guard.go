// Package guard implements the session-lifecycle guard every protected
// area runs on activation: it derives login state from persisted storage,
// redirects unauthenticated or expired sessions to sign-in, routes
// wrong-role sessions to their own area, and schedules a one-shot forced
// logout for the instant the bearer token expires.
package guard

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/bundlefront/sessionguard/broadcast"
	"github.com/bundlefront/sessionguard/internal/config"
	"github.com/bundlefront/sessionguard/metrics"
	"github.com/bundlefront/sessionguard/sessions"
	"github.com/bundlefront/sessionguard/storage"
	"github.com/bundlefront/sessionguard/token"
	"github.com/bundlefront/sessionguard/users"
)

// State is the terminal state of a guard run.
type State string

const (
	StateUnchecked            State = "unchecked"
	StateUnauthenticated      State = "unauthenticated"
	StateAuthenticatedValid   State = "authenticated_valid"
	StateAuthenticatedExpired State = "authenticated_expired"
	StateWrongRole            State = "wrong_role"
)

// Forced-logout causes, as recorded in metrics.
const (
	causeExpiryTimer        = "expiry_timer"
	causeExpiredOnRun       = "expired_on_run"
	causeRemoteUnauthorized = "remote_unauthorized"
)

// Navigator performs the redirects the guard decides on. Implementations
// must tolerate repeated calls for the same target.
type Navigator interface {
	Redirect(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Redirect(path string) { f(path) }

// Guard watches one protected area. It holds at most one live expiry
// timer; re-running the guard replaces the timer rather than stacking a
// second one, and Close guarantees nothing fires afterwards.
type Guard struct {
	store    sessions.Store
	bus      *broadcast.Bus
	nav      Navigator
	routes   config.RouteConfig
	keys     config.StorageConfig
	clock    clockwork.Clock
	logger   zerolog.Logger
	recorder metrics.Recorder

	// expectedRole scopes the guard to one area; empty accepts any role.
	expectedRole users.RoleType

	lock     sync.Mutex
	state    State
	timer    clockwork.Timer
	timerGen uint64
	cancels  []func()
	closed   bool
}

// Option defines a function type to modify the Guard instance.
type Option func(*Guard)

// WithExpectedRole scopes the guard to an area for one role; sessions
// carrying a different role are silently routed to their own area.
func WithExpectedRole(role users.RoleType) Option {
	return func(g *Guard) {
		g.expectedRole = role
	}
}

// WithClock sets the clock used for expiry checks and the logout timer
// (primarily for testing).
func WithClock(clock clockwork.Clock) Option {
	return func(g *Guard) {
		g.clock = clock
	}
}

// WithLogger sets the guard's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(g *Guard) {
		g.recorder = recorder
	}
}

// WithRoutes overrides the redirect targets.
func WithRoutes(routes config.RouteConfig) Option {
	return func(g *Guard) {
		g.routes = routes
	}
}

// New initialises a Guard and subscribes it, for its lifetime, to the
// same-process broadcast bus and to cross-process storage changes. The
// optional kv handle carries the cross-process leg; pass nil when the
// store is purely local.
func New(store sessions.Store, bus *broadcast.Bus, nav Navigator, kv storage.KeyValue, options ...Option) (*Guard, error) {
	if store == nil {
		return nil, errors.New("[guard.New] session store is required")
	}
	if bus == nil {
		return nil, errors.New("[guard.New] broadcast bus is required")
	}
	if nav == nil {
		return nil, errors.New("[guard.New] navigator is required")
	}

	g := &Guard{
		store:    store,
		bus:      bus,
		nav:      nav,
		routes:   config.Routes{},
		keys:     config.Storage{},
		clock:    clockwork.NewRealClock(),
		logger:   zerolog.Nop(),
		recorder: metrics.Nop{},
		state:    StateUnchecked,
	}

	for _, opt := range options {
		opt(g)
	}

	g.cancels = append(g.cancels, bus.Subscribe(g.onSignal))
	if kv != nil {
		g.cancels = append(g.cancels, kv.Watch(func(key string) {
			if g.isSessionKey(key) {
				g.onSignal()
			}
		}))
	}

	return g, nil
}

// Run executes the guard once, on activation of the protected area, and
// returns its terminal state. A previously scheduled expiry timer is
// always cancelled first, so re-running on navigation within the same
// area never stacks timers.
func (g *Guard) Run() State {
	g.lock.Lock()
	if g.closed {
		g.lock.Unlock()
		return StateUnchecked
	}
	g.stopTimerLocked()

	session := g.store.Load()

	if session == nil {
		g.state = StateUnauthenticated
		g.lock.Unlock()

		g.recorder.RecordGuardRun(string(StateUnauthenticated))
		g.logger.Debug().Msg("no session, redirecting to sign-in")
		g.nav.Redirect(g.routes.GetSignInPath())
		return StateUnauthenticated
	}

	expiresAt, ok := token.ExpiryInstant(session.Token)
	if !ok || !g.clock.Now().Before(expiresAt) {
		// Fail closed: a token without a readable expiry is expired.
		g.state = StateAuthenticatedExpired
		g.lock.Unlock()

		g.recorder.RecordGuardRun(string(StateAuthenticatedExpired))
		g.logger.Info().Msg("session expired, forcing logout")
		g.forceLogout(causeExpiredOnRun)
		return StateAuthenticatedExpired
	}

	if g.expectedRole != "" && session.User.Role != g.expectedRole {
		g.state = StateWrongRole
		g.lock.Unlock()

		g.recorder.RecordGuardRun(string(StateWrongRole))
		g.logger.Debug().
			Str("role", string(session.User.Role)).
			Str("expected", string(g.expectedRole)).
			Msg("wrong role for area, rerouting")
		g.nav.Redirect(session.User.Role.HomePath(g.routes))
		return StateWrongRole
	}

	g.state = StateAuthenticatedValid
	remaining := expiresAt.Sub(g.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	gen := g.timerGen
	g.timer = g.clock.AfterFunc(remaining, func() { g.onExpiryTimer(gen) })
	g.lock.Unlock()

	g.recorder.RecordGuardRun(string(StateAuthenticatedValid))
	g.logger.Debug().Dur("remaining", remaining).Msg("session valid, logout timer scheduled")
	return StateAuthenticatedValid
}

// State returns the terminal state of the most recent guard run.
func (g *Guard) State() State {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.state
}

// HandleUnauthorized is the entry point for callers whose backend request
// was rejected as unauthorized. The backend's verdict is treated exactly
// like a client-detected expiry.
func (g *Guard) HandleUnauthorized() {
	g.lock.Lock()
	if g.closed {
		g.lock.Unlock()
		return
	}
	g.stopTimerLocked()
	g.state = StateAuthenticatedExpired
	g.lock.Unlock()

	g.logger.Info().Msg("backend rejected credentials, forcing logout")
	g.forceLogout(causeRemoteUnauthorized)
}

// Close tears the guard down when its area deactivates: the expiry timer
// and both change subscriptions are released, and no callback fires
// afterwards.
func (g *Guard) Close() {
	g.lock.Lock()
	if g.closed {
		g.lock.Unlock()
		return
	}
	g.closed = true
	g.stopTimerLocked()
	cancels := g.cancels
	g.cancels = nil
	g.lock.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// forceLogout performs clear, then broadcast, then redirect — in that
// order, so any listener reacting to the broadcast observes
// already-cleared storage.
func (g *Guard) forceLogout(cause string) {
	g.recorder.RecordForcedLogout(cause)
	g.store.Clear()
	g.store.BroadcastChange()
	g.nav.Redirect(g.routes.GetSignInPath())
}

// onExpiryTimer fires when the scheduled expiry instant arrives. The
// generation check discards a timer that fired in the window where a
// re-run was already replacing it.
func (g *Guard) onExpiryTimer(gen uint64) {
	g.lock.Lock()
	if g.closed || gen != g.timerGen || g.state != StateAuthenticatedValid {
		g.lock.Unlock()
		return
	}
	g.state = StateAuthenticatedExpired
	g.timer = nil
	g.lock.Unlock()

	g.logger.Info().Msg("token expiry reached, forcing logout")
	g.forceLogout(causeExpiryTimer)
}

// onSignal handles both broadcast legs. If another component or process
// has logged out, the persisted token is gone: redirect immediately. A
// guard whose own run already resolved the session does nothing, so a
// forced logout never redirects twice.
func (g *Guard) onSignal() {
	g.lock.Lock()
	if g.closed || g.state != StateAuthenticatedValid {
		g.lock.Unlock()
		return
	}
	g.lock.Unlock()

	g.recorder.RecordBroadcast()
	if g.store.Load() != nil {
		return
	}

	g.lock.Lock()
	if g.closed || g.state != StateAuthenticatedValid {
		g.lock.Unlock()
		return
	}
	g.state = StateUnauthenticated
	g.stopTimerLocked()
	g.lock.Unlock()

	g.logger.Info().Msg("session cleared elsewhere, redirecting to sign-in")
	g.nav.Redirect(g.routes.GetSignInPath())
}

func (g *Guard) stopTimerLocked() {
	g.timerGen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Guard) isSessionKey(key string) bool {
	return key == g.keys.GetTokenKey() ||
		key == g.keys.GetLegacyTokenKey() ||
		key == g.keys.GetUserKey()
}
