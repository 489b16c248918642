package guard_test

import (
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/bundlefront/sessionguard/broadcast"
	"github.com/bundlefront/sessionguard/guard"
	"github.com/bundlefront/sessionguard/internal/config"
	"github.com/bundlefront/sessionguard/sessions"
	"github.com/bundlefront/sessionguard/sessions/storefakes"
	"github.com/bundlefront/sessionguard/storage"
	"github.com/bundlefront/sessionguard/users"
)

var testNow = time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC)

// fakeNavigator records every redirect the guard performs.
type fakeNavigator struct {
	paths []string
	lock  sync.Mutex
}

func (n *fakeNavigator) Redirect(path string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.paths = append(n.paths, path)
}

func (n *fakeNavigator) redirects() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string(nil), n.paths...)
}

// testFixture holds a guard wired to fakes and a fake clock.
type testFixture struct {
	store *storefakes.FakeStore
	bus   *broadcast.Bus
	nav   *fakeNavigator
	clock clockwork.FakeClock
	guard *guard.Guard
}

func makeToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()

	rawToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return rawToken
}

func sessionExpiringAt(t *testing.T, role users.RoleType, expiresAt time.Time) *sessions.Session {
	t.Helper()

	return &sessions.Session{
		Token: makeToken(t, jwtlib.MapClaims{"exp": expiresAt.Unix()}),
		User:  &users.Record{Role: role},
	}
}

func setupTestFixture(t *testing.T, session *sessions.Session, options ...guard.Option) *testFixture {
	t.Helper()

	f := &testFixture{
		store: storefakes.NewFakeStore(session),
		bus:   broadcast.NewBus(),
		nav:   &fakeNavigator{},
		clock: clockwork.NewFakeClockAt(testNow),
	}
	f.store.OnBroadcast = f.bus.Publish

	options = append([]guard.Option{guard.WithClock(f.clock)}, options...)
	g, err := guard.New(f.store, f.bus, f.nav, nil, options...)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	f.guard = g
	return f
}

func TestNewRequiresDependencies(t *testing.T) {
	bus := broadcast.NewBus()
	nav := &fakeNavigator{}
	store := storefakes.NewFakeStore(nil)

	_, err := guard.New(nil, bus, nav, nil)
	require.Error(t, err)

	_, err = guard.New(store, nil, nav, nil)
	require.Error(t, err)

	_, err = guard.New(store, bus, nil, nil)
	require.Error(t, err)
}

func TestRunNoSession(t *testing.T) {
	f := setupTestFixture(t, nil)

	require.Equal(t, guard.StateUnauthenticated, f.guard.Run())
	require.Equal(t, []string{config.RouteSignIn}, f.nav.redirects())
	require.Zero(t, f.store.ClearCalls())

	// no timer was scheduled: time passing changes nothing
	f.clock.Advance(24 * time.Hour)
	require.Equal(t, []string{config.RouteSignIn}, f.nav.redirects())
}

func TestRunExpiredToken(t *testing.T) {
	f := setupTestFixture(t, sessionExpiringAt(t, users.RoleUser, testNow.Add(-10*time.Second)))

	require.Equal(t, guard.StateAuthenticatedExpired, f.guard.Run())
	require.Equal(t, 1, f.store.ClearCalls())
	require.Equal(t, 1, f.store.BroadcastCalls())
	require.Equal(t, []string{config.RouteSignIn}, f.nav.redirects())
	require.Nil(t, f.store.Load())

	f.clock.Advance(24 * time.Hour)
	require.Equal(t, 1, f.store.ClearCalls())
}

func TestRunMalformedTokenFailsClosed(t *testing.T) {
	malformed := []*sessions.Session{
		{Token: "not-a-token", User: &users.Record{Role: users.RoleUser}},
		{Token: makeToken(t, jwtlib.MapClaims{"sub": "user-1"}), User: &users.Record{Role: users.RoleUser}},
	}

	for _, session := range malformed {
		f := setupTestFixture(t, session)
		require.Equal(t, guard.StateAuthenticatedExpired, f.guard.Run())
		require.Equal(t, 1, f.store.ClearCalls())
	}
}

func TestRunWrongRoleReroutesSilently(t *testing.T) {
	session := sessionExpiringAt(t, users.RoleAdmin, testNow.Add(time.Hour))
	f := setupTestFixture(t, session, guard.WithExpectedRole(users.RoleUser))

	require.Equal(t, guard.StateWrongRole, f.guard.Run())
	require.Equal(t, []string{config.RouteAdminDashboard}, f.nav.redirects())

	// the session itself stays intact
	require.Zero(t, f.store.ClearCalls())
	require.NotNil(t, f.store.Load())
}

func TestRunMatchingRole(t *testing.T) {
	session := sessionExpiringAt(t, users.RoleAdmin, testNow.Add(time.Hour))
	f := setupTestFixture(t, session, guard.WithExpectedRole(users.RoleAdmin))

	require.Equal(t, guard.StateAuthenticatedValid, f.guard.Run())
	require.Empty(t, f.nav.redirects())
}

func TestExpiryTimerForcesLogout(t *testing.T) {
	f := setupTestFixture(t, sessionExpiringAt(t, users.RoleUser, testNow.Add(50*time.Millisecond)))

	require.Equal(t, guard.StateAuthenticatedValid, f.guard.Run())

	f.clock.Advance(49 * time.Millisecond)
	require.Zero(t, f.store.ClearCalls())

	f.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool {
		return len(f.nav.redirects()) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, 1, f.store.ClearCalls())
	require.Equal(t, 1, f.store.BroadcastCalls())
	require.Equal(t, []string{config.RouteSignIn}, f.nav.redirects())
	require.Equal(t, guard.StateAuthenticatedExpired, f.guard.State())
}

func TestRerunReplacesTimer(t *testing.T) {
	f := setupTestFixture(t, sessionExpiringAt(t, users.RoleUser, testNow.Add(50*time.Millisecond)))

	// navigating within the protected area re-runs the guard
	require.Equal(t, guard.StateAuthenticatedValid, f.guard.Run())
	require.Equal(t, guard.StateAuthenticatedValid, f.guard.Run())
	require.Equal(t, guard.StateAuthenticatedValid, f.guard.Run())

	f.clock.Advance(time.Hour)
	require.Eventually(t, func() bool {
		return len(f.nav.redirects()) == 1
	}, time.Second, time.Millisecond)

	// no duplicate firings from the replaced timers
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 1, f.store.ClearCalls())
	require.Equal(t, []string{config.RouteSignIn}, f.nav.redirects())
}

func TestCloseCancelsTimerAndSubscriptions(t *testing.T) {
	f := setupTestFixture(t, sessionExpiringAt(t, users.RoleUser, testNow.Add(50*time.Millisecond)))

	require.Equal(t, guard.StateAuthenticatedValid, f.guard.Run())
	f.guard.Close()

	f.clock.Advance(time.Hour)
	f.bus.Publish()
	time.Sleep(10 * time.Millisecond)

	require.Zero(t, f.store.ClearCalls())
	require.Empty(t, f.nav.redirects())
}

func TestHandleUnauthorized(t *testing.T) {
	f := setupTestFixture(t, sessionExpiringAt(t, users.RoleUser, testNow.Add(time.Hour)))
	require.Equal(t, guard.StateAuthenticatedValid, f.guard.Run())

	f.guard.HandleUnauthorized()

	require.Equal(t, 1, f.store.ClearCalls())
	require.Equal(t, 1, f.store.BroadcastCalls())
	require.Equal(t, []string{config.RouteSignIn}, f.nav.redirects())

	// a timer left over from the run must not fire a second logout
	f.clock.Advance(2 * time.Hour)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 1, f.store.ClearCalls())
}

// orderedStore wraps a Store to record the order of logout side effects.
type orderedStore struct {
	sessions.Store
	events *[]string
	lock   *sync.Mutex
}

func (s orderedStore) Clear() {
	s.lock.Lock()
	*s.events = append(*s.events, "clear")
	s.lock.Unlock()
	s.Store.Clear()
}

func (s orderedStore) BroadcastChange() {
	s.lock.Lock()
	*s.events = append(*s.events, "broadcast")
	s.lock.Unlock()
	s.Store.BroadcastChange()
}

func TestForcedLogoutOrdering(t *testing.T) {
	var events []string
	var lock sync.Mutex

	inner := storefakes.NewFakeStore(sessionExpiringAt(t, users.RoleUser, testNow.Add(-time.Minute)))
	nav := guard.NavigatorFunc(func(string) {
		lock.Lock()
		events = append(events, "redirect")
		lock.Unlock()
	})

	g, err := guard.New(
		orderedStore{Store: inner, events: &events, lock: &lock},
		broadcast.NewBus(),
		nav,
		nil,
		guard.WithClock(clockwork.NewFakeClockAt(testNow)),
	)
	require.NoError(t, err)
	defer g.Close()

	require.Equal(t, guard.StateAuthenticatedExpired, g.Run())
	require.Equal(t, []string{"clear", "broadcast", "redirect"}, events)
}

func TestLogoutInOneRegionRedirectsTheOther(t *testing.T) {
	bus := broadcast.NewBus()
	store := storefakes.NewFakeStore(sessionExpiringAt(t, users.RoleUser, testNow.Add(time.Hour)))
	store.OnBroadcast = bus.Publish
	clock := clockwork.NewFakeClockAt(testNow)

	navOne := &fakeNavigator{}
	guardOne, err := guard.New(store, bus, navOne, nil, guard.WithClock(clock))
	require.NoError(t, err)
	defer guardOne.Close()

	navTwo := &fakeNavigator{}
	guardTwo, err := guard.New(store, bus, navTwo, nil, guard.WithClock(clock))
	require.NoError(t, err)
	defer guardTwo.Close()

	require.Equal(t, guard.StateAuthenticatedValid, guardOne.Run())
	require.Equal(t, guard.StateAuthenticatedValid, guardTwo.Run())

	// a 401 lands in region one; region two hears the broadcast,
	// observes cleared storage, and redirects exactly once
	guardOne.HandleUnauthorized()

	require.Equal(t, 1, store.ClearCalls())
	require.Equal(t, []string{config.RouteSignIn}, navOne.redirects())
	require.Equal(t, []string{config.RouteSignIn}, navTwo.redirects())
}

func TestCrossTabStorageChangeRedirects(t *testing.T) {
	mem := storage.NewMemory()
	keys := config.Storage{}

	tabOne := mem.Handle()
	storeOne, err := sessions.NewKVStore(tabOne, nil, broadcast.NewBus())
	require.NoError(t, err)
	storeOne.Save(sessionExpiringAt(t, users.RoleUser, testNow.Add(time.Hour)))

	nav := &fakeNavigator{}
	g, err := guard.New(storeOne, broadcast.NewBus(), nav, tabOne, guard.WithClock(clockwork.NewFakeClockAt(testNow)))
	require.NoError(t, err)
	defer g.Close()

	require.Equal(t, guard.StateAuthenticatedValid, g.Run())

	// another tab logs out by clearing the shared storage
	tabTwo := mem.Handle()
	tabTwo.Delete(keys.GetTokenKey())
	tabTwo.Delete(keys.GetUserKey())

	require.Equal(t, []string{config.RouteSignIn}, nav.redirects())
	require.Equal(t, guard.StateUnauthenticated, g.State())
}
