package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/bundlefront/sessionguard/internal/config"
	"github.com/bundlefront/sessionguard/middleware"
	"github.com/bundlefront/sessionguard/users"
)

var keys = config.Storage{}

func makeToken(t *testing.T, exp time.Time) string {
	t.Helper()

	rawToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return rawToken
}

func protectedRequest(t *testing.T, gate *middleware.Gate, role users.RoleType, cookies ...*http.Cookie) (*httptest.ResponseRecorder, *users.Record) {
	t.Helper()

	var seen *users.Record
	handler := gate.RequireSession(role)(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/account", nil)
	for _, cookie := range cookies {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	handler(w, r)
	return w, seen
}

func sessionCookies(t *testing.T, exp time.Time, role users.RoleType) []*http.Cookie {
	t.Helper()

	return []*http.Cookie{
		{Name: keys.GetTokenKey(), Value: makeToken(t, exp)},
		{Name: keys.GetUserKey(), Value: url.QueryEscape(`{"role":"` + string(role) + `"}`)},
	}
}

func TestRequireSessionAllowsValidSession(t *testing.T) {
	gate := middleware.NewGate()

	w, seen := protectedRequest(t, gate, users.RoleUser, sessionCookies(t, time.Now().Add(time.Hour), users.RoleUser)...)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	require.Equal(t, users.RoleUser, seen.Role)
}

func TestRequireSessionRedirectsWithoutCookies(t *testing.T) {
	gate := middleware.NewGate()

	w, _ := protectedRequest(t, gate, users.RoleUser)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, config.RouteSignIn, w.Header().Get("Location"))
}

func TestRequireSessionRedirectsExpiredToken(t *testing.T) {
	gate := middleware.NewGate()

	w, _ := protectedRequest(t, gate, users.RoleUser, sessionCookies(t, time.Now().Add(-time.Minute), users.RoleUser)...)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, config.RouteSignIn, w.Header().Get("Location"))
}

func TestRequireSessionRedirectsTokenWithoutUserCookie(t *testing.T) {
	gate := middleware.NewGate()

	w, _ := protectedRequest(t, gate, users.RoleUser, &http.Cookie{
		Name:  keys.GetTokenKey(),
		Value: makeToken(t, time.Now().Add(time.Hour)),
	})

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, config.RouteSignIn, w.Header().Get("Location"))
}

func TestRequireSessionReroutesWrongRole(t *testing.T) {
	gate := middleware.NewGate()

	// an admin hitting a user-only area lands on the admin dashboard,
	// not on sign-in
	w, _ := protectedRequest(t, gate, users.RoleUser, sessionCookies(t, time.Now().Add(time.Hour), users.RoleAdmin)...)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, config.RouteAdminDashboard, w.Header().Get("Location"))
}

func TestRequireSessionAcceptsLegacyTokenCookie(t *testing.T) {
	gate := middleware.NewGate()

	w, _ := protectedRequest(t, gate, users.RoleUser,
		&http.Cookie{Name: keys.GetLegacyTokenKey(), Value: makeToken(t, time.Now().Add(time.Hour))},
		&http.Cookie{Name: keys.GetUserKey(), Value: url.QueryEscape(`{"role":"user"}`)},
	)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireSessionCorruptUserCookie(t *testing.T) {
	gate := middleware.NewGate()

	w, _ := protectedRequest(t, gate, users.RoleUser,
		&http.Cookie{Name: keys.GetTokenKey(), Value: makeToken(t, time.Now().Add(time.Hour))},
		&http.Cookie{Name: keys.GetUserKey(), Value: url.QueryEscape(`{"role":`)},
	)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, config.RouteSignIn, w.Header().Get("Location"))
}
