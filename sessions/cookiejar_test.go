package sessions_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlefront/sessionguard/sessions"
)

func TestResponseJarSet(t *testing.T) {
	w := httptest.NewRecorder()
	jar := sessions.NewResponseJar(w, true)

	require.NoError(t, jar.Set("authToken", "raw-token"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "authToken", cookies[0].Name)
	require.Equal(t, "raw-token", cookies[0].Value)
	require.Equal(t, "/", cookies[0].Path)
	require.True(t, cookies[0].Secure)
}

func TestResponseJarExpire(t *testing.T) {
	w := httptest.NewRecorder()
	jar := sessions.NewResponseJar(w, false)

	require.NoError(t, jar.Expire("authToken"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Empty(t, cookies[0].Value)
	require.Equal(t, "/", cookies[0].Path)
	require.Negative(t, cookies[0].MaxAge)
}
