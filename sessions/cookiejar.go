package sessions

import (
	"net/http"
	"sync"
	"time"
)

// CookieJar mirrors session entries into cookies so server-rendered
// routing middleware can make a coarse allow/deny decision before any
// client code runs. Implementations report failures as errors; the store
// logs and ignores them, since a restricted cookie context must never
// break a logout.
type CookieJar interface {
	Set(name, value string) error
	Expire(name string) error
}

// ResponseJar writes the cookie mirror onto an HTTP response.
type ResponseJar struct {
	w      http.ResponseWriter
	secure bool
}

var _ CookieJar = (*ResponseJar)(nil)

func NewResponseJar(w http.ResponseWriter, secure bool) *ResponseJar {
	return &ResponseJar{w: w, secure: secure}
}

func (j *ResponseJar) Set(name, value string) error {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Expire overwrites the cookie with an empty value and immediate expiry,
// scoped to the root path so it matches the cookie Set wrote.
func (j *ResponseJar) Expire(name string) error {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	return nil
}

// MemoryJar is an in-memory CookieJar for tests and cookie-less contexts.
type MemoryJar struct {
	cookies map[string]string
	lock    sync.RWMutex
}

var _ CookieJar = (*MemoryJar)(nil)

func NewMemoryJar() *MemoryJar {
	return &MemoryJar{cookies: make(map[string]string)}
}

func (j *MemoryJar) Set(name, value string) error {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.cookies[name] = value
	return nil
}

func (j *MemoryJar) Expire(name string) error {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.cookies[name] = ""
	return nil
}

// Value returns the current cookie value.
func (j *MemoryJar) Value(name string) string {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.cookies[name]
}
