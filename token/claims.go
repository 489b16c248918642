package token

import (
	"time"

	"github.com/bundlefront/sessionguard/internal/utils"
)

// Claims is the decoded payload of a bearer token. The signature is never
// verified client-side, so Claims must only ever be trusted for expiry,
// never for authorization.
type Claims map[string]any

// ExpiresAt returns the expiry instant derived from the "exp" claim
// (seconds since the Unix epoch). The second return is false when the
// claim is missing or not numeric.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, ok := utils.ToInt64(c["exp"])
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(exp, 0), true
}

// Subject returns the "sub" claim, or an empty string.
func (c Claims) Subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

// Role returns the "role" claim, or an empty string.
func (c Claims) Role() string {
	role, _ := c["role"].(string)
	return role
}
