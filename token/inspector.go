package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/bundlefront/sessionguard/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// DecodeClaims extracts the claims from a bearer token without verifying
// its signature — issuance and signature validity are the backend's job.
// Any malformed input (wrong segment count, invalid base64, invalid JSON)
// returns ErrMalformedToken; callers must treat that identically to an
// expired token.
func DecodeClaims(rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.ErrMalformedToken
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedToken, "DecodeClaims %s", err.Error())
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.ErrMalformedToken
	}

	return Claims(claims), nil
}

// ExpiryInstant returns the instant after which the token must be
// considered invalid. The second return is false for malformed tokens and
// for tokens with a missing or non-numeric "exp" claim.
func ExpiryInstant(rawToken string) (time.Time, bool) {
	claims, err := DecodeClaims(rawToken)
	if err != nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt()
}

// IsExpired reports whether the token must be treated as expired.
// Fail closed: a token whose expiry cannot be derived is always expired,
// so unparseable data can never be treated as permanently valid.
func IsExpired(rawToken string) bool {
	expiresAt, ok := ExpiryInstant(rawToken)
	if !ok {
		return true
	}
	return !NowTimeFunc().Before(expiresAt)
}
