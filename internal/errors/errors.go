package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session guard
var (
	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	ErrMissingExpiry  = errors.New("token missing expiry claim")

	// Session errors
	ErrMissingSession    = errors.New("session not found")
	ErrCorruptUserRecord = errors.New("corrupt user record")

	// Role errors
	ErrUnknownRole  = errors.New("unknown role")
	ErrRoleMismatch = errors.New("role mismatch")

	// Backend errors
	ErrRemoteUnauthorized = errors.New("remote unauthorized")
	ErrUnexpectedStatus   = errors.New("unexpected response status")

	// General errors
	ErrGuardClosed = errors.New("guard closed")
	ErrInternal    = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
