package users

import (
	"encoding/json"
	"strings"

	"github.com/bundlefront/sessionguard/internal/config"
	"github.com/bundlefront/sessionguard/internal/errors"
)

// RoleType represents the role the backend assigned to a signed-in user.
// It drives post-login routing only; authorization decisions stay with
// the backend.
type RoleType string

const (
	RoleAdmin RoleType = "admin"
	RoleUser  RoleType = "user"
)

// Valid reports whether the role is one the storefront knows how to route.
func (r RoleType) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// HomePath returns the landing area for the role.
func (r RoleType) HomePath(routes config.RouteConfig) string {
	if r == RoleAdmin {
		return routes.GetAdminHomePath()
	}
	return routes.GetUserHomePath()
}

// Record is the user profile the backend returns at login, persisted
// alongside the bearer token.
type Record struct {
	Role      RoleType `json:"role"`
	FirstName string   `json:"first_name,omitempty"` // First name of the user
	LastName  string   `json:"last_name,omitempty"`  // Last name of the user
	Email     string   `json:"email,omitempty"`      // User's email address
	Phone     string   `json:"phone,omitempty"`      // Number the purchased bundles are provisioned to
	AvatarURL string   `json:"avatar_url,omitempty"` // Profile image
}

// IsAdmin returns true if the record carries the admin role
func (r *Record) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// FullName returns the user's display name
func (r *Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// ParseRecord decodes a persisted user record. A record that fails to
// parse, or that carries a role the storefront cannot route, is corrupt —
// callers must treat it as "not logged in", never as a degraded session.
func ParseRecord(data []byte) (*Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptUserRecord, "ParseRecord %s", err.Error())
	}
	if !record.Role.Valid() {
		return nil, errors.Wrapf(errors.ErrUnknownRole, "ParseRecord role %q", record.Role)
	}
	return &record, nil
}
