package sessions

import (
	"github.com/bundlefront/sessionguard/users"
)

// Session is the persisted client session: the bearer token the backend
// issued at login plus the user record it returned alongside. The two are
// persisted as independent storage entries, so either may be missing or
// stale relative to the other — a partial session is not a session.
type Session struct {
	Token string
	User  *users.Record
}

// Store reads and writes the persisted session and performs the side
// effects of logout. Implementations never panic on absent or corrupt
// data; they resolve it to "not logged in".
type Store interface {
	// Load returns the persisted session, or nil when either entry is
	// absent or the user record fails to parse.
	Load() *Session

	// Save persists a freshly issued session and its cookie mirror.
	Save(session *Session)

	// Clear removes every session-related entry, including deprecated key
	// aliases, and expires the mirrored cookies. Idempotent.
	Clear()

	// BroadcastChange emits the same-process "session state changed"
	// signal so other mounted components re-derive their view.
	BroadcastChange()
}
