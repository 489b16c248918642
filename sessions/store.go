package sessions

import (
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/bundlefront/sessionguard/broadcast"
	"github.com/bundlefront/sessionguard/internal/config"
	"github.com/bundlefront/sessionguard/storage"
	"github.com/bundlefront/sessionguard/users"
)

// KVStore is the production Store, backed by a key-value storage handle, a
// cookie jar for the server-readable session mirror, and the same-process
// broadcast bus.
type KVStore struct {
	kv     storage.KeyValue
	jar    CookieJar
	bus    *broadcast.Bus
	keys   config.StorageConfig
	logger zerolog.Logger
}

var _ Store = (*KVStore)(nil)

// KVStoreOption defines a function type to modify the KVStore instance.
type KVStoreOption func(*KVStore)

// WithKeys overrides the persisted key names (primarily for testing).
func WithKeys(keys config.StorageConfig) KVStoreOption {
	return func(s *KVStore) {
		s.keys = keys
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger zerolog.Logger) KVStoreOption {
	return func(s *KVStore) {
		s.logger = logger
	}
}

// NewKVStore initialises a KVStore with required dependencies. The cookie
// jar may be nil in contexts without cookie access; cookie mirroring is
// then skipped.
func NewKVStore(kv storage.KeyValue, jar CookieJar, bus *broadcast.Bus, options ...KVStoreOption) (*KVStore, error) {
	if kv == nil {
		return nil, errors.New("[NewKVStore] key-value storage is required")
	}
	if bus == nil {
		return nil, errors.New("[NewKVStore] broadcast bus is required")
	}

	store := &KVStore{
		kv:     kv,
		jar:    jar,
		bus:    bus,
		keys:   config.Storage{},
		logger: zerolog.Nop(),
	}

	for _, opt := range options {
		opt(store)
	}

	return store, nil
}

// Load reads the persisted session. The canonical token key is consulted
// first, then the deprecated legacy alias for sessions written by older
// storefront builds. Any missing entry or corrupt user record resolves to
// nil, never to a partial session.
func (s *KVStore) Load() *Session {
	rawToken, ok := s.kv.Get(s.keys.GetTokenKey())
	if !ok || rawToken == "" {
		rawToken, ok = s.kv.Get(s.keys.GetLegacyTokenKey())
		if !ok || rawToken == "" {
			return nil
		}
	}

	rawUser, ok := s.kv.Get(s.keys.GetUserKey())
	if !ok || rawUser == "" {
		return nil
	}

	record, err := users.ParseRecord([]byte(rawUser))
	if err != nil {
		s.logger.Warn().Err(err).Msg("persisted user record unreadable, treating as signed out")
		return nil
	}

	return &Session{Token: rawToken, User: record}
}

// Save persists the session under the canonical keys and writes the
// cookie mirror the rendering middleware reads.
func (s *KVStore) Save(session *Session) {
	rawUser, err := json.Marshal(session.User)
	if err != nil {
		s.logger.Err(err).Msg("failed to serialise user record")
		return
	}

	s.kv.Set(s.keys.GetTokenKey(), session.Token)
	s.kv.Set(s.keys.GetUserKey(), string(rawUser))

	s.setCookie(s.keys.GetTokenKey(), session.Token)
	s.setCookie(s.keys.GetUserKey(), url.QueryEscape(string(rawUser)))
}

// Clear removes every session entry, the legacy alias included, and
// expires the mirrored cookies. Clearing an already-cleared session is a
// no-op, so every forced-logout path may call it unconditionally.
func (s *KVStore) Clear() {
	s.kv.Delete(s.keys.GetTokenKey())
	s.kv.Delete(s.keys.GetLegacyTokenKey())
	s.kv.Delete(s.keys.GetUserKey())

	s.expireCookie(s.keys.GetTokenKey())
	s.expireCookie(s.keys.GetLegacyTokenKey())
	s.expireCookie(s.keys.GetUserKey())
}

// BroadcastChange notifies other mounted components in this process.
func (s *KVStore) BroadcastChange() {
	s.bus.Publish()
}

func (s *KVStore) setCookie(name, value string) {
	if s.jar == nil {
		return
	}
	if err := s.jar.Set(name, value); err != nil {
		s.logger.Warn().Err(err).Str("cookie", name).Msg("cookie write failed")
	}
}

func (s *KVStore) expireCookie(name string) {
	if s.jar == nil {
		return
	}
	if err := s.jar.Expire(name); err != nil {
		s.logger.Warn().Err(err).Str("cookie", name).Msg("cookie expiry failed")
	}
}
