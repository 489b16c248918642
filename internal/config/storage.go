package config

// Persisted storage key names. authTokenKey is the canonical token key;
// legacyTokenKey is a deprecated alias that older parts of the storefront
// still read. It is never written, only cleared on logout.
const (
	authTokenKey   = "authToken"
	legacyTokenKey = "token"
	userKey        = "user"

	cookiePath = "/"
)

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetTokenKey() string {
	return GetEnv("SESSION_TOKEN_KEY", authTokenKey)
}

func (Storage) GetLegacyTokenKey() string {
	return legacyTokenKey
}

func (Storage) GetUserKey() string {
	return GetEnv("SESSION_USER_KEY", userKey)
}

func (Storage) GetCookiePath() string {
	return cookiePath
}
