package config

type Config interface {
	EnvConfig
	StorageConfig
	RouteConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetRedisAddr() string
}

type StorageConfig interface {
	GetTokenKey() string
	GetLegacyTokenKey() string
	GetUserKey() string
	GetCookiePath() string
}

type RouteConfig interface {
	GetSignInPath() string
	GetUserHomePath() string
	GetAdminHomePath() string
}

type mainConfig struct {
	EnvVars
	Storage
	Routes
}

func New() Config {
	return mainConfig{}
}
