package config

const (
	EnvPrefix = "AUTOLINK"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv   = "AUTOLINK_APP_ENV"
	EnvPort     = "AUTOLINK_APP_PORT"
	EnvDBDSN    = "AUTOLINK_DB_DSN"
	EnvDBHost   = "AUTOLINK_DB_HOST"
	EnvDBUser   = "AUTOLINK_DB_USER"
	EnvDBName   = "AUTOLINK_DB_NAME"
	EnvRedisURL = "AUTOLINK_REDIS_URL"

	EnvJWTSecret              = "AUTOLINK_JWT_SECRET"
	EnvJWTIssuer              = "AUTOLINK_JWT_ISSUER"
	EnvJWTExpMins             = "AUTOLINK_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "AUTOLINK_REFRESH_TOKEN_TTL_MINUTES"

	EnvGoogleClientID     = "AUTOLINK_GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "AUTOLINK_GOOGLE_CLIENT_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Model year selection starts at 1985, matching the oldest model year the
// registry reliably covers.
const StartModelYear = 1985
