package config

const (
	EnvPrefix = "anvaya"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ANVAYA_DB_DSN"
	EnvDBHost = "ANVAYA_DB_HOST"
	EnvDBUser = "ANVAYA_DB_USER"
	EnvDBName = "ANVAYA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
