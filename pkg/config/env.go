package config

// EnvPrefix is the envconfig prefix for all service configuration.
const EnvPrefix = "SAFETRADE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SAFETRADE_DB_DSN"
	EnvDBHost = "SAFETRADE_DB_HOST"
	EnvDBUser = "SAFETRADE_DB_USER"
	EnvDBName = "SAFETRADE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
