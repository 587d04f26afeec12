package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "tyrekart"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TYREKART_DB_DSN"
	EnvDBHost = "TYREKART_DB_HOST"
	EnvDBUser = "TYREKART_DB_USER"
	EnvDBName = "TYREKART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
