package config

// EnvPrefix is passed to envconfig; individual fields carry fully
// qualified envconfig tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "LAUNDRYOPS_DB_DSN"
	EnvDBHost = "LAUNDRYOPS_DB_HOST"
	EnvDBUser = "LAUNDRYOPS_DB_USER"
	EnvDBName = "LAUNDRYOPS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
