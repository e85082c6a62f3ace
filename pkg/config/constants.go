package config

const (
	EnvPrefix = "BIZVISTAR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "BIZVISTAR_APP_ENV"
	EnvPort       = "BIZVISTAR_APP_PORT"
	EnvDBDSN      = "BIZVISTAR_DB_DSN"
	EnvDBHost     = "BIZVISTAR_DB_HOST"
	EnvDBUser     = "BIZVISTAR_DB_USER"
	EnvDBName     = "BIZVISTAR_DB_NAME"
	EnvRedisURL   = "BIZVISTAR_REDIS_URL"
	EnvJWTSecret  = "BIZVISTAR_JWT_SECRET"
	EnvJWTIssuer  = "BIZVISTAR_JWT_ISSUER"
	EnvGCPProject = "BIZVISTAR_GCP_PROJECT_ID"

	EnvGatewayMode          = "BIZVISTAR_RAZORPAY_MODE"
	EnvGatewayTestKeyID     = "BIZVISTAR_RAZORPAY_TEST_KEY_ID"
	EnvGatewayTestKeySecret = "BIZVISTAR_RAZORPAY_TEST_KEY_SECRET"
	EnvGatewayLiveKeyID     = "BIZVISTAR_RAZORPAY_LIVE_KEY_ID"
	EnvGatewayLiveKeySecret = "BIZVISTAR_RAZORPAY_LIVE_KEY_SECRET"
	EnvGatewayWebhookSecret = "BIZVISTAR_RAZORPAY_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
