// Package config loads portal configuration.
//
// Values come from Default(), then the YAML file named by PORTAL_CONFIG_FILE (if any),
// then PORTAL_* environment variables:
//
//	PORTAL_PORT="8080"
//	PORTAL_WRITE_TIMEOUT="120s"          # bounds a reconciliation run
//	PORTAL_DATABASE_URL="postgres://..."
//	PORTAL_BACKEND_URL="https://<project>.backend.example"
//	PORTAL_BACKEND_SERVICE_KEY="..."
//	PORTAL_NOTIFICATION_FUNCTION="send-credentials-email"
//	PORTAL_LOGIN_URL="https://portal.example/login"
//	PORTAL_S3_BUCKET="policy-documents"
//	PORTAL_REDIS_URL="redis://localhost:6379/0"   # optional, enables rate limiting
//	PORTAL_EXPIRY_SCHEDULE="@hourly"
//	PORTAL_LOG_LEVEL="info"
//
// LoadConfig validates the result before returning it.
package config
