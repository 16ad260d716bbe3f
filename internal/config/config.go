package config

import (
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string // avatar uploads

	// Managed identity provider (GoTrue-compatible REST surface).
	IdentityBaseURL    string
	IdentityServiceKey string // service-role key for admin endpoints
	IdentityJWTSecret  string // when set, access tokens are verified locally (HS256)

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	CodeTTL       time.Duration // validity window for login codes
	SweepInterval time.Duration // expired-code GC cadence

	TwoFactorIssuer string // issuer shown in authenticator apps
	SecretSealKey   string // 64 hex chars; seals 2FA secrets at rest

	ContactWebhookURL  string // outbound webhook for contact submissions
	ContactNotifyEmail string // optional copy of each submission

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	VerificationCodes string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "portfolio-avatars"),

		IdentityBaseURL:    getEnv("IDENTITY_BASE_URL", "http://localhost:9999"),
		IdentityServiceKey: getEnv("IDENTITY_SERVICE_KEY", ""),
		IdentityJWTSecret:  getEnv("IDENTITY_JWT_SECRET", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),

		CodeTTL:       getEnvDuration("CODE_TTL", 10*time.Minute),
		SweepInterval: getEnvDuration("CODE_SWEEP_INTERVAL", 1*time.Hour),

		TwoFactorIssuer: getEnv("TWO_FACTOR_ISSUER", "portfolio"),
		SecretSealKey:   getEnv("SECRET_SEAL_KEY", ""),

		ContactWebhookURL:  getEnv("CONTACT_WEBHOOK_URL", ""),
		ContactNotifyEmail: getEnv("CONTACT_NOTIFY_EMAIL", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
