package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Auth store drivers accepted in AUTH_STORE.
const (
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config holds all runtime configuration loaded from environment variables.
// It is built once at startup and passed explicitly to every constructor.
type Config struct {
	AppPort        string
	AppEnv         string
	AppBaseURL     string // used to build links embedded in emails
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath  string
	JWTPublicKeyPath   string
	JWTExpiry          time.Duration
	RefreshTokenExpiry time.Duration

	// AuthStore selects the backend for rate-limit records and email tokens.
	AuthStore   string
	DatabaseURL string
	RedisURL    string

	RateLimits         RateLimits
	RateLimitRetention time.Duration
	TokenTTL           time.Duration

	MailFrom     string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string

	RDAPBaseURL       string
	RDAPTimeout       time.Duration
	CheckConcurrency  int
	CheckRefreshAge   time.Duration
	CheckRefreshBatch int

	MaintenanceInterval time.Duration
	ReportURLExpiry     time.Duration
	AllowedOrigins      []string // CORS allowed origins
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Sessions      string
	Applications  string
	Categories    string
	Domains       string
	Checks        string
	TLDs          string
	Notifications string
	RateLimits    string
	EmailTokens   string
}

// RateLimitPolicy bounds attempts per email within a sliding window.
type RateLimitPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

// RateLimits holds the policy for each email purpose.
type RateLimits struct {
	Verification  RateLimitPolicy
	PasswordReset RateLimitPolicy
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AppBaseURL:     strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:      getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Applications:  getEnv("DYNAMO_TABLE_APPLICATIONS", "applications"),
			Categories:    getEnv("DYNAMO_TABLE_CATEGORIES", "categories"),
			Domains:       getEnv("DYNAMO_TABLE_DOMAINS", "domains"),
			Checks:        getEnv("DYNAMO_TABLE_CHECKS", "checks"),
			TLDs:          getEnv("DYNAMO_TABLE_TLDS", "tlds"),
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			RateLimits:    getEnv("DYNAMO_TABLE_RATE_LIMITS", "rate_limits"),
			EmailTokens:   getEnv("DYNAMO_TABLE_EMAIL_TOKENS", "email_tokens"),
		},
		S3BucketName:       getEnv("S3_BUCKET_NAME", "valid-names-reports"),
		JWTPrivateKeyPath:  getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:   getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:          getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		RefreshTokenExpiry: getEnvDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour),
		AuthStore:          strings.ToLower(getEnv("AUTH_STORE", StoreDynamo)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RateLimits: RateLimits{
			Verification: RateLimitPolicy{
				MaxAttempts: getEnvInt("VERIFICATION_MAX_ATTEMPTS", 5),
				Window:      getEnvDuration("VERIFICATION_WINDOW", time.Hour),
			},
			PasswordReset: RateLimitPolicy{
				MaxAttempts: getEnvInt("PASSWORD_RESET_MAX_ATTEMPTS", 3),
				Window:      getEnvDuration("PASSWORD_RESET_WINDOW", time.Hour),
			},
		},
		RateLimitRetention:  getEnvDuration("RATE_LIMIT_RETENTION", 24*time.Hour),
		TokenTTL:            getEnvDuration("TOKEN_TTL", 24*time.Hour),
		MailFrom:            getEnv("MAIL_FROM", "Valid Names <noreply@example.com>"),
		ResendAPIKey:        getEnv("RESEND_API_KEY", ""),
		SMTPHost:            getEnv("SMTP_HOST", "localhost"),
		SMTPPort:            getEnv("SMTP_PORT", "1025"),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		RDAPBaseURL:         strings.TrimRight(getEnv("RDAP_BASE_URL", "https://rdap.org"), "/"),
		RDAPTimeout:         getEnvDuration("RDAP_TIMEOUT", 10*time.Second),
		CheckConcurrency:    getEnvInt("CHECK_CONCURRENCY", 4),
		CheckRefreshAge:     getEnvDuration("CHECK_REFRESH_AGE", 24*time.Hour),
		CheckRefreshBatch:   getEnvInt("CHECK_REFRESH_BATCH", 50),
		MaintenanceInterval: getEnvDuration("MAINTENANCE_INTERVAL", 15*time.Minute),
		ReportURLExpiry:     getEnvDuration("REPORT_URL_EXPIRY", 15*time.Minute),
		AllowedOrigins:      strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxyHeaders:   getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90m", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
