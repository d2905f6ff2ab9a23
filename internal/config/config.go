package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AppBaseURL     string   // used to build verification links; request origin when empty
	AllowedOrigins []string // CORS allowed origins

	SMTP SMTPConfig

	PreviewS3Bucket string // preview outbox goes to S3 when set, memory otherwise
	PreviewBaseURL  string // public base of this relay for in-memory preview links
	PreviewTTL      time.Duration

	VerificationBackend string // "memory" | "dynamo"
	VerificationTable   string
	SweepInterval       time.Duration

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	Ledger LedgerConfig

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	GoogleClientID string
}

// SMTPConfig describes the primary mail relay.
type SMTPConfig struct {
	Host               string
	Port               int
	User               string
	AuthUser           string // defaults to User
	Pass               string
	AuthMethod         string // "LOGIN" | "PLAIN" | "" (negotiate)
	From               string // defaults to User
	Secure             bool   // implicit TLS; forced on for port 465
	RequireTLS         bool
	TLSServerName      string
	RejectUnauthorized bool
	AllowPreview       bool // development only: fall back to the preview outbox
}

// LedgerConfig addresses the external credit ledger and the member it spends for.
type LedgerConfig struct {
	BaseURL          string
	APIKey           string
	HistoryEndpoint  string // optional override for the history probe
	Timeout          time.Duration
	MemberID         string
	MembershipTierID string
	ProductImage     string
	ProductMusic     string
	ProductBalance   string
	SpendAmount      float64
	HistoryLimit     int
	ImageSourceURL   string
	AudioSourceURL   string
	AudioProbe       time.Duration
}

// Load reads all configuration from environment variables.
func Load() *Config {
	port := getEnvInt("SMTP_PORT", 465)
	user := getEnv("SMTP_USER", "")
	productImage := getEnv("PRODUCT_ID_IMAGE", "image-gen")
	return &Config{
		AppPort:        getEnv("PORT", "4000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AppBaseURL:     strings.TrimRight(getEnv("APP_BASE_URL", ""), "/"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		SMTP: SMTPConfig{
			Host:               getEnv("SMTP_HOST", ""),
			Port:               port,
			User:               user,
			AuthUser:           getEnv("SMTP_AUTH_USER", user),
			Pass:               getEnv("SMTP_PASS", ""),
			AuthMethod:         getEnv("SMTP_AUTH_METHOD", ""),
			From:               getEnv("SMTP_FROM", user),
			Secure:             getEnvBool("SMTP_SECURE", true) || port == 465,
			RequireTLS:         getEnvBool("SMTP_REQUIRE_TLS", false),
			TLSServerName:      getEnv("SMTP_TLS_SERVERNAME", ""),
			RejectUnauthorized: !isLiteralFalse("SMTP_TLS_REJECT_UNAUTHORIZED"),
			AllowPreview:       getEnvBool("SMTP_ALLOW_PREVIEW", false),
		},
		PreviewS3Bucket:     getEnv("PREVIEW_S3_BUCKET", ""),
		PreviewBaseURL:      strings.TrimRight(getEnv("PREVIEW_BASE_URL", "http://localhost:"+getEnv("PORT", "4000")), "/"),
		PreviewTTL:          getEnvDuration("PREVIEW_URL_TTL", 24*time.Hour),
		VerificationBackend: getEnv("VERIFICATION_BACKEND", "memory"),
		VerificationTable:   getEnv("DYNAMO_TABLE_VERIFICATIONS", "verifications"),
		SweepInterval:       getEnvDuration("VERIFICATION_SWEEP_INTERVAL", 5*time.Minute),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:      getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Ledger: LedgerConfig{
			BaseURL:          strings.TrimRight(getEnv("LEDGER_BASE_URL", "https://api.mayar.club"), "/"),
			APIKey:           getEnv("LEDGER_API_KEY", ""),
			HistoryEndpoint:  getEnv("LEDGER_HISTORY_ENDPOINT", ""),
			Timeout:          getEnvDuration("LEDGER_TIMEOUT", 15*time.Second),
			MemberID:         getEnv("MEMBER_ID", ""),
			MembershipTierID: getEnv("MEMBERSHIP_TIER_ID", ""),
			ProductImage:     productImage,
			ProductMusic:     getEnv("PRODUCT_ID_MUSIC", "music-gen"),
			ProductBalance:   getEnv("PRODUCT_ID_BALANCE", productImage),
			SpendAmount:      getEnvFloat("CREDIT_SPEND_AMOUNT", 5),
			HistoryLimit:     getEnvInt("HISTORY_PAGE_LIMIT", 10),
			ImageSourceURL:   getEnv("IMAGE_SOURCE_URL", "https://picsum.photos/300"),
			AudioSourceURL:   getEnv("AUDIO_SOURCE_URL", ""),
			AudioProbe:       getEnvDuration("AUDIO_PROBE_TIMEOUT", 8*time.Second),
		},
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		GoogleClientID:    getEnv("GOOGLE_CLIENT_ID", ""),
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvBool treats only the literal "true" as true, anything else set as false.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return fallback
}

// isLiteralFalse reports whether key is set to exactly "false". Settings that
// relax security use it so any other value keeps them on.
func isLiteralFalse(key string) bool {
	return os.Getenv(key) == "false"
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
