package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort          string
	ServiceApiPort   string
	CorsOrigins      []string
	MaxBodyBytes     int64
	MaxUploadBytes   int64
	RequestRateLimit int // requests per second per client
	RequestBurst     int

	// Invoices
	InvoiceNumberAttempts int
	InvoiceSaveAttempts   int
	DefaultCurrency       string
	DefaultTaxPercent     float64
	ExternalCallTimeout   time.Duration

	// Email
	EmailProvider       string // brevo, smtp, log, redis
	EmailLogFile        string // when set, every message is also appended here
	BrevoAPIKey         string
	BrevoURL            string
	SenderEmail         string
	SmtpHost            string
	SmtpPort            int
	SmtpUsername        string
	SmtpPassword        string
	EmailRateLimit      int
	EmailRateWindow     time.Duration
	EmailRateLimitStore string // memory, redis

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AssetBaseURL       string
	AssetPrefix        string
	ImageMaxDimension  int

	// Background tasks
	OverdueSweepCron  string
	WorkerConcurrency int

	// AI invoice drafting
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	AIMaxAttempts    int
	AIMaxPromptChars int
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "invoice_generator")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")
	cfg.LogOutput = getEnv("LOG_OUTPUT", "stdout")

	cfg.ApiPort = getEnv("API_PORT", "4000")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.CorsOrigins = splitList(getEnv("CORS_ORIGIN", "http://localhost:5173"))

	cfg.DefaultCurrency = getEnv("DEFAULT_CURRENCY", "INR")
	cfg.EmailProvider = strings.ToLower(getEnv("EMAIL_PROVIDER", "brevo"))
	cfg.BrevoAPIKey = strings.TrimSpace(getEnv("BREVO_API_KEY", ""))
	cfg.BrevoURL = getEnv("BREVO_URL", "https://api.brevo.com/v3/smtp/email")
	cfg.SenderEmail = strings.TrimSpace(getEnv("SENDER_EMAIL", ""))
	cfg.EmailLogFile = getEnv("EMAIL_LOG_FILE", "")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.EmailRateLimitStore = strings.ToLower(getEnv("EMAIL_RATE_LIMIT_STORE", "memory"))

	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AssetBaseURL = strings.TrimRight(getEnv("ASSET_BASE_URL", ""), "/")
	cfg.AssetPrefix = getEnv("ASSET_PREFIX", "invoice-generator/business-profile")

	cfg.OverdueSweepCron = getEnv("OVERDUE_SWEEP_CRON", "@hourly")

	cfg.OpenAIAPIKey = strings.TrimSpace(getEnv("OPENAI_API_KEY", ""))
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAIBaseURL = strings.TrimRight(getEnv("OPENAI_BASE_URL", ""), "/")

	// Numeric and duration values
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	maxBodyMB, err := strconv.ParseInt(getEnv("MAX_BODY_MB", "50"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_BODY_MB: %w", err)
	}
	cfg.MaxBodyBytes = maxBodyMB * 1024 * 1024

	maxUploadMB, err := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "5"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	cfg.RequestRateLimit, err = strconv.Atoi(getEnv("REQUEST_RATE_LIMIT", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_RATE_LIMIT: %w", err)
	}
	cfg.RequestBurst, err = strconv.Atoi(getEnv("REQUEST_BURST", "40"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_BURST: %w", err)
	}

	cfg.InvoiceNumberAttempts, err = strconv.Atoi(getEnv("INVOICE_NUMBER_ATTEMPTS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVOICE_NUMBER_ATTEMPTS: %w", err)
	}
	cfg.InvoiceSaveAttempts, err = strconv.Atoi(getEnv("INVOICE_SAVE_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVOICE_SAVE_ATTEMPTS: %w", err)
	}

	cfg.DefaultTaxPercent, err = strconv.ParseFloat(getEnv("DEFAULT_TAX_PERCENT", "18"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TAX_PERCENT: %w", err)
	}

	timeoutSeconds, err := strconv.ParseInt(getEnv("EXTERNAL_CALL_TIMEOUT_SECONDS", "20"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTERNAL_CALL_TIMEOUT_SECONDS: %w", err)
	}
	cfg.ExternalCallTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.EmailRateLimit, err = strconv.Atoi(getEnv("EMAIL_RATE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_RATE_LIMIT: %w", err)
	}
	if cfg.EmailRateLimit < 1 {
		return nil, fmt.Errorf("invalid EMAIL_RATE_LIMIT: must be at least 1, got %d", cfg.EmailRateLimit)
	}
	emailWindowSeconds, err := strconv.ParseInt(getEnv("EMAIL_RATE_WINDOW_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_RATE_WINDOW_SECONDS: %w", err)
	}
	if emailWindowSeconds <= 0 {
		return nil, fmt.Errorf("invalid EMAIL_RATE_WINDOW_SECONDS: must be positive, got %d", emailWindowSeconds)
	}
	cfg.EmailRateWindow = time.Duration(emailWindowSeconds) * time.Second

	cfg.WorkerConcurrency, err = strconv.Atoi(getEnv("WORKER_CONCURRENCY", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "1024"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	cfg.AIMaxAttempts, err = strconv.Atoi(getEnv("AI_MAX_ATTEMPTS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid AI_MAX_ATTEMPTS: %w", err)
	}
	if cfg.AIMaxAttempts < 1 {
		return nil, fmt.Errorf("invalid AI_MAX_ATTEMPTS: must be at least 1, got %d", cfg.AIMaxAttempts)
	}
	cfg.AIMaxPromptChars, err = strconv.Atoi(getEnv("AI_MAX_PROMPT_CHARS", "8000"))
	if err != nil {
		return nil, fmt.Errorf("invalid AI_MAX_PROMPT_CHARS: %w", err)
	}

	return cfg, nil
}

// splitList parses a comma-separated env value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
