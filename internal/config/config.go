package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

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
	ApiPort string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// AWS S3 (proposal attachments)
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AttachmentBaseURL  string
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// App
	AppName     string
	GetCacheTTL time.Duration

	// Proposal lifecycle
	ProposalMaxAge      time.Duration // PENDING proposals older than this are expired by the sweep
	ProposalSweepPeriod time.Duration

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

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
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getIntEnv := func(key, defaultValue string) (int, error) {
		v, convErr := strconv.Atoi(getEnv(key, defaultValue))
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, convErr)
		}
		return v, nil
	}

	getSecondsEnv := func(key, defaultValue string) (time.Duration, error) {
		v, convErr := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, convErr)
		}
		return time.Duration(v) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "aqarmatch")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@aqarmatch.example.com")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AttachmentBaseURL = getEnv("ATTACHMENT_BASE_URL", "")
	cfg.AppName = getEnv("APP_NAME", "AqarMatch")

	cfg.RedisDB, err = getIntEnv("REDIS_DB", "0")
	if err != nil {
		return nil, err
	}

	cfg.JwtTTL, err = getSecondsEnv("JWT_TTL_SECONDS", "3600")
	if err != nil {
		return nil, err
	}

	cfg.SmtpPort, err = getIntEnv("SMTP_PORT", "587")
	if err != nil {
		return nil, err
	}

	cfg.ImageMaxDimension, err = getIntEnv("IMAGE_MAX_DIMENSION", "2048")
	if err != nil {
		return nil, err
	}

	cfg.ImageMaxSizeMB, err = getIntEnv("IMAGE_MAX_SIZE_MB", "10")
	if err != nil {
		return nil, err
	}

	cfg.GetCacheTTL, err = getSecondsEnv("GET_CACHE_TTL_SECONDS", "60")
	if err != nil {
		return nil, err
	}

	// 30 days by default; sweep every hour.
	cfg.ProposalMaxAge, err = getSecondsEnv("PROPOSAL_MAX_AGE_SECONDS", "2592000")
	if err != nil {
		return nil, err
	}
	cfg.ProposalSweepPeriod, err = getSecondsEnv("PROPOSAL_SWEEP_PERIOD_SECONDS", "3600")
	if err != nil {
		return nil, err
	}

	cfg.RateLimitSoftBucketSize, err = getIntEnv("RATE_LIMIT_SOFT_BUCKET_SIZE", "2")
	if err != nil {
		return nil, err
	}
	cfg.RateLimitSoftRefillRate, err = getIntEnv("RATE_LIMIT_SOFT_REFILL_RATE", "1")
	if err != nil {
		return nil, err
	}
	cfg.RateLimitHardBucketSize, err = getIntEnv("RATE_LIMIT_HARD_BUCKET_SIZE", "8")
	if err != nil {
		return nil, err
	}
	cfg.RateLimitHardRefillRate, err = getIntEnv("RATE_LIMIT_HARD_REFILL_RATE", "4")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
