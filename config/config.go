package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	Port        string
	Env         string
	CORSOrigins []string

	MongoURI           string
	DBName             string
	MongoMinPool       uint64
	MongoMaxPool       uint64
	MongoMaxIdle       time.Duration
	MongoTimeout       time.Duration
	MongoSelectTimeout time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	MaxUploadMB   int64

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	GoogleBooksURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         strings.ToLower(getEnv("APP_ENV", "development")),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		MongoURI:           getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:             getEnv("MONGODB_DB", "library"),
		MongoMinPool:       uint64(getEnvAsInt("MONGODB_MIN_POOL", 2)),
		MongoMaxPool:       uint64(getEnvAsInt("MONGODB_MAX_POOL", 20)),
		MongoMaxIdle:       time.Duration(getEnvAsInt("MONGODB_MAX_IDLE_SECONDS", 60)) * time.Second,
		MongoTimeout:       time.Duration(getEnvAsInt("MONGODB_TIMEOUT_SECONDS", 15)) * time.Second,
		MongoSelectTimeout: time.Duration(getEnvAsInt("MONGODB_SELECT_TIMEOUT_SECONDS", 5)) * time.Second,

		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		JWTTTL:    time.Duration(getEnvAsInt("JWT_TTL_HOURS", 24)) * time.Hour,

		S3Bucket:      getEnv("AWS_S3_BUCKET", ""),
		S3Region:      getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		MaxUploadMB:   int64(getEnvAsInt("MAX_UPLOAD_MB", 5)),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		GoogleBooksURL: getEnv("GOOGLE_BOOKS_URL", ""),
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUsername
	}
	return cfg, cfg.Validate()
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MailEnabled reports whether overdue reminders can be sent.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// Validate rejects settings that would make the service unsafe or unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGODB_URI must not be empty"))
	}
	if c.MongoMinPool > c.MongoMaxPool {
		errs = append(errs, errors.New("MONGODB_MIN_POOL must not exceed MONGODB_MAX_POOL"))
	}
	if c.MongoMaxPool == 0 {
		errs = append(errs, errors.New("MONGODB_MAX_POOL must be positive"))
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set to a strong secret in production"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil && n >= 0 {
		return n
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
