package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	AppBaseURL  string
	DatabaseURL string
	DBMaxConns  int
	JWTSecret   string
	CronSecret  string
	LinkSecret  string

	LLMProvider      string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	GeminiBaseURL    string
	BrandAPIKey      string
	BrandAPIBaseURL  string
	ResendAPIKey     string
	EmailFrom        string

	StorageDriver   string
	StoragePath     string
	StorageBaseURL  string
	AWSRegion       string
	AWSAccessKey    string
	AWSSecretKey    string
	S3Bucket        string
	S3PublicBaseURL string

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	StageTimeouts     StageTimeouts
	MagicLinkMaxAge   time.Duration
	RecoveryInterval  time.Duration
	RecoveryStaleAge  time.Duration
	PromptCacheTTL    time.Duration
	TaskLease         time.Duration

	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// StageTimeouts is the wall-clock budget of each pipeline stage.
type StageTimeouts struct {
	Scrape   time.Duration
	Concept  time.Duration
	Motif    time.Duration
	Products time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Port:        port,
		AppBaseURL:  strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CronSecret:  os.Getenv("CRON_SECRET"),
		LinkSecret:  os.Getenv("LINK_SECRET"),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		BrandAPIKey:      os.Getenv("BRAND_API_KEY"),
		BrandAPIBaseURL:  getEnv("BRAND_API_BASE_URL", "https://api.brandfetch.io/v2"),
		ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
		EmailFrom:        getEnv("EMAIL_FROM", "Merch Studio <hello@localhost>"),

		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", "file")),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:  os.Getenv("STORAGE_BASE_URL"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-2"),
		AWSAccessKey:    os.Getenv("AWS_ACCESS_KEY"),
		AWSSecretKey:    os.Getenv("AWS_SECRET_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),

		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: time.Millisecond * time.Duration(getEnvInt("RETRY_INITIAL_DELAY_MS", 500)),
		StageTimeouts: StageTimeouts{
			Scrape:   time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_SCRAPE_SECONDS", 90)),
			Concept:  time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_CONCEPT_SECONDS", 60)),
			Motif:    time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_MOTIF_SECONDS", 120)),
			Products: time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_PRODUCTS_SECONDS", 300)),
		},
		MagicLinkMaxAge:  time.Hour * time.Duration(getEnvInt("MAGIC_LINK_MAX_AGE_HOURS", 168)),
		RecoveryInterval: time.Minute * time.Duration(getEnvInt("RECOVERY_INTERVAL_MINUTES", 60)),
		RecoveryStaleAge: time.Hour * time.Duration(getEnvInt("RECOVERY_STALE_HOURS", 24)),
		PromptCacheTTL:   time.Second * time.Duration(getEnvInt("PROMPT_CACHE_TTL_SECONDS", 300)),
		TaskLease:        time.Second * time.Duration(getEnvInt("TASK_LEASE_SECONDS", 600)),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 330)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", port)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.LinkSecret == "" {
		return nil, fmt.Errorf("LINK_SECRET is required")
	}

	if _, err := url.Parse(cfg.AppBaseURL); err != nil {
		return nil, fmt.Errorf("APP_BASE_URL is invalid: %w", err)
	}

	switch cfg.LLMProvider {
	case "gemini", "openai":
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	switch cfg.StorageDriver {
	case "file":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
