package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Square     SquareConfig
	Sync       SyncConfig
	Redis      RedisConfig
	Encryption EncryptionConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	FrontendURL    string
	AllowedOrigins []string
}

// SquareConfig holds the Square application credentials and endpoints.
// WebhookNotificationURL must be the exact URL registered with Square;
// signatures are computed over it.
type SquareConfig struct {
	ApplicationID          string
	ApplicationSecret      string
	Environment            string
	RedirectURL            string
	Scopes                 []string
	APIVersion             string
	WebhookSignatureKey    string
	WebhookNotificationURL string
	WebhookAccessToken     string
	RequestTimeout         time.Duration
	RequestsPerSecond      float64
}

type SyncConfig struct {
	Interval          time.Duration
	StartupDelay      time.Duration
	BootstrapDays     int
	RefreshWindow     time.Duration
	WorkdayTimezone   string
	SchedulerDisabled bool
}

// RedisConfig is optional. When Address is empty token refreshes are
// serialized in-process only.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type EncryptionConfig struct {
	TokenKey string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded, using process environment", "error", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "timeclock_sync"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: 2,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}
	if len(config.App.AllowedOrigins) == 0 {
		config.App.AllowedOrigins = []string{config.App.FrontendURL}
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Square configuration
	timeout, err := time.ParseDuration(getEnv("SQUARE_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SQUARE_REQUEST_TIMEOUT: %w", err)
	}
	rps, err := strconv.ParseFloat(getEnv("SQUARE_REQUESTS_PER_SECOND", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SQUARE_REQUESTS_PER_SECOND: %w", err)
	}

	scopes := getEnvSlice("SQUARE_SCOPES")
	if len(scopes) == 0 {
		scopes = []string{"MERCHANT_PROFILE_READ", "EMPLOYEES_READ", "TIMECARDS_READ"}
	}

	config.Square = SquareConfig{
		ApplicationID:          getEnv("SQUARE_APPLICATION_ID", ""),
		ApplicationSecret:      getEnv("SQUARE_APPLICATION_SECRET", ""),
		Environment:            getEnv("SQUARE_ENVIRONMENT", "sandbox"),
		RedirectURL:            getEnv("SQUARE_REDIRECT_URL", ""),
		Scopes:                 scopes,
		APIVersion:             getEnv("SQUARE_API_VERSION", "2025-01-23"),
		WebhookSignatureKey:    getEnv("SQUARE_WEBHOOK_SIGNATURE_KEY", ""),
		WebhookNotificationURL: getEnv("SQUARE_WEBHOOK_NOTIFICATION_URL", ""),
		WebhookAccessToken:     getEnv("SQUARE_WEBHOOK_ACCESS_TOKEN", ""),
		RequestTimeout:         timeout,
		RequestsPerSecond:      rps,
	}

	// Sync configuration
	interval, err := time.ParseDuration(getEnv("SYNC_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}
	startupDelay, err := time.ParseDuration(getEnv("SYNC_STARTUP_DELAY", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_STARTUP_DELAY: %w", err)
	}
	refreshWindow, err := time.ParseDuration(getEnv("SYNC_TOKEN_REFRESH_WINDOW", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_TOKEN_REFRESH_WINDOW: %w", err)
	}
	bootstrapDays, err := strconv.Atoi(getEnv("SYNC_BOOTSTRAP_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_BOOTSTRAP_DAYS: %w", err)
	}

	config.Sync = SyncConfig{
		Interval:          interval,
		StartupDelay:      startupDelay,
		BootstrapDays:     bootstrapDays,
		RefreshWindow:     refreshWindow,
		WorkdayTimezone:   getEnv("SYNC_WORKDAY_TIMEZONE", "America/New_York"),
		SchedulerDisabled: getEnv("SYNC_SCHEDULER_DISABLED", "false") == "true",
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Address:  getEnv("REDIS_ADDRESS", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	config.Encryption = EncryptionConfig{
		TokenKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Square.ApplicationID == "" {
		return fmt.Errorf("SQUARE_APPLICATION_ID is required")
	}
	if c.Square.ApplicationSecret == "" {
		return fmt.Errorf("SQUARE_APPLICATION_SECRET is required")
	}
	if c.Square.RedirectURL == "" {
		return fmt.Errorf("SQUARE_REDIRECT_URL is required")
	}
	if c.Square.Environment != "sandbox" && c.Square.Environment != "production" {
		return fmt.Errorf("SQUARE_ENVIRONMENT must be sandbox or production")
	}
	if c.Square.WebhookSignatureKey == "" {
		return fmt.Errorf("SQUARE_WEBHOOK_SIGNATURE_KEY is required")
	}
	if c.Square.WebhookNotificationURL == "" {
		return fmt.Errorf("SQUARE_WEBHOOK_NOTIFICATION_URL is required")
	}
	if c.Square.RequestsPerSecond <= 0 {
		return fmt.Errorf("SQUARE_REQUESTS_PER_SECOND must be positive")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	if _, err := time.LoadLocation(c.Sync.WorkdayTimezone); err != nil {
		return fmt.Errorf("invalid SYNC_WORKDAY_TIMEZONE: %w", err)
	}
	if c.Encryption.TokenKey == "" {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY is required")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SquareBaseURL returns the Square API host for the configured environment.
func (c *Config) SquareBaseURL() string {
	if c.Square.Environment == "production" {
		return "https://connect.squareup.com"
	}
	return "https://connect.squareupsandbox.com"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
