package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBUrl     string
	JWTSecret string
	AppEnv    string

	DBMaxConns int
	DBMinConns int

	CalendarID      string
	CredentialsFile string

	SyncPastDays   int
	SyncFutureDays int
	SyncBatchSize  int
	SyncInterval   time.Duration

	WorkDayStart string
	WorkDayEnd   string
	Timezone     string

	RedisURL       string
	WebhookBaseURL string
	WebhookToken   string

	AdminEmail    string
	AdminPassword string

	EnableDocs bool
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbUrl := getEnv("DATABASE_URL", getEnv("DB_URL", ""))
	if dbUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		DBUrl:     dbUrl,
		JWTSecret: jwtSecret,
		AppEnv:    normalizeEnv(getEnv("APP_ENV", "production")),

		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns: getEnvInt("DB_MIN_CONNS", 2),

		CalendarID:      getEnv("GOOGLE_CALENDAR_ID", "primary"),
		CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),

		SyncPastDays:   getEnvInt("SYNC_PAST_DAYS", 15),
		SyncFutureDays: getEnvInt("SYNC_FUTURE_DAYS", 30),
		SyncBatchSize:  getEnvInt("SYNC_BATCH_SIZE", 50),
		SyncInterval:   getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		WorkDayStart: getEnv("WORK_DAY_START", "08:00"),
		WorkDayEnd:   getEnv("WORK_DAY_END", "19:00"),
		Timezone:     getEnv("TIMEZONE", "Europe/Madrid"),

		RedisURL:       getEnv("REDIS_URL", ""),
		WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", ""),
		WebhookToken:   getEnv("WEBHOOK_TOKEN", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		EnableDocs: getEnvBool("ENABLE_DOCS", false),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Invalid %s=%q, using default %t", key, value, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Invalid %s=%q, using default %s", key, value, fallback)
		return fallback
	}
	return d
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// SyncWindow returns the rolling window bounds around now. Remote deletions
// are only honored for sessions starting inside this range.
func (c *Config) SyncWindow(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -c.SyncPastDays), now.AddDate(0, 0, c.SyncFutureDays)
}

// DocsEnabled gates the API reference pages to development environments.
func (c *Config) DocsEnabled() bool {
	return c != nil && c.EnableDocs && c.AppEnv == "development"
}
