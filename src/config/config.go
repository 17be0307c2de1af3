package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Paperless settings
	PaperlessBaseURL string
	PaperlessToken   string
	PaperlessTimeout time.Duration
	PaperlessRPS     float64
	PoolTagName      string

	// Sync settings
	SyncPageSize     int
	SyncLookbackDays int
	SyncWorkers      int

	// Scheduler settings
	SchedulerEnabled         bool
	SchedulerIntervalMinutes int
	SchedulerRunOnStartup    bool

	// Extraction
	ExtractionPolicyPath string

	// HTTP
	CORSAllowedOrigins []string
	SummaryCacheTTL    time.Duration
	MaxUploadSizeBytes int64
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// ErrInvalidConfig wraps every problem reported by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = FromEnv()

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Paperless=%s, PoolTag=%s, Scheduler=%t/%dm",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.PaperlessBaseURL, Cfg.PoolTagName,
		Cfg.SchedulerEnabled, Cfg.SchedulerIntervalMinutes)
}

// FromEnv builds a config from the current environment without touching .env files.
func FromEnv() *AppConfig {
	return &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./poolcosts.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		PaperlessBaseURL: strings.TrimRight(getEnv("PAPERLESS_BASE_URL", "http://localhost:8000"), "/"),
		PaperlessToken:   getSecretEnv("PAPERLESS_TOKEN"),
		PaperlessTimeout: getEnvAsDuration("PAPERLESS_TIMEOUT", 30*time.Second),
		PaperlessRPS:     getEnvAsFloat("PAPERLESS_RPS", 5),
		PoolTagName:      getEnv("POOL_TAG_NAME", "Pool"),

		SyncPageSize:     getEnvAsInt("SYNC_PAGE_SIZE", 100),
		SyncLookbackDays: getEnvAsInt("SYNC_LOOKBACK_DAYS", 0),
		SyncWorkers:      getEnvAsInt("SYNC_WORKERS", 4),

		SchedulerEnabled:         getEnvAsBool("SCHEDULER_ENABLED", false),
		SchedulerIntervalMinutes: getEnvAsInt("SCHEDULER_INTERVAL_MINUTES", 360),
		SchedulerRunOnStartup:    getEnvAsBool("SCHEDULER_RUN_ON_STARTUP", true),

		ExtractionPolicyPath: getEnv("EXTRACTION_POLICY_PATH", ""),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8501"),
		SummaryCacheTTL:    getEnvAsDuration("SUMMARY_CACHE_TTL", 15*time.Minute),
		MaxUploadSizeBytes: int64(getEnvAsInt("MAX_UPLOAD_SIZE_BYTES", 2*1024*1024)),
	}
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var problems []string
	if _, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("PORT %q is not a number", c.Port))
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		problems = append(problems, "DATABASE_PATH is empty")
	}
	if u, err := url.Parse(c.PaperlessBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("PAPERLESS_BASE_URL %q is not an absolute URL", c.PaperlessBaseURL))
	}
	if strings.TrimSpace(c.PoolTagName) == "" {
		problems = append(problems, "POOL_TAG_NAME is empty")
	}
	if c.SyncPageSize < 1 || c.SyncPageSize > 1000 {
		problems = append(problems, fmt.Sprintf("SYNC_PAGE_SIZE %d must be between 1 and 1000", c.SyncPageSize))
	}
	if c.SyncLookbackDays < 0 {
		problems = append(problems, "SYNC_LOOKBACK_DAYS must not be negative")
	}
	if c.SyncWorkers < 1 {
		problems = append(problems, "SYNC_WORKERS must be at least 1")
	}
	if c.PaperlessRPS <= 0 {
		problems = append(problems, "PAPERLESS_RPS must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SchedulerInterval is the sync interval, never shorter than one minute.
func (c *AppConfig) SchedulerInterval() time.Duration {
	minutes := c.SchedulerIntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getSecretEnv retrieves a secret without ever logging its value.
func getSecretEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Printf("WARNING: %s is not set. Paperless requests will be unauthenticated.", key)
		return ""
	}
	return strings.TrimSpace(value)
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

// getEnvAsBool accepts the usual spellings (1/0, true/false, yes/no, on/off).
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	switch valueStr {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getList retrieves and parses a comma-separated list.
func getList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	if raw == "" {
		return []string{}
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
