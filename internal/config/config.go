package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Remote row store (spreadsheet web app)
	SheetsEndpoint string
	SheetsTimeout  time.Duration

	// Clinic calendar and mutation timing
	ClinicTimezone  string
	ConfirmDelay    time.Duration
	MutationTimeout time.Duration

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Optional cross-instance queue lock
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	QueueLockTTL  time.Duration

	// Optional mutation journal + access audit
	DatabaseURL    string
	VerifyInterval time.Duration

	// Assistant
	GeminiAPIKey  string
	GeminiModelID string

	BoardPingInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		SheetsEndpoint:     strings.TrimSpace(getEnv("SHEETS_ENDPOINT", "")),
		SheetsTimeout:      getEnvAsDuration("SHEETS_TIMEOUT", 20*time.Second),
		ClinicTimezone:     getEnv("CLINIC_TIMEZONE", "Local"),
		ConfirmDelay:       getEnvAsDuration("CONFIRM_DELAY", 500*time.Millisecond),
		MutationTimeout:    getEnvAsDuration("MUTATION_TIMEOUT", 45*time.Second),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 12*time.Hour),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		QueueLockTTL:       getEnvAsDuration("QUEUE_LOCK_TTL", 15*time.Second),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		VerifyInterval:     getEnvAsDuration("VERIFY_INTERVAL", time.Minute),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:      getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BoardPingInterval:  getEnvAsDuration("BOARD_PING_INTERVAL", 30*time.Second),
	}
}

// Location resolves ClinicTimezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.ClinicTimezone == "" || strings.EqualFold(c.ClinicTimezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
