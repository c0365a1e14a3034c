package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"influnest/internal/retry"
)

// Storage and ledger backends
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	// PostgreSQL connection string, required by the postgres drivers
	DatabaseURL string

	// Campaign store and value ledger backends (postgres | memory)
	StoreDriver  string
	LedgerDriver string

	// HTTP API port
	APIPort string

	// debug | info | warn | error
	LogLevel string

	// Read cache, disabled when empty
	RedisURL string
	CacheTTL time.Duration

	// Event stream, disabled when no brokers are set
	KafkaBrokers []string
	KafkaTopic   string

	// Accepted distance between a signed request timestamp and the server clock
	AuthMaxClockSkew time.Duration

	// Batch metric report pipeline
	PipelineWorkerCount int
	PipelineBufferSize  int

	// Retry policy for infrastructure side effects
	Retry retry.Config
}

// Load reads the configuration from environment variables. Call
// godotenv.Load first to pick up a .env file.
func Load() *Config {
	return &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		LedgerDriver: strings.ToLower(getEnv("LEDGER_DRIVER", DriverPostgres)),
		APIPort:      getEnv("API_PORT", "2112"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),

		RedisURL: getEnv("REDIS_URL", ""),
		CacheTTL: time.Duration(getEnvAsInt("CACHE_TTL_SEC", 30)) * time.Second,

		KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "influnest.campaign-events"),

		AuthMaxClockSkew: time.Duration(getEnvAsInt("AUTH_MAX_CLOCK_SKEW_SEC", 300)) * time.Second,

		PipelineWorkerCount: getEnvAsInt("PIPELINE_WORKER_COUNT", 4),
		PipelineBufferSize:  getEnvAsInt("PIPELINE_BUFFER_SIZE", 64),

		Retry: retry.Config{
			Enabled:      getEnvAsBool("RETRY_ENABLED", true),
			MaxRetries:   getEnvAsInt("RETRY_MAX_RETRIES", 5),
			InitialDelay: time.Duration(getEnvAsInt("RETRY_INITIAL_DELAY_SEC", 1)) * time.Second,
			MaxDelay:     time.Duration(getEnvAsInt("RETRY_MAX_DELAY_SEC", 30)) * time.Second,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for name, driver := range map[string]string{"STORE_DRIVER": c.StoreDriver, "LEDGER_DRIVER": c.LedgerDriver} {
		if driver != DriverPostgres && driver != DriverMemory {
			return fmt.Errorf("%s must be %q or %q, got %q", name, DriverPostgres, DriverMemory, driver)
		}
	}
	// A memory transfer cannot roll back with a failed campaign update, so a
	// retried payout would be paid twice.
	if c.StoreDriver == DriverPostgres && c.LedgerDriver == DriverMemory {
		return fmt.Errorf("LEDGER_DRIVER=memory cannot back STORE_DRIVER=postgres, transfers must commit in the campaign transaction")
	}
	if c.NeedsDatabase() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	if c.APIPort == "" {
		return fmt.Errorf("API_PORT is required")
	}
	if c.PipelineWorkerCount < 1 {
		return fmt.Errorf("PIPELINE_WORKER_COUNT must be at least 1")
	}
	if c.PipelineBufferSize < 1 {
		return fmt.Errorf("PIPELINE_BUFFER_SIZE must be at least 1")
	}
	if c.AuthMaxClockSkew <= 0 {
		return fmt.Errorf("AUTH_MAX_CLOCK_SKEW_SEC must be positive")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// NeedsDatabase reports whether any backend uses PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.StoreDriver == DriverPostgres || c.LedgerDriver == DriverPostgres
}

// SlogLevel maps LogLevel to a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper: get string from env
func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// Helper: get bool from env
func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// Helper: get int from env
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// Helper: get comma separated list from env
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
