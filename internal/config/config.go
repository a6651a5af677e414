package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the client-side application configuration.
type Config struct {
	APIBaseURL  string
	ConfigDir   string // Session and submission history live here
	HistoryPath string
	LogLevel    string
	HTTPTimeout time.Duration // Zero means no client-side timeout
}

// StubConfig holds the embedded scoring server configuration.
type StubConfig struct {
	Port          int
	DatabasePath  string
	TruthPath     string // Ground-truth CSV the scorer grades against
	JWTSecret     string
	MaxDaily      int
	ResetSchedule string // Cron expression for the daily quota reset
}

// Load loads configuration from a .env file (if present) and environment
// variables, falling back to defaults.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments configure the environment directly.
	_ = godotenv.Load()

	dir := getEnv("DATATHON_CONFIG_DIR", "")
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "datathon")
	}

	timeout, err := getEnvDuration("DATATHON_HTTP_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		APIBaseURL:  getEnv("DATATHON_API_URL", "http://localhost:8089"),
		ConfigDir:   dir,
		HistoryPath: getEnv("DATATHON_HISTORY_PATH", filepath.Join(dir, "history.db")),
		LogLevel:    getEnv("DATATHON_LOG_LEVEL", "warn"),
		HTTPTimeout: timeout,
	}, nil
}

// LoadStub loads the stub server configuration.
func LoadStub() (*StubConfig, error) {
	_ = godotenv.Load()

	portStr := getEnv("STUB_PORT", "8089")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	maxStr := getEnv("STUB_MAX_DAILY_SUBMISSIONS", "5")
	maxDaily, err := strconv.Atoi(maxStr)
	if err != nil {
		return nil, err
	}

	return &StubConfig{
		Port:          port,
		DatabasePath:  getEnv("STUB_DATABASE_PATH", "./datathon.db"),
		TruthPath:     getEnv("STUB_TRUTH_PATH", "./truth.csv"),
		JWTSecret:     getEnv("STUB_JWT_SECRET", "dev-secret-do-not-use-in-prod"),
		MaxDaily:      maxDaily,
		ResetSchedule: getEnv("STUB_RESET_SCHEDULE", "0 0 * * *"),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
