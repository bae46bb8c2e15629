// Package config loads server configuration from the environment, an
// optional .env file and command-line flags, in increasing precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Persistence
	StoreDriver string
	DataDir     string
	SQLitePath  string
	StateName   string

	// Startup
	ImportFile       string
	AutosaveInterval time.Duration
}

// Load reads .env (if present) and the environment, then applies flags
// parsed from args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StoreDriver:      getEnv("STORE_DRIVER", DriverFile),
		DataDir:          getEnv("DATA_DIR", "./data"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/warehouse.db"),
		StateName:        getEnv("STATE_NAME", "warehouse"),
		ImportFile:       getEnv("IMPORT_FILE", ""),
		AutosaveInterval: getEnvAsDuration("AUTOSAVE_INTERVAL", time.Minute),
	}

	fs := flag.NewFlagSet("warehouse", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.Environment, "env", cfg.Environment, "environment (development, production)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "snapshot store: file, sqlite or memory")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "snapshot directory for the file store")
	fs.StringVar(&cfg.SQLitePath, "db", cfg.SQLitePath, "database path for the sqlite store")
	fs.StringVar(&cfg.StateName, "state", cfg.StateName, "snapshot name loaded at startup")
	fs.StringVar(&cfg.ImportFile, "import", cfg.ImportFile, "text file imported at startup")
	fs.DurationVar(&cfg.AutosaveInterval, "autosave", cfg.AutosaveInterval, "autosave interval, 0 disables")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverFile, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.StateName == "" {
		return fmt.Errorf("state name must not be empty")
	}
	if c.AutosaveInterval < 0 {
		return fmt.Errorf("negative autosave interval %s", c.AutosaveInterval)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

// getEnvAsDuration accepts Go durations ("90s") or whole seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return time.Duration(getEnvAsInt(key, int(defaultValue/time.Second))) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
