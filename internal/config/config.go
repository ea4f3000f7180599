package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"tidyframe/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Session   SessionConfig
	Storage   StorageConfig
	Display   DisplayConfig
	Query     QueryConfig
	Profiling ProfilingConfig
	LogLevel  string
}

// DatabaseConfig holds database connection settings. An empty URL keeps saved-session
// metadata in memory; a sqlite:// URL stores it in a local SQLite file.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Database drivers selected by the DATABASE_URL scheme
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const sqliteScheme = "sqlite://"

// Driver returns DriverSQLite for sqlite:// URLs and DriverPostgres otherwise
func (d DatabaseConfig) Driver() string {
	if strings.HasPrefix(d.URL, sqliteScheme) {
		return DriverSQLite
	}
	return DriverPostgres
}

// DSN returns the connection string handed to the driver, e.g. the file path for sqlite
func (d DatabaseConfig) DSN() string {
	if d.Driver() == DriverSQLite {
		return strings.TrimPrefix(d.URL, sqliteScheme)
	}
	return d.URL
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port           string
	GinMode        string
	UploadMaxMB    int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SessionCookie  string
	CookieSecure   bool
	AllowedOrigins string
}

// SessionConfig controls session lifetime and undo depth
type SessionConfig struct {
	TTL             time.Duration
	JanitorInterval time.Duration
	HistoryDepth    int
}

// StorageConfig holds where saved sessions are written
type StorageConfig struct {
	SavedDir       string
	SavedRetention time.Duration
}

// DisplayConfig bounds what the table and statistics views return
type DisplayConfig struct {
	MaxRows         int
	StatsSampleCap  int
	SuggestionLimit int
}

// QueryConfig controls loading datasets from client-supplied SQL queries
type QueryConfig struct {
	Enabled bool
	Timeout time.Duration
	MaxRows int
}

// ProfilingConfig holds the ops router settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Session:   *loadSessionConfig(),
		Storage:   *loadStorageConfig(),
		Display:   *loadDisplayConfig(),
		Query:     *loadQueryConfig(),
		Profiling: *loadProfilingConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:           getEnvOrDefault("PORT", "8080"),
		GinMode:        getEnvOrDefault("GIN_MODE", "debug"),
		UploadMaxMB:    int64(getEnvIntOrDefault("UPLOAD_MAX_MB", 50)),
		ReadTimeout:    getEnvDurationOrDefault("HTTP_READ_TIMEOUT", 60*time.Second),
		WriteTimeout:   getEnvDurationOrDefault("HTTP_WRITE_TIMEOUT", 5*time.Minute),
		SessionCookie:  getEnvOrDefault("SESSION_COOKIE", "tidyframe_session"),
		CookieSecure:   getEnvBoolOrDefault("COOKIE_SECURE", false),
		AllowedOrigins: getEnvOrDefault("ALLOWED_ORIGINS", ""),
	}
}

func loadSessionConfig() *SessionConfig {
	return &SessionConfig{
		TTL:             getEnvDurationOrDefault("SESSION_TTL", 2*time.Hour),
		JanitorInterval: getEnvDurationOrDefault("SESSION_JANITOR_INTERVAL", 5*time.Minute),
		HistoryDepth:    getEnvIntOrDefault("HISTORY_DEPTH", 10),
	}
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		SavedDir:       getEnvOrDefault("SAVED_DIR", "./saved_sessions"),
		SavedRetention: getEnvDurationOrDefault("SAVED_RETENTION", 0),
	}
}

func loadDisplayConfig() *DisplayConfig {
	return &DisplayConfig{
		MaxRows:         getEnvIntOrDefault("DISPLAY_MAX_ROWS", 999),
		StatsSampleCap:  getEnvIntOrDefault("STATS_SAMPLE_CAP", 50),
		SuggestionLimit: getEnvIntOrDefault("SUGGESTION_LIMIT", 15),
	}
}

func loadQueryConfig() *QueryConfig {
	return &QueryConfig{
		Enabled: getEnvBoolOrDefault("DATABASE_QUERY_ENABLED", true),
		Timeout: getEnvDurationOrDefault("QUERY_TIMEOUT", 30*time.Second),
		MaxRows: getEnvIntOrDefault("QUERY_MAX_ROWS", 1000000),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("OPS_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", true),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Server.UploadMaxMB <= 0 {
		return errors.ConfigInvalid("UPLOAD_MAX_MB must be positive")
	}
	if config.Session.HistoryDepth < 1 {
		return errors.ConfigInvalid("HISTORY_DEPTH must be at least 1")
	}
	if config.Storage.SavedDir == "" {
		return errors.ConfigInvalid("SAVED_DIR is required")
	}
	if config.Display.MaxRows < 1 {
		return errors.ConfigInvalid("DISPLAY_MAX_ROWS must be at least 1")
	}
	if config.Query.Enabled && config.Query.MaxRows < 1 {
		return errors.ConfigInvalid("QUERY_MAX_ROWS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
