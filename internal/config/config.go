package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"kpidash/internal/log"
)

// Data sources for the dataset a new session starts with.
const (
	SourceSynthetic = "synthetic"
	SourceFile      = "file"
	SourceSheets    = "sheets"
)

// Baseline modes.
const (
	BaselinePerturbation = "perturbation"
	BaselineHistory      = "history"
)

type Config struct {
	// HTTP Server
	Port           string
	MaxUploadBytes int64

	// Logging
	LogLevel  string
	LogFormat string

	// Initial dataset
	DataSource          string
	DataDir             string
	DatasetPath         string
	GoogleSpreadsheetID string
	GoogleSheetRange    string

	// Baselines
	BaselineMode  string
	HistoryDBPath string
	HistoryLabel  string
	RandomSeed    uint64

	// Sessions
	SessionTTL       time.Duration
	MaxSessions      int
	SummaryCacheSize int

	// AMQP (empty URL publishes reports to the log only)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reports
	ReportSchedule bool

	// Dashboard defaults file; empty means XDG lookup
	PreferencesFile string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataSource:          getEnv("DATA_SOURCE", SourceSynthetic),
		DataDir:             getEnv("DATA_DIR", "./data"),
		DatasetPath:         getEnv("DATASET_PATH", ""),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:    getEnv("GOOGLE_SHEET_RANGE", "Data!A:Z"),

		BaselineMode:  getEnv("BASELINE_MODE", BaselinePerturbation),
		HistoryDBPath: getEnv("HISTORY_DB_PATH", "./data/history.db"),
		HistoryLabel:  getEnv("HISTORY_LABEL", ""),
		RandomSeed:    getEnvUint("RANDOM_SEED", 0),

		SessionTTL:       getEnvDuration("SESSION_TTL", 2*time.Hour),
		MaxSessions:      getEnvInt("MAX_SESSIONS", 1000),
		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 1000),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kpidash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "kpi_reports"),

		ReportSchedule: getEnvBool("REPORT_SCHEDULE", false),

		PreferencesFile: getEnv("PREFERENCES_FILE", ""),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	validSources := []string{SourceSynthetic, SourceFile, SourceSheets}
	if !slices.Contains(validSources, c.DataSource) {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}
	switch c.DataSource {
	case SourceFile:
		if c.DatasetPath == "" {
			errors = append(errors, "DATASET_PATH is required when using file data source")
		} else if _, err := os.Stat(c.DatasetPath); err != nil {
			errors = append(errors, fmt.Sprintf("dataset file not readable: %v", err))
		}
	case SourceSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets data source")
		}
		if c.GoogleSheetRange == "" {
			errors = append(errors, "Google sheet range is required when using sheets data source")
		}
	}

	validModes := []string{BaselinePerturbation, BaselineHistory}
	if !slices.Contains(validModes, c.BaselineMode) {
		errors = append(errors, fmt.Sprintf("invalid baseline mode '%s': must be one of %v", c.BaselineMode, validModes))
	}
	if c.BaselineMode == BaselineHistory {
		if c.HistoryDBPath == "" {
			errors = append(errors, "history database path cannot be empty when using history baselines")
		} else if dir := filepath.Dir(c.HistoryDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create history database directory '%s': %v", dir, err))
			}
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	} else if c.SessionTTL > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at most 7 days", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}
	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
