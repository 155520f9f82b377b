package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys double as environment variable names once upper-cased.
const (
	KeyPort                     = "port"
	KeyDataBackend              = "data_backend"
	KeySQLiteDBPath             = "sqlite_db_path"
	KeyDataDirectory            = "data_directory"
	KeyLogLevel                 = "log_level"
	KeyLogFormat                = "log_format"
	KeyAMQPURL                  = "amqp_url"
	KeyAMQPExchange             = "amqp_exchange"
	KeyAMQPQueue                = "amqp_queue"
	KeyGoogleSpreadsheetID      = "google_spreadsheet_id"
	KeyGoogleSheetName          = "google_sheet_name"
	KeyGoogleServiceAccountFile = "google_service_account_file"
	KeyGoogleServiceAccountJSON = "google_service_account_json"
	KeyCORSAllowedOrigin        = "cors_allowed_origin"
	KeyRateLimitPerMinute       = "rate_limit_per_minute"
	KeyTrustedProxies           = "trusted_proxies"
	KeyReadTimeout              = "read_timeout"
	KeyWriteTimeout             = "write_timeout"
	KeyShutdownTimeout          = "shutdown_timeout"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port               string
	CORSAllowedOrigin  string
	RateLimitPerMinute int
	TrustedProxies     []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration

	// Storage
	DataBackend   string
	SQLiteDBPath  string
	DataDirectory string

	// Logging
	LogLevel  string
	LogFormat string

	// AMQP (optional: empty URL disables ledger events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// New returns a viper instance with every default set and environment
// lookup enabled. Command-line flags bind into the same instance.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyDataBackend, BackendSQLite)
	v.SetDefault(KeySQLiteDBPath, "./data/fintrack.db")
	v.SetDefault(KeyDataDirectory, "data")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyAMQPURL, "")
	v.SetDefault(KeyAMQPExchange, "fintrack")
	v.SetDefault(KeyAMQPQueue, "ledger_events")
	v.SetDefault(KeyGoogleSpreadsheetID, "")
	v.SetDefault(KeyGoogleSheetName, "Transactions")
	v.SetDefault(KeyGoogleServiceAccountFile, "")
	v.SetDefault(KeyGoogleServiceAccountJSON, "")
	v.SetDefault(KeyCORSAllowedOrigin, "")
	v.SetDefault(KeyRateLimitPerMinute, 60)
	v.SetDefault(KeyTrustedProxies, "")
	v.SetDefault(KeyReadTimeout, 10*time.Second)
	v.SetDefault(KeyWriteTimeout, 10*time.Second)
	v.SetDefault(KeyShutdownTimeout, 30*time.Second)

	v.AutomaticEnv()
	return v
}

// Load reads configuration from the environment.
func Load() *Config {
	return LoadFrom(New())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) *Config {
	return &Config{
		Port:               v.GetString(KeyPort),
		CORSAllowedOrigin:  v.GetString(KeyCORSAllowedOrigin),
		RateLimitPerMinute: v.GetInt(KeyRateLimitPerMinute),
		TrustedProxies:     splitList(v.GetString(KeyTrustedProxies)),
		ReadTimeout:        v.GetDuration(KeyReadTimeout),
		WriteTimeout:       v.GetDuration(KeyWriteTimeout),
		ShutdownTimeout:    v.GetDuration(KeyShutdownTimeout),

		DataBackend:   strings.ToLower(strings.TrimSpace(v.GetString(KeyDataBackend))),
		SQLiteDBPath:  v.GetString(KeySQLiteDBPath),
		DataDirectory: v.GetString(KeyDataDirectory),

		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),

		AMQPURL:      v.GetString(KeyAMQPURL),
		AMQPExchange: v.GetString(KeyAMQPExchange),
		AMQPQueue:    v.GetString(KeyAMQPQueue),

		GoogleSpreadsheetID:      v.GetString(KeyGoogleSpreadsheetID),
		GoogleSheetName:          v.GetString(KeyGoogleSheetName),
		GoogleServiceAccountFile: v.GetString(KeyGoogleServiceAccountFile),
		GoogleServiceAccountJSON: v.GetString(KeyGoogleServiceAccountJSON),
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// EventsEnabled reports whether ledger events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendMemory, BackendSQLite))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
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

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	for name, d := range map[string]time.Duration{
		"read timeout":     c.ReadTimeout,
		"write timeout":    c.WriteTimeout,
		"shutdown timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be positive", name, d))
		}
	}

	if c.CORSAllowedOrigin != "" && c.CORSAllowedOrigin != "*" {
		if u, err := url.Parse(c.CORSAllowedOrigin); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid CORS origin '%s': must be '*' or scheme://host[:port]", c.CORSAllowedOrigin))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateSheets checks the settings the spreadsheet exporter needs.
func (c *Config) ValidateSheets() error {
	var errors []string

	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the sheets exporter")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for the sheets exporter")
	}

	hasFile := c.GoogleServiceAccountFile != ""
	hasJSON := c.GoogleServiceAccountJSON != ""
	if !hasFile && !hasJSON {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets exporter")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker to receive ledger events")
	}
	if c.DataBackend != BackendSQLite {
		errors = append(errors, "the worker reads transactions from SQLite: DATA_BACKEND must be sqlite")
	}

	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
