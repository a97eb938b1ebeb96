// Package config loads the bridge configuration from the environment.
//
// A .env file is read first (when present) with godotenv, then every setting
// is taken from the process environment. Four settings are required:
//
//   - BASEROW_API_URL: list-rows URL template containing {table_id}
//   - BASEROW_API_TOKEN: database token, sent as "Authorization: Token <token>"
//   - BASEROW_TABLE_ID: table to export
//   - N8N_WEBHOOK_URL: workflow webhook receiving the records
//
// Everything else has a default; see Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"baserow-bridge/internal/common/errors"
	"baserow-bridge/internal/common/validation"
)

// Status match modes
const (
	MatchValue = "value"
	MatchID    = "id"
)

// Filter modes
const (
	FilterServer = "server"
	FilterClient = "client"
)

// Dispatch modes
const (
	DispatchSingle  = "single"
	DispatchBatched = "batched"
)

// Config holds every setting of a pipeline run. It is built once by Load,
// checked by Validate and then passed by value into the components.
type Config struct {
	// Source API
	BaserowAPIURL      string        `env:"BASEROW_API_URL" validate:"required,url_template"`
	BaserowAPIToken    string        `env:"BASEROW_API_TOKEN" validate:"required"`
	BaserowTableID     string        `env:"BASEROW_TABLE_ID" validate:"required"`
	PageSize           int           `env:"PAGE_SIZE" validate:"min=1,max=200"`
	PageDelay          time.Duration `env:"PAGE_DELAY" validate:"gte=0"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT" validate:"gt=0"`
	SourceMaxAttempts  int           `env:"SOURCE_MAX_ATTEMPTS" validate:"min=1"`
	InsecureSkipVerify bool          `env:"INSECURE_SKIP_VERIFY"`

	// Row selection and record building
	StatusField  string `env:"STATUS_FIELD" validate:"required"`
	TargetStatus string `env:"TARGET_STATUS" validate:"required"`
	StatusMatch  string `env:"STATUS_MATCH" validate:"oneof=value id"`
	FilterMode   string `env:"FILTER_MODE" validate:"oneof=server client"`
	// FilterType is the operator in filter__<field>__<type>. Set it to "value"
	// to send filter__<field>__value as the older export script did.
	FilterType        string `env:"FILTER_TYPE"`
	DomainField       string `env:"DOMAIN_FIELD" validate:"required"`
	EmailField        string `env:"EMAIL_FIELD"`
	OrganizationField string `env:"ORGANIZATION_FIELD"`
	StrictDomains     bool   `env:"STRICT_DOMAINS"`

	// Webhook dispatch
	N8NWebhookURL         string        `env:"N8N_WEBHOOK_URL" validate:"required,url"`
	DispatchMode          string        `env:"DISPATCH_MODE" validate:"oneof=single batched"`
	BatchSize             int           `env:"BATCH_SIZE" validate:"min=1"`
	BatchInterval         time.Duration `env:"BATCH_INTERVAL" validate:"gte=0"`
	BatchProgressInterval time.Duration `env:"BATCH_PROGRESS_INTERVAL" validate:"gte=0"`
	DispatchTimeout       time.Duration `env:"DISPATCH_TIMEOUT" validate:"gt=0"`
	CircuitBreaker        bool          `env:"WEBHOOK_CIRCUIT_BREAKER"`
	DryRun                bool          `env:"DRY_RUN"`

	// Process
	LogLevel      string `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFile       string `env:"LOG_FILE"`
	Schedule      string `env:"SCHEDULE" validate:"cron_expression"`
	ListenAddr    string `env:"LISTEN_ADDR" validate:"required"`
	HistoryDriver string `env:"HISTORY_DRIVER" validate:"oneof=sqlite3 pgx"`
	HistoryDSN    string `env:"HISTORY_DSN"`

	// Cross-process run lock, off when RedisAddr is empty
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" validate:"gte=0"`
	RunLockTTL    time.Duration `env:"RUN_LOCK_TTL" validate:"gt=0"`

	// Signing secret for API tokens; POST /runs is open when empty
	JWTSecret string `env:"JWT_SECRET" validate:"omitempty,min=16"`

	parseErrors []string
}

// LoadEnvFile reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is only an error
// when required is true.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.ConfigError(fmt.Sprintf("cannot read env file %s: %v", path, err))
	}
	if err := godotenv.Load(path); err != nil {
		return errors.ConfigError(fmt.Sprintf("cannot parse env file %s: %v", path, err))
	}
	return nil
}

// Load creates a Config from environment variables, falling back to defaults.
// Malformed numbers, durations and booleans are remembered and reported by
// Validate rather than silently replaced.
func Load() *Config {
	c := &Config{}

	c.BaserowAPIURL = getEnv("BASEROW_API_URL", "")
	c.BaserowAPIToken = getEnv("BASEROW_API_TOKEN", "")
	c.BaserowTableID = getEnv("BASEROW_TABLE_ID", "")
	c.PageSize = c.getIntEnv("PAGE_SIZE", 200)
	c.PageDelay = c.getDurationEnv("PAGE_DELAY", 500*time.Millisecond)
	c.FetchTimeout = c.getDurationEnv("FETCH_TIMEOUT", 30*time.Second)
	c.SourceMaxAttempts = c.getIntEnv("SOURCE_MAX_ATTEMPTS", 1)
	c.InsecureSkipVerify = c.getBoolEnv("INSECURE_SKIP_VERIFY", false)

	c.StatusField = getEnv("STATUS_FIELD", "field_23")
	c.TargetStatus = getEnv("TARGET_STATUS", "get monthly traffic")
	c.StatusMatch = strings.ToLower(getEnv("STATUS_MATCH", MatchValue))
	c.FilterMode = strings.ToLower(getEnv("FILTER_MODE", FilterServer))
	c.FilterType = getEnv("FILTER_TYPE", "equal")
	c.DomainField = getEnv("DOMAIN_FIELD", "field_17")
	c.EmailField = getEnv("EMAIL_FIELD", "")
	c.OrganizationField = getEnv("ORGANIZATION_FIELD", "")
	c.StrictDomains = c.getBoolEnv("STRICT_DOMAINS", true)

	c.N8NWebhookURL = getEnv("N8N_WEBHOOK_URL", "")
	c.DispatchMode = strings.ToLower(getEnv("DISPATCH_MODE", DispatchSingle))
	c.BatchSize = c.getIntEnv("BATCH_SIZE", 1000)
	c.BatchInterval = c.getDurationEnv("BATCH_INTERVAL", time.Minute)
	c.BatchProgressInterval = c.getDurationEnv("BATCH_PROGRESS_INTERVAL", 10*time.Second)
	c.DispatchTimeout = c.getDurationEnv("DISPATCH_TIMEOUT", time.Minute)
	c.CircuitBreaker = c.getBoolEnv("WEBHOOK_CIRCUIT_BREAKER", false)
	c.DryRun = c.getBoolEnv("DRY_RUN", false)

	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	c.LogFile = getEnv("LOG_FILE", "")
	c.Schedule = getEnv("SCHEDULE", "0 * * * *")
	c.ListenAddr = getEnv("LISTEN_ADDR", ":8080")
	c.HistoryDriver = getEnv("HISTORY_DRIVER", "sqlite3")
	c.HistoryDSN = getEnv("HISTORY_DSN", "")

	c.RedisAddr = getEnv("REDIS_ADDR", "")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	c.RedisDB = c.getIntEnv("REDIS_DB", 0)
	c.RunLockTTL = c.getDurationEnv("RUN_LOCK_TTL", 2*time.Minute)

	c.JWTSecret = getEnv("JWT_SECRET", "")

	return c
}

// Validate checks every setting and reports all problems at once as a
// config error.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c)
	if len(c.parseErrors) == 0 {
		return err
	}

	problems := append([]string{}, c.parseErrors...)
	if err != nil {
		problems = append(problems, err.Error())
	}
	return errors.ConfigError(fmt.Sprintf("invalid configuration: %s", strings.Join(problems, "; ")))
}

// SourceURL returns the list-rows URL with the table id substituted.
func (c *Config) SourceURL() string {
	return strings.ReplaceAll(c.BaserowAPIURL, validation.TablePlaceholder, c.BaserowTableID)
}

// ServerSideFilter reports whether the status filter is sent as a query
// parameter. Id matching targets the option id inside a single-select object,
// which the list-rows API cannot filter on, so it always filters locally.
func (c *Config) ServerSideFilter() bool {
	return c.FilterMode == FilterServer && c.StatusMatch != MatchID
}

// Batched reports whether records are dispatched in timed batches.
func (c *Config) Batched() bool {
	return c.DispatchMode == DispatchBatched
}

// HistoryEnabled reports whether run summaries are persisted.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDSN != ""
}

// RunLockEnabled reports whether runs take a Redis lock.
func (c *Config) RunLockEnabled() bool {
	return c.RedisAddr != ""
}

// APIAuthEnabled reports whether POST /runs requires a bearer token.
func (c *Config) APIAuthEnabled() bool {
	return c.JWTSecret != ""
}

// RunLockKey is the Redis key guarding runs against this table.
func (c *Config) RunLockKey() string {
	return "baserow-bridge:run:" + c.BaserowTableID
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) getIntEnv(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getBoolEnv(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a boolean, got %q", key, value))
		return defaultValue
	}
	return parsed
}

// getDurationEnv accepts Go durations ("90s", "1m30s") and bare integers,
// which are read as seconds.
func (c *Config) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a duration, got %q", key, value))
		return defaultValue
	}
	return parsed
}
