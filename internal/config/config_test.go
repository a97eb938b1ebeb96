package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baserow-bridge/internal/common/errors"
)

var allKeys = []string{
	"BASEROW_API_URL", "BASEROW_API_TOKEN", "BASEROW_TABLE_ID", "N8N_WEBHOOK_URL",
	"PAGE_SIZE", "PAGE_DELAY", "FETCH_TIMEOUT", "SOURCE_MAX_ATTEMPTS", "INSECURE_SKIP_VERIFY",
	"STATUS_FIELD", "TARGET_STATUS", "STATUS_MATCH", "FILTER_MODE", "FILTER_TYPE",
	"DOMAIN_FIELD", "EMAIL_FIELD", "ORGANIZATION_FIELD", "STRICT_DOMAINS",
	"DISPATCH_MODE", "BATCH_SIZE", "BATCH_INTERVAL", "BATCH_PROGRESS_INTERVAL",
	"DISPATCH_TIMEOUT", "WEBHOOK_CIRCUIT_BREAKER", "DRY_RUN",
	"LOG_LEVEL", "LOG_FILE", "SCHEDULE", "LISTEN_ADDR", "HISTORY_DRIVER", "HISTORY_DSN",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RUN_LOCK_TTL", "JWT_SECRET",
}

func clearTestEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BASEROW_API_URL", "https://api.baserow.io/api/database/rows/table/{table_id}/")
	t.Setenv("BASEROW_API_TOKEN", "tok")
	t.Setenv("BASEROW_TABLE_ID", "4242")
	t.Setenv("N8N_WEBHOOK_URL", "https://n8n.example.com/webhook/domains")
}

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars(t)

	c := Load()

	assert.Equal(t, 200, c.PageSize)
	assert.Equal(t, 500*time.Millisecond, c.PageDelay)
	assert.Equal(t, 30*time.Second, c.FetchTimeout)
	assert.Equal(t, 1, c.SourceMaxAttempts)
	assert.Equal(t, "field_23", c.StatusField)
	assert.Equal(t, "get monthly traffic", c.TargetStatus)
	assert.Equal(t, MatchValue, c.StatusMatch)
	assert.Equal(t, FilterServer, c.FilterMode)
	assert.Equal(t, "equal", c.FilterType)
	assert.Equal(t, "field_17", c.DomainField)
	assert.True(t, c.StrictDomains)
	assert.Equal(t, DispatchSingle, c.DispatchMode)
	assert.Equal(t, 1000, c.BatchSize)
	assert.Equal(t, time.Minute, c.BatchInterval)
	assert.Equal(t, 10*time.Second, c.BatchProgressInterval)
	assert.Equal(t, time.Minute, c.DispatchTimeout)
	assert.False(t, c.CircuitBreaker)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "0 * * * *", c.Schedule)
	assert.Equal(t, ":8080", c.ListenAddr)
	assert.Equal(t, "sqlite3", c.HistoryDriver)
	assert.False(t, c.HistoryEnabled())
	assert.False(t, c.RunLockEnabled())
	assert.Equal(t, 2*time.Minute, c.RunLockTTL)
}

func TestValidate_MissingRequired(t *testing.T) {
	clearTestEnvVars(t)

	err := Load().Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	for _, key := range []string{"BASEROW_API_URL", "BASEROW_API_TOKEN", "BASEROW_TABLE_ID", "N8N_WEBHOOK_URL"} {
		assert.Contains(t, err.Error(), key+" is required")
	}
}

func TestValidate_Valid(t *testing.T) {
	clearTestEnvVars(t)
	setRequired(t)

	c := Load()
	require.NoError(t, c.Validate())
	assert.Equal(t, "https://api.baserow.io/api/database/rows/table/4242/", c.SourceURL())
	assert.True(t, c.ServerSideFilter())
	assert.False(t, c.Batched())
}

func TestLoad_Overrides(t *testing.T) {
	clearTestEnvVars(t)
	setRequired(t)
	t.Setenv("DISPATCH_MODE", "BATCHED")
	t.Setenv("BATCH_SIZE", "250")
	t.Setenv("BATCH_INTERVAL", "90")
	t.Setenv("PAGE_DELAY", "1.5s")
	t.Setenv("STATUS_MATCH", "id")
	t.Setenv("TARGET_STATUS", "3021")
	t.Setenv("FILTER_MODE", "client")
	t.Setenv("STRICT_DOMAINS", "false")
	t.Setenv("HISTORY_DSN", "file:history.db")

	c := Load()
	require.NoError(t, c.Validate())

	assert.True(t, c.Batched())
	assert.Equal(t, 250, c.BatchSize)
	assert.Equal(t, 90*time.Second, c.BatchInterval)
	assert.Equal(t, 1500*time.Millisecond, c.PageDelay)
	assert.Equal(t, MatchID, c.StatusMatch)
	assert.False(t, c.ServerSideFilter())
	assert.False(t, c.StrictDomains)
	assert.True(t, c.HistoryEnabled())
}

func TestValidate_MalformedValues(t *testing.T) {
	clearTestEnvVars(t)
	setRequired(t)
	t.Setenv("BATCH_SIZE", "lots")
	t.Setenv("PAGE_DELAY", "soon")
	t.Setenv("DRY_RUN", "maybe")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE must be an integer")
	assert.Contains(t, err.Error(), "PAGE_DELAY must be a duration")
	assert.Contains(t, err.Error(), "DRY_RUN must be a boolean")
}

func TestValidate_OutOfRange(t *testing.T) {
	clearTestEnvVars(t)
	setRequired(t)
	t.Setenv("PAGE_SIZE", "500")
	t.Setenv("DISPATCH_MODE", "stream")
	t.Setenv("BASEROW_API_URL", "https://api.baserow.io/api/database/rows/table/1/")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE must be at most 200")
	assert.Contains(t, err.Error(), "DISPATCH_MODE must be one of")
	assert.Contains(t, err.Error(), "{table_id}")
}

func TestServerSideFilter(t *testing.T) {
	tests := []struct {
		mode, match string
		want        bool
	}{
		{FilterServer, MatchValue, true},
		{FilterServer, MatchID, false},
		{FilterClient, MatchValue, false},
		{FilterClient, MatchID, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.match, func(t *testing.T) {
			c := &Config{FilterMode: tt.mode, StatusMatch: tt.match}
			assert.Equal(t, tt.want, c.ServerSideFilter())
		})
	}
}

func TestLoad_RunLock(t *testing.T) {
	clearTestEnvVars(t)
	setRequired(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RUN_LOCK_TTL", "30s")

	c := Load()
	require.NoError(t, c.Validate())
	assert.True(t, c.RunLockEnabled())
	assert.Equal(t, 3, c.RedisDB)
	assert.Equal(t, 30*time.Second, c.RunLockTTL)
	assert.Equal(t, "baserow-bridge:run:4242", c.RunLockKey())
}

func TestLoad_JWTSecret(t *testing.T) {
	clearTestEnvVars(t)
	setRequired(t)

	c := Load()
	require.NoError(t, c.Validate())
	assert.False(t, c.APIAuthEnabled())

	t.Setenv("JWT_SECRET", "short")
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be at least 16")

	t.Setenv("JWT_SECRET", "a-long-enough-signing-secret")
	c = Load()
	require.NoError(t, c.Validate())
	assert.True(t, c.APIAuthEnabled())
}

func TestLoadEnvFile(t *testing.T) {
	clearTestEnvVars(t)

	path := filepath.Join(t.TempDir(), "bridge.env")
	require.NoError(t, os.WriteFile(path, []byte("BASEROW_TABLE_ID=777\nBATCH_SIZE=5\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BATCH_SIZE") })

	// BASEROW_TABLE_ID is set (to "") by clearTestEnvVars, so godotenv keeps it.
	os.Unsetenv("BASEROW_TABLE_ID")
	t.Cleanup(func() { os.Unsetenv("BASEROW_TABLE_ID") })
	os.Unsetenv("BATCH_SIZE")

	require.NoError(t, LoadEnvFile(path, true))

	c := Load()
	assert.Equal(t, "777", c.BaserowTableID)
	assert.Equal(t, 5, c.BatchSize)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.env")
	assert.NoError(t, LoadEnvFile(missing, false))

	err := LoadEnvFile(missing, true)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}
