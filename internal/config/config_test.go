package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickup_collector/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_CLICKUP_TOKEN", "pk_123")
	path := writeConfig(t, `
database:
  host: db.internal
  user: collector
  dbname: clickup
clickup:
  api_token: ${TEST_CLICKUP_TOKEN}
sync:
  list_id: "901"
  include_archived: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pk_123", cfg.ClickUp.APIToken)
	assert.Equal(t, "https://api.clickup.com/api/v2", cfg.ClickUp.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.ClickUp.Timeout)
	assert.Equal(t, 3, cfg.ClickUp.Retry.MaxAttempts)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "IsParent", cfg.Fields.ParentField)
	assert.Equal(t, "Parent", cfg.Fields.ParentLabel)
	assert.Equal(t, "CLIENT 2025", cfg.Fields.ClientField)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "@every 1h", cfg.Sync.Schedule)
	assert.Equal(t, "901", cfg.Sync.ListID)
	assert.True(t, cfg.Sync.IncludeArchived)
	assert.Equal(t, []int{1, 2, 3}, cfg.Sync.AllowedRoles)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_KeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
clickup:
  api_token: tok
  timeout: 5s
  retry:
    max_attempts: 1
fields:
  client_field: Klient
rabbitmq:
  enabled: true
  exchange: events
sync:
  schedule: "0 6 * * *"
  allowed_roles: [1, 2]
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.ClickUp.Timeout)
	assert.Equal(t, 1, cfg.ClickUp.Retry.MaxAttempts)
	assert.Equal(t, "Klient", cfg.Fields.ClientField)
	assert.True(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "events", cfg.RabbitMQ.Exchange)
	assert.Equal(t, "0 6 * * *", cfg.Sync.Schedule)
	assert.Equal(t, []int{1, 2}, cfg.Sync.AllowedRoles)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "clickup: [unterminated"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestValidate_MissingToken(t *testing.T) {
	path := writeConfig(t, "database:\n  dbname: clickup\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "clickup.api_token")
}

func TestValidateDatabase_IgnoresToken(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  dbname: clickup\n"))
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateDatabase())

	cfg.Database.DBName = ""
	assert.True(t, errors.Is(cfg.ValidateDatabase(), domain.ErrConfiguration))
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", DBName: "n", SSLMode: "require"}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=n sslmode=require", d.DSN())
}
