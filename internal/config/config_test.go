package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/kanban-api", cfg.Kanban.BasePath)
	assert.Equal(t, time.Hour, cfg.Kanban.TokenTTLDuration())
	assert.Equal(t, 3, cfg.ERP.MaxAttempts)
	assert.Equal(t, "memory", cfg.Worker.QueueBackend)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollIntervalDuration())
	assert.Equal(t, "0 5 0 * * *", cfg.Jobs.OverdueCron)
	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 120, cfg.RateLimit.WritesPerMinute)
}

func TestLoad_ServiceKeysFromEnvironment(t *testing.T) {
	t.Setenv("KANBAN_SERVICE_TOKEN", "inbound")
	t.Setenv("SECRET_KEY", "signing")
	t.Setenv("KANBAN_ALLOWED_HOSTS", "kanban.local, api.local ,")
	t.Setenv("ERP_API_BASE_URL", "http://erp.local/")
	t.Setenv("ERP_SERVICE_TOKEN", "outbound")
	t.Setenv("DEBUG", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "inbound", cfg.Kanban.ServiceToken)
	assert.Equal(t, "signing", cfg.Kanban.SecretKey)
	assert.Equal(t, []string{"kanban.local", "api.local"}, cfg.Kanban.AllowedHosts)
	assert.Equal(t, "http://erp.local", cfg.ERP.BaseURL)
	assert.True(t, cfg.ERP.Enabled())
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, config.SplitCSV(""))
	assert.Nil(t, config.SplitCSV(" , "))
	assert.Equal(t, []string{"a", "b"}, config.SplitCSV("a, b,"))
}

func TestJobsConfig_Location(t *testing.T) {
	assert.Equal(t, time.UTC, (&config.JobsConfig{}).Location())
	assert.Equal(t, time.UTC, (&config.JobsConfig{Timezone: "Mars/Olympus"}).Location())
	assert.Equal(t, "Europe/Moscow", (&config.JobsConfig{Timezone: "Europe/Moscow"}).Location().String())
}

type mapSource map[string]string

func (m mapSource) GetSecretOrEnv(_ context.Context, secretName, _ string) (string, error) {
	if v, ok := m[secretName]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestResolveSecrets(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Host = "localhost"
	cfg.ERPDirectory.Enabled = true

	err := config.ResolveSecrets(context.Background(), cfg, mapSource{
		"POSTGRES-MAIN-HOST":     "db.internal",
		"kanban-secret-key":      "vault-key",
		"erp-service-token":      "vault-erp",
		"ERP-DIRECTORY-USERNAME": "reader",
	})
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "vault-key", cfg.Kanban.SecretKey)
	assert.Equal(t, "vault-erp", cfg.ERP.ServiceToken)
	assert.Equal(t, "reader", cfg.ERPDirectory.User)

	err = config.ResolveSecrets(context.Background(), &config.Config{}, mapSource{})
	assert.Error(t, err, "the signing key is required")
}
