package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_ParsesSections(t *testing.T) {
	p := writeConfig(t, `
store: postgres
http:
  addr: ":8080"
  read_timeout: 2s
database:
  host: db
  user: app
  password: secret
  database: restaurant
rabbitmq:
  enabled: true
  host: mq
  user: guest
  password: guest
business:
  timezone: Asia/Kolkata
  currency_symbol: "Rs."
tax:
  enabled: true
  components:
    - name: CGST
      rate: 2.5
    - name: SGST
      rate: 2.5
  tenants:
    R2:
      enabled: true
      rate: 18
quota:
  daily_limits:
    waiter: 40
knowledge_base:
  - question: Do you have parking?
    answer: Yes, behind the building.
    tags: [parking]
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.True(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "/", cfg.RabbitMQ.VHost)
	assert.True(t, cfg.Tax.Enabled)
	require.Len(t, cfg.Tax.Components, 2)
	assert.Equal(t, "CGST", cfg.Tax.Components[0].Name)
	assert.Equal(t, 18.0, cfg.Tax.Tenants["R2"].Rate)
	assert.Equal(t, 40, cfg.Quota.DailyLimits["waiter"])
	require.Len(t, cfg.KnowledgeBase, 1)
	assert.Equal(t, "available", cfg.Business.BillingReleaseStatus)

	loc, err := cfg.Business.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeConfig(t, "store: memory\n")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"postgres without host", func(c *Config) {}, "database host"},
		{"unknown store", func(c *Config) { c.Store = "mongo" }, "unknown store"},
		{"bad timezone", func(c *Config) { c.Store = "memory"; c.Business.Timezone = "Mars/Base" }, "timezone"},
		{"bad release status", func(c *Config) { c.Store = "memory"; c.Business.BillingReleaseStatus = "dirty" }, "billing_release_status"},
		{"negative tax", func(c *Config) { c.Store = "memory"; c.Tax.Rate = -1 }, "negative tax rate"},
		{"rabbit without host", func(c *Config) { c.Store = "memory"; c.RabbitMQ.Enabled = true }, "rabbitmq"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}

	cfg := Default()
	cfg.Store = "memory"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config")
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "deploy", "config.example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.HTTP.MaxConcurrent)
	assert.Equal(t, 10*time.Minute, cfg.Redis.SessionTTL)
	require.Len(t, cfg.Tax.Components, 2)
	assert.Equal(t, 12.0, cfg.Tax.Tenants["R9"].Rate)
	assert.Equal(t, 200, cfg.Quota.DailyLimits["waiter"])
	assert.Len(t, cfg.KnowledgeBase, 2)
}
