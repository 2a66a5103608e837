package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := New()
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "kraken"
	cfg.Database.Name = "kraken"
	cfg.Security.SessionKey = "0123456789abcdef0123456789abcdef"
	cfg.Security.OriginURL = "https://kraken.test"
	return cfg
}

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8081, cfg.RPC.Port)
	assert.Equal(t, "/var/lib/kraken", cfg.Storage.DataDir)
	assert.True(t, cfg.Database.MigrateOnStart)
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_AggregatesEveryProblem(t *testing.T) {
	cfg := New()
	cfg.Server.Port = -1
	cfg.Storage.DataDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "KRAKEN_SESSION_KEY is required")
	assert.Contains(t, msg, "KRAKEN_ORIGIN_URL is required")
	assert.Contains(t, msg, "data_dir must not be empty")
	assert.Contains(t, msg, "out of range")
	assert.GreaterOrEqual(t, strings.Count(msg, "\n"), 4, "all problems reported at once")
}

func TestValidate_ShortSessionKey(t *testing.T) {
	cfg := validConfig()
	cfg.Security.SessionKey = "short"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestDSN_ExplicitWins(t *testing.T) {
	cfg := validConfig()
	assert.Contains(t, cfg.DSN(), "host=localhost")
	cfg.Database.DSN = "postgres://u:p@db/kraken"
	assert.Equal(t, "postgres://u:p@db/kraken", cfg.DSN())
}
