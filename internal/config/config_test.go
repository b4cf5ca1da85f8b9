package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("DATABASE_DSN", "")

	_, err := Load()
	assert.EqualError(t, err, "DATABASE_DSN is required")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("DATABASE_DSN", "postgres://localhost/marketgraph")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, 30*time.Second, cfg.Postgres.CommandTimeout)
	assert.Equal(t, "invest", cfg.Data.Provider)
	assert.Equal(t, "en", cfg.Data.Locale)
	assert.Equal(t, "marketgraph.bars", cfg.RabbitMQ.BarsExchange)
	assert.Equal(t, "marketgraph.ticks", cfg.RabbitMQ.TicksExchange)
	assert.Equal(t, 2*time.Second, cfg.RabbitMQ.BatchTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Invest.SkipTLSVerify)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("DATABASE_DSN", "postgres://localhost/marketgraph")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("POSTGRES_COMMAND_TIMEOUT", "1500ms")
	t.Setenv("POSTGRES_MAX_CONNS", "8")
	t.Setenv("RABBITMQ_BATCH_TIMEOUT", "5")
	t.Setenv("INVEST_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("DATA_PROVIDER", "Moex")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Postgres.CommandTimeout)
	assert.Equal(t, int32(8), cfg.Postgres.MaxConns)
	assert.Equal(t, 5*time.Second, cfg.RabbitMQ.BatchTimeout)
	assert.True(t, cfg.Invest.SkipTLSVerify)
	assert.Equal(t, "Moex", cfg.Data.Provider)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("DATABASE_DSN", "postgres://localhost/marketgraph")

	t.Setenv("HTTP_PORT", "eighty")
	_, err := Load()
	assert.ErrorContains(t, err, "HTTP_PORT")

	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("POSTGRES_COMMAND_TIMEOUT", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "POSTGRES_COMMAND_TIMEOUT")
}

func TestLoadDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_DSN=postgres://from-file/db\nDATA_LOCALE=ru\n"), 0o600))
	t.Setenv("NO_DOTENV", "")
	t.Setenv("ENV_FILE", path)
	t.Setenv("DATABASE_DSN", "")
	os.Unsetenv("DATABASE_DSN")
	t.Setenv("DATA_LOCALE", "")
	os.Unsetenv("DATA_LOCALE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://from-file/db", cfg.Postgres.DSN)
	assert.Equal(t, "ru", cfg.Data.Locale)
}

func TestLoadDotenvMissingFileIsIgnored(t *testing.T) {
	t.Setenv("NO_DOTENV", "")
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, LoadDotenv())
}

func TestLoadProducer(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("INVEST_TOKEN", "")

	_, err := LoadProducer()
	assert.EqualError(t, err, "INVEST_TOKEN is required")

	t.Setenv("INVEST_TOKEN", " t.secret ")
	t.Setenv("PRODUCER_LEVEL1", "false")
	cfg, err := LoadProducer()
	require.NoError(t, err)
	assert.Equal(t, "t.secret", cfg.Invest.Token)
	assert.False(t, cfg.Level1)
	assert.Equal(t, "cmd/producer/instruments.json", cfg.InstrumentsFile)
	assert.Equal(t, "marketgraph.bars", cfg.RabbitMQ.BarsExchange)
}
