package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Engine.MinArbitragePercent)
	assert.Equal(t, 1000.0, cfg.Engine.MinVolumeUSD)
	assert.Equal(t, 1000, cfg.Engine.CrossHistory)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.Server.RateLimit.Window)
	assert.Equal(t, "arbitrage:events", cfg.Redis.Channel)
	assert.False(t, cfg.Database.Enabled)
	assert.True(t, cfg.Exchanges["kraken"].Enabled)
	assert.Empty(t, cfg.Triangles)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
engine:
  min_arbitrage_percent: 0.8
  min_volume_usd: 250
exchanges:
  binance:
    enabled: true
    symbols: [BTC, ETH]
  kraken:
    enabled: false
triangles:
  - symbol_a: BTC
    symbol_b: ETH
    symbol_c: USDT
    exchange: binance
    enabled: true
    min_profit_percent: 0.2
    test_mode: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Engine.MinArbitragePercent)
	assert.Equal(t, 250.0, cfg.Engine.MinVolumeUSD)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Exchanges["binance"].Symbols)
	assert.False(t, cfg.Exchanges["kraken"].Enabled)
	require.Len(t, cfg.Triangles, 1)
	assert.Equal(t, "ETH", cfg.Triangles[0].SymbolB)
	assert.Equal(t, 0.2, cfg.Triangles[0].MinProfitPercent)
	assert.True(t, cfg.Triangles[0].TestMode)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ENGINE_MIN_VOLUME_USD", "5000")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 5000.0, cfg.Engine.MinVolumeUSD)
}

func TestLoadConfig_EnvOnlySecrets(t *testing.T) {
	t.Setenv("DATABASE_USER", "arb")
	t.Setenv("DATABASE_PASSWORD", "s3cret")
	t.Setenv("DATABASE_DBNAME", "arbwatch")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("EXCHANGES_KRAKEN_URL", "wss://example.test")
	t.Setenv("SERVER_RATE_LIMIT_WINDOW", "1m")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "arb", cfg.Database.User)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "arbwatch", cfg.Database.DBName)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "wss://example.test", cfg.Exchanges["kraken"].URL)
	assert.Equal(t, time.Minute, cfg.Server.RateLimit.Window)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	t.Run("read from the config directory", func(t *testing.T) {
		// Registers a restore, then leaves the key unset so .env can supply it.
		t.Setenv("DATABASE_DBNAME", "")
		require.NoError(t, os.Unsetenv("DATABASE_DBNAME"))

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_DBNAME=fromdotenv\n"), 0o600))

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, "fromdotenv", cfg.Database.DBName)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=1\n"), 0o600))

		_, err := LoadConfig(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ".env")
	})
}
