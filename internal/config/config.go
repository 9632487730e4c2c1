package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"arbwatch/internal/model"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Engine    EngineConfig
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Metrics   MetricsConfig
	Log       LogConfig
	Exchanges map[string]ExchangeConfig
	// Triangles replaces the built-in triangle seed when non-empty.
	Triangles []model.TriangleConfig
}

// EngineConfig defines the detection thresholds.
type EngineConfig struct {
	MinArbitragePercent float64 `mapstructure:"min_arbitrage_percent"`
	MinVolumeUSD        float64 `mapstructure:"min_volume_usd"`
	CrossHistory        int     `mapstructure:"cross_history"`
	EventBuffer         int     `mapstructure:"event_buffer"`
}

// ServerConfig defines the operator HTTP API.
type ServerConfig struct {
	Port        int
	CORSOrigins []string  `mapstructure:"cors_origins"`
	RateLimit   RateLimit `mapstructure:"rate_limit"`
}

// RateLimit caps /api/ requests per client IP. Requests <= 0 disables it.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RedisConfig defines the optional pub/sub broadcast of engine events.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Addr string
}

// LogConfig defines logger settings.
type LogConfig struct {
	Level string
}

// ExchangeConfig defines settings for a specific exchange.
type ExchangeConfig struct {
	Enabled bool
	URL     string
	Symbols []string
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	if err = godotenv.Load(filepath.Join(path, ".env")); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("config: load .env: %w", err)
			return
		}
		err = nil
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

// setDefaults registers every key so AutomaticEnv can resolve it; viper only
// consults the environment for keys it already knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.min_arbitrage_percent", 0.5)
	v.SetDefault("engine.min_volume_usd", 1000.0)
	v.SetDefault("engine.cross_history", 1000)
	v.SetDefault("engine.event_buffer", 1024)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://localhost:8080",
	})
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", 15*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "arbitrage:events")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")

	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("log.level", "info")

	for _, name := range []string{"binance", "bybit", "coinbase", "kraken"} {
		v.SetDefault("exchanges."+name+".enabled", true)
		v.SetDefault("exchanges."+name+".url", "")
	}
}
