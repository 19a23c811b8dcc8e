package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override; "__" separates levels,
// e.g. MARKET_SERVER__PORT=9090 or MARKET_LOCK__REDIS__ADDR=redis:6379.
const EnvPrefix = "MARKET_"

// FileEnv names the variable that points at an optional YAML file.
const FileEnv = EnvPrefix + "CONFIG"

type Config struct {
	LogLevel string `koanf:"log_level"`

	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Lock    LockConfig    `koanf:"lock"`
	Auth    AuthConfig    `koanf:"auth"`
	Bidding BiddingConfig `koanf:"bidding"`
	Auction AuctionConfig `koanf:"auction"`
	Sweeper SweeperConfig `koanf:"sweeper"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StorageConfig selects the record store: "memory" or "postgres".
type StorageConfig struct {
	Driver   string         `koanf:"driver"`
	Postgres PostgresConfig `koanf:"postgres"`
}

type PostgresConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// LockConfig selects the per-record lock: "local" or "redis".
type LockConfig struct {
	Driver string        `koanf:"driver"`
	Redis  RedisConfig   `koanf:"redis"`
	TTL    time.Duration `koanf:"ttl"`
	Wait   time.Duration `koanf:"wait"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type BiddingConfig struct {
	MaxAttempts  int           `koanf:"max_attempts"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
}

type AuctionConfig struct {
	// AllowPrebidEdits lets a seller edit an active auction that has no bids
	// and has not started yet.
	AllowPrebidEdits bool `koanf:"allow_prebid_edits"`
}

type SweeperConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "memory",
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Lock: LockConfig{
			Driver: "local",
			Redis:  RedisConfig{Addr: "localhost:6379"},
			TTL:    5 * time.Second,
			Wait:   2 * time.Second,
		},
		Bidding: BiddingConfig{
			MaxAttempts:  5,
			RetryBackoff: time.Millisecond,
		},
		Sweeper: SweeperConfig{
			Interval: 5 * time.Second,
		},
	}
}

// Load layers defaults, the optional YAML file at path (or $MARKET_CONFIG
// when path is empty) and MARKET_ environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := Defaults()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("config: storage.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Lock.Driver {
	case "local", "redis":
	default:
		return fmt.Errorf("config: unknown lock driver %q", c.Lock.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Bidding.MaxAttempts < 1 {
		return fmt.Errorf("config: bidding.max_attempts must be at least 1")
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return fmt.Errorf("config: sweeper.interval must be positive when enabled")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
