package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application settings (in-memory representation).
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Alias   AliasConfig   `mapstructure:"alias"`
	Route   RouteConfig   `mapstructure:"route"`
	Game    GameConfig    `mapstructure:"game"`
	Logging LoggingConfig `mapstructure:"logging"`
	DBPath  string        `mapstructure:"db_path"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RemoteConfig configures the remote market source.
type RemoteConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`         // per call
	MaxConcurrency int           `mapstructure:"max_concurrency"` // simultaneous outbound requests
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// CacheConfig configures TTL classes and the LRU bound.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	CoordinateTTL time.Duration `mapstructure:"coordinate_ttl"`
	Capacity      int           `mapstructure:"capacity"` // 0 = unbounded
}

// AliasConfig tunes free-text resolution.
type AliasConfig struct {
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

// RouteConfig holds planner defaults.
type RouteConfig struct {
	DefaultRadius      float64       `mapstructure:"default_radius"` // ly
	MaxResults         int           `mapstructure:"max_results"`
	TopN               int           `mapstructure:"top_n"`
	ChainMaxHops       int           `mapstructure:"chain_max_hops"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	SpeedLyPerHour     float64       `mapstructure:"speed_ly_per_hour"`
	JumpTime           time.Duration `mapstructure:"jump_time"`
	TradeOverhead      time.Duration `mapstructure:"trade_overhead"`
}

// GameConfig points at the local game-state source.
type GameConfig struct {
	JournalDir string `mapstructure:"journal_dir"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:13380",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Remote: RemoteConfig{
			BaseURL:        "https://market.example.org/api/v1",
			UserAgent:      "covinance/1.0",
			Timeout:        10 * time.Second,
			MaxConcurrency: 8,
			MaxRetries:     1,
			RetryBackoff:   500 * time.Millisecond,
		},
		Cache: CacheConfig{
			TTL:           time.Hour,
			CoordinateTTL: 30 * 24 * time.Hour,
			Capacity:      5000,
		},
		Alias: AliasConfig{
			FuzzyThreshold: 0.8,
		},
		Route: RouteConfig{
			DefaultRadius:      40,
			MaxResults:         1000,
			TopN:               5,
			ChainMaxHops:       5,
			StalenessThreshold: 30 * 24 * time.Hour,
			SpeedLyPerHour:     600,
			JumpTime:           45 * time.Second,
			TradeOverhead:      5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		DBPath:  "covinance.db",
	}
}

// Load reads configuration from an optional file plus COVINANCE_* environment
// variables, layered over Default(). A .env file in the working directory is
// loaded first when present. An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("COVINANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.user_agent", d.Remote.UserAgent)
	v.SetDefault("remote.timeout", d.Remote.Timeout)
	v.SetDefault("remote.max_concurrency", d.Remote.MaxConcurrency)
	v.SetDefault("remote.max_retries", d.Remote.MaxRetries)
	v.SetDefault("remote.retry_backoff", d.Remote.RetryBackoff)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.coordinate_ttl", d.Cache.CoordinateTTL)
	v.SetDefault("cache.capacity", d.Cache.Capacity)

	v.SetDefault("alias.fuzzy_threshold", d.Alias.FuzzyThreshold)

	v.SetDefault("route.default_radius", d.Route.DefaultRadius)
	v.SetDefault("route.max_results", d.Route.MaxResults)
	v.SetDefault("route.top_n", d.Route.TopN)
	v.SetDefault("route.chain_max_hops", d.Route.ChainMaxHops)
	v.SetDefault("route.staleness_threshold", d.Route.StalenessThreshold)
	v.SetDefault("route.speed_ly_per_hour", d.Route.SpeedLyPerHour)
	v.SetDefault("route.jump_time", d.Route.JumpTime)
	v.SetDefault("route.trade_overhead", d.Route.TradeOverhead)

	v.SetDefault("game.journal_dir", d.Game.JournalDir)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("db_path", d.DBPath)
}

// normalize clamps values that would break the engine.
func (c *Config) normalize() {
	d := Default()
	if c.Remote.MaxConcurrency <= 0 {
		c.Remote.MaxConcurrency = d.Remote.MaxConcurrency
	}
	if c.Remote.MaxRetries < 0 {
		c.Remote.MaxRetries = 0
	}
	// At most one retry per call; latency must stay bounded by timeout × 2.
	if c.Remote.MaxRetries > 1 {
		c.Remote.MaxRetries = 1
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = d.Remote.Timeout
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Alias.FuzzyThreshold <= 0 || c.Alias.FuzzyThreshold > 1 {
		c.Alias.FuzzyThreshold = d.Alias.FuzzyThreshold
	}
	if c.Route.MaxResults <= 0 || c.Route.MaxResults > d.Route.MaxResults {
		c.Route.MaxResults = d.Route.MaxResults
	}
	if c.Route.ChainMaxHops <= 0 {
		c.Route.ChainMaxHops = d.Route.ChainMaxHops
	}
}
