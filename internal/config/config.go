// Package config assembles the service configuration from defaults, an
// optional TOML file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"kanban/internal/util"
)

// Backend names accepted in Config.Backend.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultConfigFile is picked up from the working directory when present.
const DefaultConfigFile = "kanban.toml"

// Config holds every runtime setting.
type Config struct {
	Addr      string       `toml:"addr"`
	Backend   string       `toml:"backend"`
	KeyPrefix string       `toml:"key_prefix"`
	StaticDir string       `toml:"static_dir"`
	LogLevel  string       `toml:"log_level"`
	Redis     RedisConfig  `toml:"redis"`
	SQLite    SQLiteConfig `toml:"sqlite"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	DB       int    `toml:"db"`
	Password string `toml:"password"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:     ":5000",
		Backend:  BackendRedis,
		LogLevel: "info",
		Redis: RedisConfig{
			Host: "redis",
			Port: 6379,
		},
		SQLite: SQLiteConfig{
			Path: "data/kanban.db",
		},
	}
}

// flagValues mirrors the command-line flags before they are merged.
type flagValues struct {
	configFile string
	addr       string
	backend    string
	keyPrefix  string
	staticDir  string
	logLevel   string
	redisHost  string
	redisPort  int
	redisDB    int
	dbPath     string
}

// Load parses args with fs and merges every configuration source. Flags that
// were not given on the command line never override other sources.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	var fv flagValues
	fs.StringVar(&fv.configFile, "config", "", "Path to a TOML config file (default ./"+DefaultConfigFile+" when present)")
	fs.StringVar(&fv.addr, "addr", "", "HTTP listen address")
	fs.StringVar(&fv.backend, "backend", "", "Storage backend: redis, sqlite or memory")
	fs.StringVar(&fv.keyPrefix, "key-prefix", "", "Prefix for every storage key")
	fs.StringVar(&fv.staticDir, "static", "", "Directory overriding the embedded static assets")
	fs.StringVar(&fv.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&fv.redisHost, "redis-host", "", "Redis host")
	fs.IntVar(&fv.redisPort, "redis-port", 0, "Redis port")
	fs.IntVar(&fv.redisDB, "redis-db", 0, "Redis logical database")
	fs.StringVar(&fv.dbPath, "db", "", "Path to sqlite database file")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := Default()

	path := fv.configFile
	if path == "" {
		path = util.EnvOrDefault("KANBAN_CONFIG", "")
	}
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = fv.addr
		case "backend":
			cfg.Backend = fv.backend
		case "key-prefix":
			cfg.KeyPrefix = fv.keyPrefix
		case "static":
			cfg.StaticDir = fv.staticDir
		case "log-level":
			cfg.LogLevel = fv.logLevel
		case "redis-host":
			cfg.Redis.Host = fv.redisHost
		case "redis-port":
			cfg.Redis.Port = fv.redisPort
		case "redis-db":
			cfg.Redis.DB = fv.redisDB
		case "db":
			cfg.SQLite.Path = fv.dbPath
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadEnv(cfg *Config) error {
	cfg.Addr = util.EnvOrDefault("KANBAN_ADDR", cfg.Addr)
	cfg.Backend = util.EnvOrDefault("KANBAN_BACKEND", cfg.Backend)
	cfg.KeyPrefix = util.EnvOrDefault("KANBAN_KEY_PREFIX", cfg.KeyPrefix)
	cfg.StaticDir = util.EnvOrDefault("KANBAN_STATIC_DIR", cfg.StaticDir)
	cfg.LogLevel = util.EnvOrDefault("KANBAN_LOG_LEVEL", cfg.LogLevel)
	cfg.Redis.Host = util.EnvOrDefault("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Password = util.EnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.SQLite.Path = util.EnvOrDefault("KANBAN_DB_PATH", cfg.SQLite.Path)

	var err error
	if cfg.Redis.Port, err = util.EnvIntOrDefault("REDIS_PORT", cfg.Redis.Port); err != nil {
		return err
	}
	if cfg.Redis.DB, err = util.EnvIntOrDefault("REDIS_DB", cfg.Redis.DB); err != nil {
		return err
	}
	return nil
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch c.Backend {
	case BackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("redis host must not be empty"))
		}
		if c.Redis.Port < 1 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("redis port %d out of range", c.Redis.Port))
		}
		if c.Redis.DB < 0 {
			errs = append(errs, fmt.Errorf("redis db %d must not be negative", c.Redis.DB))
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite path must not be empty"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}
