package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config captures environment driven configuration values for the speednet service.
type Config struct {
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	Store     string `env:"STORE" envDefault:"sqlite"`
	SQLiteDSN string `env:"SQLITE_DSN" envDefault:"speednet.db"`

	Cache           string        `env:"CACHE" envDefault:"memory"`
	CacheMaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"1024"`
	ListCacheTTL    time.Duration `env:"LIST_CACHE_TTL" envDefault:"30s"`
	RuntimeCacheTTL time.Duration `env:"RUNTIME_CACHE_TTL" envDefault:"5s"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix  string        `env:"REDIS_KEY_PREFIX" envDefault:"speednet:"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Prefix is prepended to every variable name.
const Prefix = "SPEEDNET_"

// Load parses configuration values from the current process environment.
//
// Every invalid variable is reported in a single error.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, describeParseError(err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.Cache = strings.ToLower(strings.TrimSpace(c.Cache))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.SQLiteDSN = strings.TrimSpace(c.SQLiteDSN)
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
}

// InvalidEnvError lists the variables that failed parsing or validation.
type InvalidEnvError struct {
	Keys []string
	Err  error
}

func (e *InvalidEnvError) Error() string {
	return "invalid environment values: " + strings.Join(e.Keys, ", ")
}

func (e *InvalidEnvError) Unwrap() error {
	return e.Err
}

// envKeys maps Config field names to their prefixed variable names.
func envKeys() map[string]string {
	t := reflect.TypeFor[Config]()
	keys := make(map[string]string, t.NumField())
	for i := range t.NumField() {
		field := t.Field(i)
		if name, _, _ := strings.Cut(field.Tag.Get("env"), ","); name != "" {
			keys[field.Name] = Prefix + name
		}
	}
	return keys
}

// describeParseError rewrites env errors, which name struct fields, in
// terms of the variables an operator sets.
func describeParseError(err error) error {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return fmt.Errorf("parse environment: %w", err)
	}

	fields := envKeys()
	keys := make([]string, 0, len(agg.Errors))
	for _, cause := range agg.Errors {
		var (
			parseErr env.ParseError
			unsetErr env.VarIsNotSetError
			emptyErr env.EmptyVarError
		)
		switch {
		case errors.As(cause, &parseErr) && fields[parseErr.Name] != "":
			keys = append(keys, fields[parseErr.Name])
		case errors.As(cause, &unsetErr):
			keys = append(keys, unsetErr.Key)
		case errors.As(cause, &emptyErr):
			keys = append(keys, emptyErr.Key)
		default:
			return fmt.Errorf("parse environment: %w", err)
		}
	}
	return &InvalidEnvError{Keys: keys, Err: err}
}

// Validate checks enumerations and ranges after parsing.
func (c Config) Validate() error {
	invalid := make([]string, 0, 4)
	flag := func(key string) {
		invalid = append(invalid, Prefix+key)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		flag("HTTP_PORT")
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLiteDSN == "" {
			flag("SQLITE_DSN")
		}
	default:
		flag("STORE")
	}
	switch c.Cache {
	case CacheMemory:
		if c.CacheMaxEntries <= 0 {
			flag("CACHE_MAX_ENTRIES")
		}
	case CacheRedis:
		if c.RedisAddr == "" {
			flag("REDIS_ADDR")
		}
		if c.RedisDB < 0 {
			flag("REDIS_DB")
		}
	case CacheNone:
	default:
		flag("CACHE")
	}
	if c.ListCacheTTL <= 0 {
		flag("LIST_CACHE_TTL")
	}
	if c.RuntimeCacheTTL <= 0 {
		flag("RUNTIME_CACHE_TTL")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		flag("LOG_LEVEL")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		flag("LOG_FORMAT")
	}
	if c.ShutdownTimeout <= 0 {
		flag("SHUTDOWN_TIMEOUT")
	}

	if len(invalid) > 0 {
		return &InvalidEnvError{Keys: invalid}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
