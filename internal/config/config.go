package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const FileName = "config.yaml"

type Config struct {
	DataDir string        `mapstructure:"dataDir"`
	Outline OutlineConfig `mapstructure:"outline"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Log     LogConfig     `mapstructure:"log"`
}

type OutlineConfig struct {
	MaxIndent int `mapstructure:"maxIndent"`
}

type SyncConfig struct {
	FlushInterval time.Duration `mapstructure:"flushInterval"`
	MaxRetries    int           `mapstructure:"maxRetries"`
	// AutoFlush runs one flush after every mutating command.
	AutoFlush bool `mapstructure:"autoFlush"`
}

type RemoteConfig struct {
	Kind        string `mapstructure:"kind"` // none, redis or postgres
	RedisURL    string `mapstructure:"redisURL"`
	RedisPrefix string `mapstructure:"redisPrefix"`
	PostgresURL string `mapstructure:"postgresURL"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
}

const (
	RemoteNone     = "none"
	RemoteRedis    = "redis"
	RemotePostgres = "postgres"
)

var settings = []struct {
	key   string
	env   string
	value any
}{
	{"dataDir", "JOTLINE_DIR", ""},
	{"outline.maxIndent", "JOTLINE_OUTLINE_MAX_INDENT", 8},
	{"sync.flushInterval", "JOTLINE_SYNC_FLUSH_INTERVAL", 5 * time.Second},
	{"sync.maxRetries", "JOTLINE_SYNC_MAX_RETRIES", 5},
	{"sync.autoFlush", "JOTLINE_SYNC_AUTO_FLUSH", true},
	{"remote.kind", "JOTLINE_REMOTE_KIND", RemoteNone},
	{"remote.redisURL", "JOTLINE_REMOTE_REDIS_URL", ""},
	{"remote.redisPrefix", "JOTLINE_REMOTE_REDIS_PREFIX", "jotline:"},
	{"remote.postgresURL", "JOTLINE_REMOTE_POSTGRES_URL", ""},
	{"log.level", "JOTLINE_LOG_LEVEL", "info"},
	{"log.format", "JOTLINE_LOG_FORMAT", "text"},
	{"log.file", "JOTLINE_LOG_FILE", ""},
	{"log.maxSizeMB", "JOTLINE_LOG_MAX_SIZE_MB", 10},
	{"log.maxBackups", "JOTLINE_LOG_MAX_BACKUPS", 3},
	{"log.maxAgeDays", "JOTLINE_LOG_MAX_AGE_DAYS", 28},
}

func newViper() *viper.Viper {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.value)
		_ = v.BindEnv(s.key, s.env)
	}
	return v
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	_ = newViper().Unmarshal(cfg)
	return cfg
}

// Load reads path over the defaults; environment variables win over both. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Outline.MaxIndent < 1 {
		return fmt.Errorf("outline.maxIndent must be >= 1 (got %d)", c.Outline.MaxIndent)
	}
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync.maxRetries must be >= 1 (got %d)", c.Sync.MaxRetries)
	}
	if c.Sync.FlushInterval <= 0 {
		return fmt.Errorf("sync.flushInterval must be positive (got %s)", c.Sync.FlushInterval)
	}
	switch c.Remote.Kind {
	case "", RemoteNone:
	case RemoteRedis:
		if c.Remote.RedisURL == "" {
			return errors.New("remote.redisURL is required for remote.kind=redis")
		}
	case RemotePostgres:
		if c.Remote.PostgresURL == "" {
			return errors.New("remote.postgresURL is required for remote.kind=postgres")
		}
	default:
		return fmt.Errorf("unknown remote.kind %q (expected none|redis|postgres)", c.Remote.Kind)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q (expected text|json)", c.Log.Format)
	}
	return nil
}

// fileConfig is the on-disk shape written by WriteDefault.
type fileConfig struct {
	Outline struct {
		MaxIndent int `yaml:"maxIndent"`
	} `yaml:"outline"`
	Sync struct {
		FlushInterval string `yaml:"flushInterval"`
		MaxRetries    int    `yaml:"maxRetries"`
		AutoFlush     bool   `yaml:"autoFlush"`
	} `yaml:"sync"`
	Remote struct {
		Kind        string `yaml:"kind"`
		RedisURL    string `yaml:"redisURL,omitempty"`
		RedisPrefix string `yaml:"redisPrefix"`
		PostgresURL string `yaml:"postgresURL,omitempty"`
	} `yaml:"remote"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file,omitempty"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxBackups int    `yaml:"maxBackups"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
	} `yaml:"log"`
}

func toFile(c *Config) fileConfig {
	var f fileConfig
	f.Outline.MaxIndent = c.Outline.MaxIndent
	f.Sync.FlushInterval = c.Sync.FlushInterval.String()
	f.Sync.MaxRetries = c.Sync.MaxRetries
	f.Sync.AutoFlush = c.Sync.AutoFlush
	f.Remote.Kind = c.Remote.Kind
	f.Remote.RedisURL = c.Remote.RedisURL
	f.Remote.RedisPrefix = c.Remote.RedisPrefix
	f.Remote.PostgresURL = c.Remote.PostgresURL
	f.Log.Level = c.Log.Level
	f.Log.Format = c.Log.Format
	f.Log.File = c.Log.File
	f.Log.MaxSizeMB = c.Log.MaxSizeMB
	f.Log.MaxBackups = c.Log.MaxBackups
	f.Log.MaxAgeDays = c.Log.MaxAgeDays
	return f
}

// WriteDefault writes the default configuration to path. An existing file is
// kept unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s: %w", path, os.ErrExist)
		}
	}
	b, err := yaml.Marshal(toFile(Default()))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
