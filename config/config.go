package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	envPrefix = "STAGNANT"
)

type Config struct {
	Slack   SlackConfig   `mapstructure:"slack"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Check   CheckConfig   `mapstructure:"check"`
	Log     LogConfig     `mapstructure:"log"`
	Debug   bool          `mapstructure:"debug"`
}

type SlackConfig struct {
	BotToken      string        `mapstructure:"bot_token"`
	SigningSecret string        `mapstructure:"signing_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	RedisURL    string `mapstructure:"redis_url"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// CheckConfig holds the knobs of the daily staleness check and of the
// watchlist rules it shares with the command service.
type CheckConfig struct {
	ThresholdDays int           `mapstructure:"threshold_days"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	MaxNameLength int           `mapstructure:"max_name_length"`
	MaxChannels   int           `mapstructure:"max_channels"`
	Workers       int           `mapstructure:"workers"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Threshold is the inactivity period after which a channel is reported.
func (c CheckConfig) Threshold() time.Duration {
	return time.Duration(c.ThresholdDays) * 24 * time.Hour
}

// legacyEnv maps keys to the variable names the bot used before it had a
// config file.
var legacyEnv = map[string]string{
	"slack.bot_token":      "SLACK_BOT_TOKEN",
	"slack.signing_secret": "SLACK_SIGN_SECRET",
	"storage.redis_url":    "REDIS_URL",
	"storage.postgres_dsn": "DATABASE_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.signing_secret", "")
	v.SetDefault("slack.timeout", "10s")
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("check.threshold_days", 2)
	v.SetDefault("check.cache_ttl", "24h")
	v.SetDefault("check.max_name_length", 80)
	v.SetDefault("check.max_channels", 50)
	v.SetDefault("check.workers", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("debug", false)
}

// Load reads configuration from defaults, an optional config file, a .env
// file and the environment, in increasing order of precedence. An empty path
// looks for config.{json,yaml} in the working directory and tolerates its
// absence.
func Load(path string) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "unable to read .env file")
	}

	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "unable to read config file")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, errors.Wrapf(err, "unable to bind env for %v", key)
		}
	}

	var c Config
	err = v.Unmarshal(&c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	err = c.Validate()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Check.ThresholdDays <= 0 {
		return errors.Errorf("check.threshold_days must be positive, got %v", c.Check.ThresholdDays)
	}
	if c.Check.CacheTTL <= 0 {
		return errors.Errorf("check.cache_ttl must be positive, got %v", c.Check.CacheTTL)
	}
	if c.Check.MaxNameLength <= 0 {
		return errors.Errorf("check.max_name_length must be positive, got %v", c.Check.MaxNameLength)
	}
	if c.Check.MaxChannels <= 0 {
		return errors.Errorf("check.max_channels must be positive, got %v", c.Check.MaxChannels)
	}
	if c.Check.Workers <= 0 {
		return errors.Errorf("check.workers must be positive, got %v", c.Check.Workers)
	}
	if c.Slack.Timeout <= 0 {
		return errors.Errorf("slack.timeout must be positive, got %v", c.Slack.Timeout)
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("storage.redis_url is required for the redis backend")
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// RequireSlack reports a missing credential needed to talk to the Slack Web
// API. The command service additionally needs the signing secret.
func (c *Config) RequireSlack(signing bool) error {
	if c.Slack.BotToken == "" {
		return errors.New("slack.bot_token (SLACK_BOT_TOKEN) is not set")
	}
	if signing && c.Slack.SigningSecret == "" {
		return errors.New("slack.signing_secret (SLACK_SIGN_SECRET) is not set")
	}
	return nil
}
