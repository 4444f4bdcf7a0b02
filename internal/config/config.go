// Package config loads engine options from a YAML file, a .env file, environment variables and
// bound command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/records"
	"github.com/spigell/talent-matcher/internal/scheduler"
	"github.com/spigell/talent-matcher/internal/scoring"
)

const (
	App       = "talent-matcher"
	EnvPrefix = "TALENT_MATCHER"
)

type Config struct {
	Debug bool `mapstructure:"debug"`
	JSON  bool `mapstructure:"json"`

	Weights         scoring.Weights `mapstructure:"weights"`
	ScoreTimeoutMS  int             `mapstructure:"score-timeout-ms"`
	QueueCapacity   int             `mapstructure:"queue-capacity"`
	WorkerCount     int             `mapstructure:"worker-count"`
	MatchTTLSeconds int             `mapstructure:"match-ttl-seconds"`
	RetryLimit      int             `mapstructure:"retry-limit"`
	RetryBaseMS     int             `mapstructure:"retry-base-ms"`
	RetryCapMS      int             `mapstructure:"retry-cap-ms"`
	SweepSchedule   string          `mapstructure:"sweep-schedule"`

	RecordsFile string         `mapstructure:"records-file"`
	Records     RecordsConfig  `mapstructure:"records"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	AI          AIConfig       `mapstructure:"ai"`
}

// RecordsConfig controls how free-form candidate and job payloads are decoded.
type RecordsConfig struct {
	StrictYears bool `mapstructure:"strict-years"`
}

func (r RecordsConfig) DecodeOptions() records.DecodeOptions {
	return records.DecodeOptions{StrictYears: r.StrictYears}
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	URLFile      string `mapstructure:"url-file"`
	EnsureSchema bool   `mapstructure:"ensure-schema"`
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type AIConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Gemini  GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

// SetDefaults registers the engine defaults on v.
func SetDefaults(v *viper.Viper) {
	d := scheduler.DefaultConfig()
	v.SetDefault("weights.skills", scoring.DefaultWeights.Skills)
	v.SetDefault("weights.experience", scoring.DefaultWeights.Experience)
	v.SetDefault("weights.education", scoring.DefaultWeights.Education)
	v.SetDefault("weights.location", scoring.DefaultWeights.Location)
	v.SetDefault("score-timeout-ms", d.ScoreTimeout.Milliseconds())
	v.SetDefault("queue-capacity", d.QueueCapacity)
	v.SetDefault("worker-count", 0)
	v.SetDefault("match-ttl-seconds", int(d.MatchTTL.Seconds()))
	v.SetDefault("retry-limit", d.RetryLimit)
	v.SetDefault("retry-base-ms", d.RetryBase.Milliseconds())
	v.SetDefault("retry-cap-ms", d.RetryCap.Milliseconds())
	v.SetDefault("sweep-schedule", d.SweepSchedule)
	v.SetDefault("records-file", "")
	v.SetDefault("records.strict-years", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.url-file", "")
	v.SetDefault("database.ensure-schema", true)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "tm")
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.gemini.max-retries", 2)
	v.SetDefault("ai.gemini.max-log-length", 2000)
}

// Load reads the configuration into a Config. cfgFile overrides the default talent-matcher.yaml
// lookup in the working directory; a missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperror.Configuration("config", "loading .env: %v", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(App)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, apperror.Configuration("config", "reading config: %v", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperror.Configuration("config", "decoding config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	switch {
	case c.ScoreTimeoutMS <= 0:
		return apperror.Configuration("config", "score-timeout-ms must be positive, got %d", c.ScoreTimeoutMS)
	case c.QueueCapacity <= 0:
		return apperror.Configuration("config", "queue-capacity must be positive, got %d", c.QueueCapacity)
	case c.MatchTTLSeconds <= 0:
		return apperror.Configuration("config", "match-ttl-seconds must be positive, got %d", c.MatchTTLSeconds)
	case c.WorkerCount < 0:
		return apperror.Configuration("config", "worker-count must not be negative, got %d", c.WorkerCount)
	case c.RetryLimit < 0:
		return apperror.Configuration("config", "retry-limit must not be negative, got %d", c.RetryLimit)
	case c.RetryBaseMS <= 0 || c.RetryCapMS < c.RetryBaseMS:
		return apperror.Configuration("config", "retry backoff must satisfy 0 < retry-base-ms <= retry-cap-ms, got %d/%d", c.RetryBaseMS, c.RetryCapMS)
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return apperror.Configuration("config", "sweep-schedule %q: %v", c.SweepSchedule, err)
		}
	}
	return nil
}

// SchedulerConfig converts the options into scheduler settings.
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		Workers:       c.WorkerCount,
		QueueCapacity: c.QueueCapacity,
		ScoreTimeout:  time.Duration(c.ScoreTimeoutMS) * time.Millisecond,
		MatchTTL:      time.Duration(c.MatchTTLSeconds) * time.Second,
		RetryLimit:    c.RetryLimit,
		RetryBase:     time.Duration(c.RetryBaseMS) * time.Millisecond,
		RetryCap:      time.Duration(c.RetryCapMS) * time.Millisecond,
		SweepSchedule: c.SweepSchedule,
	}
}

// Storage names the configured persistence for logging.
func (c *Config) Storage() string {
	switch {
	case c.Database.URL != "" || c.Database.URLFile != "":
		return "postgres"
	case c.Redis.URL != "":
		return "redis"
	default:
		return "memory"
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("storage=%s workers=%d queue=%d ttl=%ds", c.Storage(), c.WorkerCount, c.QueueCapacity, c.MatchTTLSeconds)
}
