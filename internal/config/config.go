package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gookit/validate"
	"github.com/joho/godotenv"
)

// Config holds all configuration for our application
type Config struct {
	DiscordToken   string `env:"DISCORD_TOKEN" validate:"required"`
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres" validate:"required|in:postgres,sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN" validate:"required"`

	GuildID           string            `env:"GUILD_ID" validate:"required"`
	IgnoredChannelIDs []string          `env:"IGNORED_CHANNEL_IDS" envSeparator:","`
	ModeratorRoleIDs  []string          `env:"MODERATOR_ROLE_IDS" envSeparator:","`
	CheckinRoleTiers  map[string]string `env:"CHECKIN_ROLE_TIERS" envSeparator:"," envKeyValSeparator:":"`
	CommandPrefix     string            `env:"COMMAND_PREFIX" envDefault:"+" validate:"required"`

	PointValuesPath   string        `env:"POINT_VALUES_PATH" envDefault:"data/economy/point_values.yml" validate:"required"`
	DefaultTimezone   string        `env:"DEFAULT_TIMEZONE" envDefault:"America/Los_Angeles" validate:"required"`
	RewardInterval    time.Duration `env:"REWARD_INTERVAL" envDefault:"1m"`
	MinVoiceConnected int           `env:"MIN_VOICE_CONNECTED" envDefault:"2" validate:"min:1"`
	MaxBalanceAge     time.Duration `env:"MAX_BALANCE_AGE" envDefault:"720h"`
	AtRiskWindow      time.Duration `env:"AT_RISK_WINDOW" envDefault:"168h"`

	TimezoneCacheMB  int           `env:"TIMEZONE_CACHE_MB" envDefault:"1"`
	TimezoneCacheTTL time.Duration `env:"TIMEZONE_CACHE_TTL" envDefault:"10m"`

	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":9090"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"in:trace,debug,info,warn,error"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// .env file is optional, continue with environment variables
	_ = godotenv.Load()

	return Parse()
}

// Parse reads the process environment into a validated Config.
func Parse() (*Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks field constraints that the env tags cannot express.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		fields := make([]string, 0, len(v.Errors))
		for field := range v.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return &ConfigError{Field: fields[0], Message: v.Errors.FieldOne(fields[0])}
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"REWARD_INTERVAL", c.RewardInterval},
		{"MAX_BALANCE_AGE", c.MaxBalanceAge},
		{"TIMEZONE_CACHE_TTL", c.TimezoneCacheTTL},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return &ConfigError{Field: d.field, Message: d.field + " must be positive"}
		}
	}

	if c.AtRiskWindow < 0 || c.AtRiskWindow > c.MaxBalanceAge {
		return &ConfigError{Field: "AT_RISK_WINDOW", Message: "AT_RISK_WINDOW must be between 0 and MAX_BALANCE_AGE"}
	}

	return nil
}

// IsModerator reports whether any of the given roles is a moderator role.
func (c *Config) IsModerator(roles []string) bool {
	for _, role := range roles {
		for _, mod := range c.ModeratorRoleIDs {
			if role == mod {
				return true
			}
		}
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
