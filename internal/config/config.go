package config

import (
	"time"

	"github.com/convergekit/converge/internal/adapters/provider/memory"
	"github.com/convergekit/converge/internal/log"
	"github.com/convergekit/converge/internal/reporting/text"
	"github.com/convergekit/converge/internal/retry"
)

type Config struct {
	Settings SettingsConfig `mapstructure:"settings"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Provider ProviderConfig `mapstructure:"provider" validate:"required"`
}

type SettingsConfig struct {
	LogLevel    log.Level  `mapstructure:"log_level"`
	LogFormat   log.Format `mapstructure:"log_format"`
	Concurrency int        `mapstructure:"concurrency" validate:"gte=0,lte=64"`
	MaxRetries  int        `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	// Timeout bounds the whole run; zero means no bound.
	Timeout      time.Duration   `mapstructure:"timeout" validate:"gte=0"`
	DryRun       bool            `mapstructure:"dry_run"`
	ReporterType string          `mapstructure:"reporter" validate:"oneof=text json"`
	Reporter     ReporterConfigs `mapstructure:"reporter_config"`
}

type ManifestConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type ProviderConfig struct {
	Type   string             `mapstructure:"type" validate:"oneof=aws memory"`
	AWS    *AWSProviderConfig `mapstructure:"aws,omitempty"`
	Memory *MemoryConfig      `mapstructure:"memory,omitempty"`
}

type AWSProviderConfig struct {
	// Region overrides the SDK's default region resolution.
	Region       string `mapstructure:"region"`
	RateLimitRPS int    `mapstructure:"rate_limit_rps" validate:"gte=0,lte=100"`
}

type MemoryConfig struct{}

type ReporterConfigs struct {
	Text *text.Config `mapstructure:"text,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			LogLevel:     log.LevelInfo,
			LogFormat:    log.FormatText,
			Concurrency:  10,
			MaxRetries:   retry.DefaultMaxRetries,
			Timeout:      0,
			ReporterType: text.ReporterTypeText,
			Reporter: ReporterConfigs{
				Text: &text.Config{NoColor: false},
			},
		},
		Provider: ProviderConfig{
			Type: memory.Type,
		},
	}
}
