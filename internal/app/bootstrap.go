package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/convergekit/converge/internal/adapters/provider/aws"
	"github.com/convergekit/converge/internal/adapters/provider/memory"
	"github.com/convergekit/converge/internal/config"
	"github.com/convergekit/converge/internal/core/graph"
	"github.com/convergekit/converge/internal/core/ports"
	"github.com/convergekit/converge/internal/core/service"
	"github.com/convergekit/converge/internal/errors"
	"github.com/convergekit/converge/internal/log"
	"github.com/convergekit/converge/internal/manifest"
	jsonreport "github.com/convergekit/converge/internal/reporting/json"
	"github.com/convergekit/converge/internal/reporting/text"
	"github.com/convergekit/converge/internal/retry"
)

// BuildApplicationFromViper assembles the full application: configuration,
// logger, provider adapter, reporter, manifest, dependency graph and engine.
// Manifest and graph errors surface here, before any provider mutation.
func BuildApplicationFromViper(ctx context.Context, v *viper.Viper) (*Application, error) {
	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigParseError, "failed to unmarshal configuration")
	}

	logCfg := log.Config{Level: cfg.Settings.LogLevel, Format: cfg.Settings.LogFormat}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		return nil, errors.Wrap(err, errors.CodeInternal, "logger initialization failed")
	}
	logger.Debugf(ctx, "Logger initialized (Level: %s, Format: %s)", cfg.Settings.LogLevel, cfg.Settings.LogFormat)
	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "Using configuration file: %s", v.ConfigFileUsed())
	}

	if err := validateConfig(ctx, cfg); err != nil {
		logger.Errorf(ctx, err, "Configuration validation failed")
		return nil, err
	}

	registry := service.NewComponentRegistry()
	if err := registerProviders(ctx, registry, cfg, logger); err != nil {
		return nil, err
	}
	if err := registerReporters(registry, cfg, logger); err != nil {
		return nil, err
	}

	provider, err := registry.GetProvider(cfg.Provider.Type)
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "Using %s provider adapter", provider.Type())

	reporter, err := registry.GetReporter(cfg.Settings.ReporterType)
	if err != nil {
		return nil, err
	}

	decls, err := manifest.Load(cfg.Manifest.Path)
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "Loaded %d declarations from %s", len(decls), cfg.Manifest.Path)

	g, err := graph.Build(decls)
	if err != nil {
		return nil, err
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Settings.MaxRetries

	engine, err := service.NewEngine(g, provider,
		logger.WithFields(map[string]any{"component": "engine"}),
		service.Options{
			Concurrency: cfg.Settings.Concurrency,
			DryRun:      cfg.Settings.DryRun,
			Retry:       policy,
		})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize convergence engine")
	}

	logger.Debugf(ctx, "Application bootstrap complete")
	return NewApplication(engine, reporter, logger), nil
}

func validateConfig(ctx context.Context, cfg *config.Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.StructCtx(ctx, cfg)
	if err == nil {
		return nil
	}

	var details strings.Builder
	details.WriteString("Configuration validation failed:")
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range validationErrors {
			details.WriteString(fmt.Sprintf("\n - Field '%s': failed '%s' validation (value: '%v')",
				fe.Namespace(), fe.Tag(), fe.Value()))
		}
	} else {
		details.WriteString(" " + err.Error())
	}
	return errors.NewUserFacing(errors.CodeConfigValidation, details.String(),
		"Check your configuration file or flags.")
}

// registerProviders registers every provider adapter available in this
// environment. The memory adapter is always on offer; the AWS adapter talks to
// the platform at construction time, so it is only built when configured.
func registerProviders(ctx context.Context, registry *service.ComponentRegistry, cfg *config.Config, logger ports.Logger) error {
	memAdapter := memory.NewAdapter(logger.WithFields(map[string]any{"provider": memory.Type}))
	if err := registry.RegisterProvider(memAdapter); err != nil {
		return err
	}

	if cfg.Provider.Type != aws.Type {
		return nil
	}
	provLog := logger.WithFields(map[string]any{"provider": aws.Type})
	awsCfg := aws.Config{}
	if cfg.Provider.AWS != nil {
		awsCfg.Region = cfg.Provider.AWS.Region
		awsCfg.RateLimitRPS = cfg.Provider.AWS.RateLimitRPS
	}
	provider, err := aws.NewProvider(ctx, provLog, awsCfg)
	if err != nil {
		return errors.Wrap(err, errors.CodeConfigValidation, "failed to initialize AWS provider")
	}
	return registry.RegisterProvider(provider)
}

func registerReporters(registry *service.ComponentRegistry, cfg *config.Config, logger ports.Logger) error {
	textCfg := text.Config{}
	if cfg.Settings.Reporter.Text != nil {
		textCfg = *cfg.Settings.Reporter.Text
	}
	textReporter, err := text.NewReporter(textCfg,
		logger.WithFields(map[string]any{"component": "reporter", "type": text.ReporterTypeText}))
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to initialize text reporter")
	}
	if err := registry.RegisterReporter(text.ReporterTypeText, textReporter); err != nil {
		return err
	}

	jsonReporter, err := jsonreport.NewReporter(jsonreport.Config{},
		logger.WithFields(map[string]any{"component": "reporter", "type": jsonreport.ReporterTypeJSON}))
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to initialize JSON reporter")
	}
	return registry.RegisterReporter(jsonreport.ReporterTypeJSON, jsonReporter)
}
