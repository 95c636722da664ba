package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/convergekit/converge/internal/app"
	"github.com/convergekit/converge/internal/core/graph"
	apperrors "github.com/convergekit/converge/internal/errors"
	"github.com/convergekit/converge/internal/manifest"
)

// Exit codes: 0 when every declaration converged, 1 when any declaration
// failed, 2 when the run never started (config, manifest or graph errors).
const (
	exitOK         = 0
	exitRunFailed  = 1
	exitPreRunFail = 2
)

var (
	cfgFile      string
	logLevel     string
	logFormat    string
	manifestPath string
	dryRun       bool
	maxRetries   int
	timeout      time.Duration
)

var errDeclarationsFailed = errors.New("one or more declarations failed to converge")

var rootCmd = &cobra.Command{
	Use:   "converge",
	Short: "Converges declared resources onto their target platform.",
	Long: `Converge reads a manifest of declared resources, resolves their
dependency graph and reconciles each declaration against the configured
platform: looking up observed state, then creating or updating resources
until they match what the manifest declares.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		application, bootstrapErr := app.BuildApplicationFromViper(cmd.Context(), viper.GetViper())
		if bootstrapErr != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", bootstrapErr)
			if appErr := (*apperrors.AppError)(nil); errors.As(bootstrapErr, &appErr) && appErr.IsUserFacing {
				if appErr.SuggestedAction != "" {
					fmt.Fprintf(os.Stderr, "Suggestion: %s\n", appErr.SuggestedAction)
				}
			}
			return bootstrapErr
		}

		ctx := cmd.Context()
		if d := viper.GetDuration("settings.timeout"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		report, runErr := application.Run(ctx)
		if runErr != nil {
			userMsg, suggestion, _ := apperrors.GetUserFacingMessage(runErr)
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", userMsg)
			if suggestion != "" {
				fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
			}
			return runErr
		}

		if !report.OverallSuccess() {
			return errDeclarationsFailed
		}
		return nil
	},
}

// graphCmd renders the dependency graph without converging anything, which is
// handy for reviewing ordering before a real run.
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Prints the manifest's dependency graph in Graphviz DOT format.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("manifest.path")
		if path == "" {
			return apperrors.NewUserFacing(apperrors.CodeConfigValidation,
				"no manifest path configured", "Pass --manifest or set manifest.path in the config file.")
		}
		decls, err := manifest.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return err
		}
		g, err := graph.Build(decls)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), g.DOT())
		return nil
	},
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitOK)
}

// exitCodeFor distinguishes failures of the run itself from errors that
// prevented the run from starting.
func exitCodeFor(err error) int {
	if errors.Is(err, errDeclarationsFailed) {
		return exitRunFailed
	}
	switch apperrors.GetCode(err) {
	case apperrors.CodeConfigValidation,
		apperrors.CodeConfigReadError,
		apperrors.CodeConfigParseError,
		apperrors.CodeManifestReadError,
		apperrors.CodeManifestParseError,
		apperrors.CodeMalformedDeclaration,
		apperrors.CodeUnresolvedDependency,
		apperrors.CodeCyclicDependency:
		return exitPreRunFail
	}
	return exitRunFailed
}

func init() {
	rootCmd.AddCommand(graphCmd)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default is .converge.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "", "Path to the resource manifest (.json or .hcl)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report planned changes without applying them")
	rootCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Retries per provider operation on transient failures")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall run timeout (e.g. 10m); 0 disables it")
	rootCmd.Flags().String("reporter", "text", "Report format (text, json)")
	rootCmd.Flags().String("provider", "memory", "Provider adapter (aws, memory)")

	viper.BindPFlag("settings.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("settings.log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("manifest.path", rootCmd.PersistentFlags().Lookup("manifest"))
	viper.BindPFlag("settings.dry_run", rootCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("settings.max_retries", rootCmd.Flags().Lookup("max-retries"))
	viper.BindPFlag("settings.timeout", rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("settings.reporter", rootCmd.Flags().Lookup("reporter"))
	viper.BindPFlag("provider.type", rootCmd.Flags().Lookup("provider"))

	viper.SetEnvPrefix("CONVERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func initializeConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".converge")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return apperrors.Wrap(err, apperrors.CodeConfigReadError, "failed to read config file")
		}
	}
	return nil
}
