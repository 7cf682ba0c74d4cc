// Package cmd defines the adspend CLI: a one-shot scrape and the HTTP service.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/config"
	"github.com/JakeFAU/sirup-adspend/internal/logging"
)

// configKeyAnnotation marks a flag as an override for a config key.
const configKeyAnnotation = "adspend/config-key"

// envKeyType is the key for storing the loaded environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env carries what every subcommand needs after startup.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// loadEnv is a variable so tests can inject a fixed environment.
var loadEnv = func(cfgPath string, fs *pflag.FlagSet) (*env, error) {
	cfg, err := config.Load(cfgPath, config.WithFlags(fs, flagBindings(fs)))
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "adspend",
		Short: "Find advertising-spend packages in the SIRUP procurement plan.",
		Long: `adspend walks every work unit of a government organization in the SIRUP
procurement plan, keeps the packages whose name or work description
mentions advertising or publication, and reports them as a table, CSV,
XLSX, or through an HTTP API.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cfgPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			zap.ReplaceGlobals(e.logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, e))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok && e != nil {
				_ = e.logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newScrapeCmd(), newServeCmd())
	return cmd
}

// bindFlag ties a flag to a config key so Viper layers it above file and env.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func flagBindings(fs *pflag.FlagSet) map[string]string {
	bindings := map[string]string{}
	fs.VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) == 1 {
			bindings[f.Name] = keys[0]
		}
	})
	return bindings
}

func envFrom(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// Execute runs the CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
