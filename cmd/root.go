// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/horsie/harvester/internal/app"
	"github.com/horsie/harvester/internal/config"
	"github.com/horsie/harvester/internal/harvest"
	"github.com/horsie/harvester/internal/logging"
	"github.com/horsie/harvester/internal/storage"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands need from the service container.
// It is an interface so tests can inject a fake.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Storage() storage.Provider
	Harvester() (*harvest.Harvester, error)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.NewApp(ctx, cfg, logger)
}

type rootOptions struct {
	cfgFile string
	envFile string
	debug   bool
}

// appHolder keeps the services built before a subcommand so they can be closed
// after it returns. Cobra skips post-run hooks when RunE fails.
type appHolder struct {
	app App
}

// Close releases the services, if any were built.
func (h *appHolder) Close() {
	if h.app != nil {
		h.app.Close()
		h.app = nil
	}
}

func newRootCmd(holder *appHolder) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests upcoming race entry lists into a JSON dataset.",
		Long: `harvester probes a bounded space of guessed race identifiers, fetches each
entry-list page, keeps the races that fall inside the recency window, and writes
races.json plus a run summary to the configured storage backend.`,
		SilenceUsage: true,

		// Runs before every subcommand: load env and config, build the logger and services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.debug {
				cfg.Logging.Level = "debug"
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			holder.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before config; missing is fine")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCandidatesCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	holder := &appHolder{}
	err := newRootCmd(holder).ExecuteContext(context.Background())
	holder.Close()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
