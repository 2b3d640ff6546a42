// Package cmd defines and implements the CLI commands for the series-collector
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/app"
	"github.com/JakeFAU/series-collector/internal/config"
	"github.com/JakeFAU/series-collector/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

const shutdownTimeout = 10 * time.Second

// newApp is the application factory. It's a variable so tests can swap in
// collaborators.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command. The application built
// before the subcommand runs is stored in *built so the caller can close it
// whatever the subcommand returns.
func newRootCmd(built **app.App) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "series-collector",
		Short: "Collects book series metadata into a single report.",
		Long: `series-collector resolves a book title or storefront URL to its series,
walks every listing page, fetches each book with retries and backoff, and
exports one HTML or JSON report per series.`,
		SilenceUsage: true,

		// Build the application once the config file is known and hand it to
		// the subcommand through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			created, err := config.EnsureFile(cfgFile)
			if err != nil {
				return fmt.Errorf("prepare config file: %w", err)
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			if created {
				logger.Info("wrote default configuration", zap.String("path", cfgFile))
			}

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			*built = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file, created with defaults when missing")

	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// run executes the CLI with args. Progress sinks are flushed and cloud
// clients closed even when the command fails.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	var appInstance *app.App
	root := newRootCmd(&appInstance)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	defer func() {
		if appInstance != nil {
			closeApp(appInstance)
		}
	}()
	return root.ExecuteContext(ctx)
}

func closeApp(appInstance *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := appInstance.Close(ctx); err != nil {
		appInstance.Logger().Warn("error closing application services", zap.Error(err))
	}
	_ = appInstance.Logger().Sync()
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute(ctx context.Context) {
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
