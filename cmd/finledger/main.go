package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/app"
	"github.com/Evgen-Mutagen/finledger/internal/util/logger"
)

func main() {
	cmd, err := newRootCommand()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand layers the configuration: .env, then CONFIG_FILE, then flags,
// then environment variables.
func newRootCommand() (*cobra.Command, error) {
	if err := app.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := app.DefaultConfig()
	if err := cfg.LoadFile(os.Getenv("CONFIG_FILE")); err != nil {
		return nil, err
	}

	cmd := &cobra.Command{
		Use:          "finledger",
		Short:        "Personal finance ledger",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			if err := logger.Init(cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	cfg.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCommand(cfg))
	cmd.AddCommand(newMigrateCommand(cfg))
	return cmd, nil
}

func newServeCommand(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *app.Config) error {
	application, err := app.New(cfg, logger.Log)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Log.Error("Failed to release resources", zap.Error(err))
		}
	}()

	return application.Run(ctx)
}

func newMigrateCommand(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Migrate(cfg, logger.Log); err != nil {
				return err
			}
			logger.Log.Info("Migrations applied",
				zap.String("driver", cfg.DatabaseDriver),
				zap.String("dsn", cfg.MaskDBPassword()))
			return nil
		},
	}
}
