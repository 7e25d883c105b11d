package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdelaire/botauth/core"
	"github.com/jdelaire/botauth/core/auth"
	"github.com/jdelaire/botauth/core/botconfig"
	"github.com/jdelaire/botauth/core/configwatch"
	"github.com/jdelaire/botauth/core/policy"
	"github.com/jdelaire/botauth/internal/logging"
)

const configPollInterval = 2 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Register configured bots and answer requests on the Unix socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			envFile, _ := cmd.Flags().GetString("env-file")
			watch, _ := cmd.Flags().GetBool("watch")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath, envFile, watch)
		},
	}
	cmd.Flags().String("config", defaultConfigPath, "Bot configuration file")
	cmd.Flags().Bool("watch", true, "Register bots added to the config file while running")
	return cmd
}

func runServe(ctx context.Context, configPath, envFile string, watch bool) error {
	cfg, resolver, logger, err := setup(configPath, envFile)
	if err != nil {
		return err
	}

	srv := core.NewServer(cfg.Socket, resolver, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer srv.Shutdown()

	if watch {
		reloader := core.NewReloader(resolver.Registry(), logger)
		watcher := configwatch.New(configPollInterval, logger)
		watcher.Watch(configPath, reloader.ReloadBots)
		go watcher.Run(ctx)
	}

	logger.Info("botauthd ready", "bots", resolver.Registry().Names(), "max_auth_age", cfg.MaxAuthAge())
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// setup loads config, builds the logger and registers every configured bot.
// Any bot that cannot be registered is a startup error.
func setup(configPath, envFile string) (*botconfig.Config, *core.Resolver, *slog.Logger, error) {
	if err := botconfig.LoadDotEnv(envFile); err != nil {
		return nil, nil, nil, err
	}

	cfg, err := botconfig.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	reg := auth.NewRegistry()
	if _, err := core.RegisterBots(reg, cfg.Bots); err != nil {
		return nil, nil, nil, fmt.Errorf("register bots: %w", err)
	}

	resolver := core.NewResolver(reg, logger, core.WithFreshness(policy.New(cfg.MaxAuthAge())))
	return cfg, resolver, logger, nil
}
