package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/auth"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/digest"
	"github.com/zulandar/switchboard/internal/notify"
	"github.com/zulandar/switchboard/internal/server"
	syncpkg "github.com/zulandar/switchboard/internal/sync"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Switchboard server",
		Long:  "Runs the Slack webhook listener, the mapping API, and the daily digest schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	// Secrets may live in .env rather than the shell environment.
	if err := godotenv.Load(); err == nil {
		log.Printf("serve: loaded environment from .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Port
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}

	var notifier syncpkg.Notifier
	var digestNotifier digest.Notifier
	if cfg.Notify.DiscordToken != "" {
		discord, err := notify.NewDiscord(cfg.Notify.DiscordToken, cfg.Notify.DiscordChannel)
		if err != nil {
			return err
		}
		notifier = discord
		digestNotifier = discord
	}

	orchestrator := syncpkg.New(syncpkg.Opts{
		DB:       gormDB,
		Notifier: notifier,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if cfg.Digest.Enabled && digestNotifier != nil {
		sched, err := digest.Start(gormDB, digestNotifier, cfg.Digest.Cron)
		if err != nil {
			return err
		}
		defer sched.Stop()
		fmt.Fprintf(cmd.OutOrStdout(), "Daily digest scheduled: %s\n", cfg.Digest.Cron)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Switchboard listening on :%d\n", port)
	return server.Start(ctx, server.StartOpts{
		DB:           gormDB,
		Verifier:     &auth.Verifier{Secret: cfg.Slack.SigningSecret},
		Orchestrator: orchestrator,
		Port:         port,
	})
}
