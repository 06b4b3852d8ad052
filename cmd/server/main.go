package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripline/chat-server/internal/app"
	"github.com/tripline/chat-server/internal/auth"
	"github.com/tripline/chat-server/internal/config"
	logpkg "github.com/tripline/chat-server/internal/log"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chat-server",
		Short:         "Real-time chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), tokenCmd())
	return root
}

func serveCmd() *cobra.Command {
	var configPath string
	var addr string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := logpkg.New(logLevel)
			cfg, source, err := config.Load(bootLogger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			var overrides config.Config
			if cmd.Flags().Changed("addr") {
				overrides.Addr = addr
			}
			if cmd.Flags().Changed("log-level") {
				overrides.LogLevel = logLevel
			}
			cfg.UpdateFrom(overrides)

			logger := logpkg.New(cfg.LogLevel)
			logger.Info().Str("config", source).Str("addr", cfg.Addr).Msg("starting chat server")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, &cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

// tokenCmd mints a JWT for local development and testing against the API.
func tokenCmd() *cobra.Command {
	var configPath string
	var userID string
	var name string
	var photo string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a development JWT",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := logpkg.Nop()
			cfg, _, err := config.Load(logger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if name == "" {
				name = userID
			}

			token, err := auth.GenerateToken(&auth.JWTConfig{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				TTL:      ttl,
			}, userID, name, photo)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed in the token")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to user id)")
	cmd.Flags().StringVar(&photo, "photo", "", "avatar URL")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
