package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/sessionkit/internal"
	"github.com/spf13/cobra"
)

func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:   "sessiond",
		Short: "Session token service",
		Long: `sessiond issues short-lived access tokens and single-use refresh
tokens, and revokes refresh tokens on logout.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(getenv), newGenSecretCmd())
	return root
}

func newServeCmd(getenv func(string) string) *cobra.Command {
	var (
		addr      string
		redisURL  string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. Settings come from SESSIONKIT_* environment
variables (SECRET_KEY, REDIS_URL and the other legacy names are accepted);
flags override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(getenv)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("redis-url") {
				cfg.RedisURL = redisURL
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}

			logger := newLogger(logConfig{
				Service: "sessiond",
				Env:     cfg.Env,
				Level:   cfg.LogLevel,
				Format:  cfg.LogFormat,
			}, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "redis:// connection string")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "json or text")
	return cmd
}

func newGenSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random HS256 signing secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := internal.NewSecret(32)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(secret))
			return err
		},
	}
}
