package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arklim/chatsync/internal/app"
	"github.com/arklim/chatsync/internal/config"
	"github.com/arklim/chatsync/internal/log"
)

var (
	flagConfig    string
	flagToken     string
	flagAPIURL    string
	flagSocketURL string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:           "chatsync",
	Short:         "Terminal client for the chat backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "REST endpoint root (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSocketURL, "socket-url", "", "STOMP WebSocket endpoint (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(chatCmd, conversationsCmd, searchCmd, muteCmd, groupCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chatsync:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration with flag overrides applied on top.
func loadConfig(logger *zerolog.Logger) (config.Config, error) {
	cfg, _, err := config.Load(logger, flagConfig)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(config.Config{
		Token:      flagToken,
		APIBaseURL: flagAPIURL,
		SocketURL:  flagSocketURL,
		LogLevel:   flagLogLevel,
	})
	return cfg, nil
}

// buildApp is the shared bootstrap for subcommands needing the full wiring.
func buildApp() (*app.App, *zerolog.Logger, error) {
	bootLog := log.New("info")
	cfg, err := loadConfig(bootLog)
	if err != nil {
		return nil, nil, err
	}
	logger := log.NewWithWriter(cfg.LogLevel, os.Stderr)
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
