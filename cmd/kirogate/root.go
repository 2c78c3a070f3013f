package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kiro-hq/gateway/pkg/cli"
	"kiro-hq/gateway/pkg/config"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "kirogate",
	Short: "Kirogate - OpenAI and Anthropic compatible gateway for Kiro",
	Long: `Kirogate exposes the Kiro assistant through OpenAI-compatible and
Anthropic-compatible chat APIs.

It runs an HTTP gateway that:
  - Accepts /v1/chat/completions and /v1/messages requests
  - Spreads load over a pool of Kiro accounts with cooldowns
  - Refreshes access tokens for social and IAM Identity Center logins
  - Records request traces for the admin API

Account, model and API key commands work directly on the configured database.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a status derived from the
// returned error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml, csv")
}

// configPath returns the configuration file to load. The default path is
// optional: when it does not exist the built-in defaults and environment
// overrides are used instead.
func configPath(cmd *cobra.Command) string {
	if cmd.Flags().Changed("config") {
		return cfgFile
	}
	if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return cfgFile
}

// loadConfig initializes the process-wide configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.Initialize(configPath(cmd)); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return config.GetConfig(), nil
}

// printResult writes data to the command's output in the --output format.
func printResult(cmd *cobra.Command, data any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}
