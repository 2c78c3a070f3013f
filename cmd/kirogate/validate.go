package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kiro-hq/gateway/pkg/audit"
	"kiro-hq/gateway/pkg/cli"
	"kiro-hq/gateway/pkg/config"
)

var validateFlags struct {
	show bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file, apply environment overrides and check every
setting. Each invalid field is reported with its path.

Examples:
  # Validate config.yaml in the working directory
  kirogate validate

  # Validate a specific file and print the effective configuration
  kirogate validate --config /etc/kirogate/config.yaml --show`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.show, "show", false, "print the effective configuration with secrets redacted")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) && len(verr.Errors) > 0 {
			for _, fe := range verr.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", fe.Error())
			}
			return cli.NewConfigError("", fmt.Sprintf("%d invalid setting(s)", len(verr.Errors)))
		}
		return cli.NewConfigError("", err.Error())
	}

	out := cmd.OutOrStdout()
	if path == "" {
		fmt.Fprintln(out, "✓ Built-in defaults are valid")
	} else {
		fmt.Fprintf(out, "✓ %s is valid\n", path)
	}

	if !validateFlags.show {
		return nil
	}
	data, err := yaml.Marshal(redactedConfig(cfg))
	if err != nil {
		return cli.NewCommandError("validate", err)
	}
	_, err = out.Write(data)
	return err
}

// redactedConfig returns a copy of cfg with credentials masked.
func redactedConfig(cfg *config.Config) *config.Config {
	c := *cfg
	if c.Admin.Token != "" {
		c.Admin.Token = audit.RedactAPIKey(c.Admin.Token)
	}
	keys := make([]string, len(c.Auth.APIKeys))
	for i, k := range c.Auth.APIKeys {
		keys[i] = audit.RedactAPIKey(k)
	}
	c.Auth.APIKeys = keys
	return &c
}
