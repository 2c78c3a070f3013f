package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"kiro-hq/gateway/pkg/cli"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/upstream"
)

var usageCmd = &cobra.Command{
	Use:   "usage <account-id>",
	Short: "Show an account's credit usage",
	Long: `Refresh the account's access token and ask the upstream for its credit
allowance. A rotated refresh token is written back to the database.

Examples:
  kirogate usage 3f0c2a9e-4d8b-4a51-9a7e-1f2d3c4b5a69 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: showUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

type usageView upstream.UsageLimits

func (u usageView) Table() *cli.Table {
	rows := [][]string{
		{"usage_limit", u.UsageLimit.String()},
		{"current_usage", u.CurrentUsage.String()},
		{"available", u.Available.String()},
		{"days_until_reset", strconv.Itoa(u.DaysUntilReset)},
	}
	if u.FreeTrialActive {
		rows = append(rows,
			[]string{"free_trial_limit", u.FreeTrialLimit.String()},
			[]string{"free_trial_usage", u.FreeTrialUsage.String()})
	}
	if u.SubscriptionType != "" {
		rows = append(rows, []string{"subscription", u.SubscriptionType})
	}
	if u.UserEmail != "" {
		rows = append(rows, []string{"email", u.UserEmail})
	}
	return &cli.Table{Headers: []string{"FIELD", "VALUE"}, Rows: rows}
}

func showUsage(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, ok := a.pool.Get(args[0])
	if !ok {
		return cli.NewCommandError("usage", fmt.Errorf("%w: %s", pool.ErrNotFound, args[0]))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	token, err := a.tokens.AccessToken(ctx, rec.ID, rec.Credentials, rec.AuthMethod)
	if err != nil {
		return cli.NewCommandError("usage", fmt.Errorf("failed to obtain access token: %w", err))
	}
	usage, err := a.upstream.GetUsageLimits(ctx, token)
	if err != nil {
		return cli.NewCommandError("usage", err)
	}
	return printResult(cmd, usageView(usage))
}
