package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"kiro-hq/gateway/pkg/cli"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/tokens"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the account pool",
	Long: `Manage the Kiro accounts the gateway spreads requests over.

These commands work on the configured database. A running server picks up
changes made here only after a restart; use the admin API to change a live
pool.`,
}

var accountsAddFlags struct {
	name            string
	authMethod      string
	refreshToken    string
	region          string
	clientID        string
	clientSecret    string
	profileARN      string
	credentialsFile string
}

var accountsImportFlags struct {
	skipDuplicates bool
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts and their counters",
	Args:  cobra.NoArgs,
	RunE:  listAccounts,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an account",
	Long: `Add one account from flags or from a credentials JSON file.

Examples:
  # Add a social login account
  kirogate accounts add --name personal --refresh-token "$TOKEN"

  # Add an IAM Identity Center account
  kirogate accounts add --name work --auth-method idc \
    --refresh-token "$TOKEN" --client-id "$ID" --client-secret "$SECRET"

  # Add from a credentials file
  kirogate accounts add --name work --credentials-file creds.json`,
	Args: cobra.NoArgs,
	RunE: addAccount,
}

var accountsImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import accounts from YAML, TOML or JSON files",
	Long: `Import accounts from one or more files. A file holds a top-level
"accounts" list, or is a single Kiro IDE token file.

Examples:
  # Import a list of accounts
  kirogate accounts import accounts.yaml

  # Import the IDE token, skipping refresh tokens already in the pool
  kirogate accounts import --skip-duplicates ~/.aws/sso/cache/kiro-auth-token.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: importAccounts,
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an account",
	Args:  cobra.ExactArgs(1),
	RunE:  removeAccount,
}

var accountsStatusCmd = &cobra.Command{
	Use:   "status <id> <active|disabled|invalid>",
	Short: "Set an account's status",
	Args:  cobra.ExactArgs(2),
	RunE:  setAccountStatus,
}

var accountsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pool totals",
	Args:  cobra.NoArgs,
	RunE:  accountStats,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsImportCmd,
		accountsRemoveCmd, accountsStatusCmd, accountsStatsCmd)

	f := accountsAddCmd.Flags()
	f.StringVar(&accountsAddFlags.name, "name", "account", "display name")
	f.StringVar(&accountsAddFlags.authMethod, "auth-method", "social", "auth method: social, idc, builderid")
	f.StringVar(&accountsAddFlags.refreshToken, "refresh-token", "", "refresh token")
	f.StringVar(&accountsAddFlags.region, "region", "", "auth region (defaults to upstream.region)")
	f.StringVar(&accountsAddFlags.clientID, "client-id", "", "OIDC client id (idc)")
	f.StringVar(&accountsAddFlags.clientSecret, "client-secret", "", "OIDC client secret (idc)")
	f.StringVar(&accountsAddFlags.profileARN, "profile-arn", "", "CodeWhisperer profile ARN")
	f.StringVar(&accountsAddFlags.credentialsFile, "credentials-file", "", "JSON file holding the credentials")

	accountsImportCmd.Flags().BoolVar(&accountsImportFlags.skipDuplicates, "skip-duplicates", false, "skip accounts whose refresh token is already pooled")
}

// openApp loads the configuration and builds the shared components for an
// offline command.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := buildApp(cmd.Context(), cfg, commandLogger(cmd.ErrOrStderr()), hooks{})
	if err != nil {
		return nil, cli.NewCommandError(cmd.CommandPath(), err)
	}
	return a, nil
}

// accountList renders pool records.
type accountList []pool.Record

func (l accountList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"ID", "NAME", "METHOD", "STATUS", "REQUESTS", "ERRORS", "INPUT", "OUTPUT", "CREDITS", "LAST USED"}}
	for _, r := range l {
		status := string(r.Status)
		if r.CoolingDown(time.Now()) {
			status = "cooldown"
		}
		t.Rows = append(t.Rows, []string{
			r.ID,
			r.Name,
			r.AuthMethod,
			status,
			strconv.FormatInt(r.Requests, 10),
			strconv.FormatInt(r.Errors, 10),
			strconv.FormatInt(r.InputTokens, 10),
			strconv.FormatInt(r.OutputTokens, 10),
			r.Credits.StringFixed(4),
			formatTime(r.LastUsedAt),
		})
	}
	return t
}

// poolStats renders pool totals as key/value rows.
type poolStats pool.Stats

func (s poolStats) Table() *cli.Table {
	return &cli.Table{
		Headers: []string{"METRIC", "VALUE"},
		Rows: [][]string{
			{"strategy", s.Strategy},
			{"total", strconv.Itoa(s.Total)},
			{"active", strconv.Itoa(s.Active)},
			{"cooldown", strconv.Itoa(s.Cooldown)},
			{"invalid", strconv.Itoa(s.Invalid)},
			{"disabled", strconv.Itoa(s.Disabled)},
			{"requests", strconv.FormatInt(s.TotalRequests, 10)},
			{"errors", strconv.FormatInt(s.TotalErrors, 10)},
			{"input_tokens", strconv.FormatInt(s.TotalInputTokens, 10)},
			{"output_tokens", strconv.FormatInt(s.TotalOutputTokens, 10)},
			{"credits", s.TotalCredits.StringFixed(4)},
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func listAccounts(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return printResult(cmd, accountList(a.pool.List()))
}

func accountStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return printResult(cmd, poolStats(a.pool.Stats()))
}

func addAccount(cmd *cobra.Command, args []string) error {
	creds, err := addCredentials()
	if err != nil {
		return cli.NewConfigError("credentials", err.Error())
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := addPooled(cmd.Context(), a.pool, cli.AccountSpec{
		Name:        accountsAddFlags.name,
		AuthMethod:  accountsAddFlags.authMethod,
		Credentials: creds,
	})
	if err != nil {
		return cli.NewCommandError("accounts add", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Added account %s (%s)\n", rec.ID, rec.Name)
	return nil
}

// addCredentials builds the credentials document from the add flags. Flags
// override fields read from --credentials-file.
func addCredentials() (map[string]any, error) {
	creds := map[string]any{}
	if path := accountsAddFlags.credentialsFile; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	set := func(key, val string) {
		if val != "" {
			creds[key] = val
		}
	}
	set("refreshToken", accountsAddFlags.refreshToken)
	set("region", accountsAddFlags.region)
	set("clientId", accountsAddFlags.clientID)
	set("clientSecret", accountsAddFlags.clientSecret)
	set("profileArn", accountsAddFlags.profileARN)
	return creds, nil
}

// addPooled validates spec and adds it to p.
func addPooled(ctx context.Context, p *pool.Pool, spec cli.AccountSpec) (pool.Record, error) {
	method, err := tokens.ParseMethod(spec.AuthMethod)
	if err != nil {
		return pool.Record{}, err
	}
	raw, err := spec.CredentialsJSON()
	if err != nil {
		return pool.Record{}, err
	}
	creds, err := tokens.ParseCredentials(raw)
	if err != nil {
		return pool.Record{}, err
	}
	if creds.RefreshToken == "" {
		return pool.Record{}, tokens.ErrMissingRefreshToken
	}
	if method == tokens.MethodIDC && creds.ClientID == "" && creds.ClientIDHash == "" {
		return pool.Record{}, errors.New("idc accounts need clientId and clientSecret, or a clientIdHash of a registered client")
	}
	name := spec.Name
	if name == "" {
		name = "account"
	}
	return p.Add(ctx, name, raw, method.String())
}

func importAccounts(cmd *cobra.Command, args []string) error {
	var specs []cli.AccountSpec
	for _, path := range args {
		s, err := cli.ReadAccountFile(path)
		if err != nil {
			return cli.NewConfigError(path, err.Error())
		}
		specs = append(specs, s...)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	known := map[string]bool{}
	for _, rec := range a.pool.List() {
		known[gjson.Get(rec.Credentials, "refreshToken").String()] = true
	}

	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "importing")
	progress.Start(len(specs))
	var added, skipped int
	var failures []error
	for _, spec := range specs {
		token, _ := spec.Credentials["refreshToken"].(string)
		if accountsImportFlags.skipDuplicates && token != "" && known[token] {
			skipped++
			progress.Advance(true)
			continue
		}
		if _, err := addPooled(cmd.Context(), a.pool, spec); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", spec.Name, err))
			progress.Advance(false)
			continue
		}
		known[token] = true
		added++
		progress.Advance(true)
	}
	progress.Finish()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Imported %d account(s)", added)
	if skipped > 0 {
		fmt.Fprintf(out, ", skipped %d duplicate(s)", skipped)
	}
	fmt.Fprintln(out)
	for _, err := range failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
	}
	if len(failures) > 0 {
		return cli.NewCommandError("accounts import", fmt.Errorf("%d account(s) failed", len(failures)))
	}
	return nil
}

func removeAccount(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.pool.Remove(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("accounts remove", err)
	}
	if !removed {
		return cli.NewCommandError("accounts remove", fmt.Errorf("%w: %s", pool.ErrNotFound, args[0]))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed account %s\n", args[0])
	return nil
}

func setAccountStatus(cmd *cobra.Command, args []string) error {
	status, err := pool.ParseStatus(args[1])
	if err != nil {
		return cli.NewConfigError("status", err.Error())
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pool.SetStatus(cmd.Context(), args[0], status); err != nil {
		return cli.NewCommandError("accounts status", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Account %s is now %s\n", args[0], status)
	return nil
}
