package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"kiro-hq/gateway/pkg/cli"
	"kiro-hq/gateway/pkg/models"
	"kiro-hq/gateway/pkg/pool"
	"kiro-hq/gateway/pkg/tokens"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalogue",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled models",
	Args:  cobra.NoArgs,
	RunE:  listModels,
}

var modelsResolveCmd = &cobra.Command{
	Use:   "resolve <name>...",
	Short: "Show which upstream model a requested name maps to",
	Long: `Resolve requested model names the way the gateway does, including the
thinking suffix and the fallback to the default model.

Examples:
  kirogate models resolve gpt-4o claude-sonnet-4-thinking`,
	Args: cobra.MinimumNArgs(1),
	RunE: resolveModels,
}

var modelsUpstreamCmd = &cobra.Command{
	Use:   "upstream <account-id>",
	Short: "List the models the upstream offers an account",
	Long: `Ask the upstream which models the account may use and mark the ones
missing from the local catalogue.

Examples:
  kirogate models upstream 3f0c2a9e-4d8b-4a51-9a7e-1f2d3c4b5a69`,
	Args: cobra.ExactArgs(1),
	RunE: upstreamModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsResolveCmd, modelsUpstreamCmd)
}

type modelList []models.ModelInfo

func (l modelList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"ID", "NAME", "MAX TOKENS", "OWNED BY"}}
	for _, m := range l {
		t.Rows = append(t.Rows, []string{m.ID, m.DisplayName, strconv.Itoa(m.MaxTokens), m.OwnedBy})
	}
	return t
}

// resolution is one row of `models resolve`.
type resolution struct {
	Requested string `json:"requested" yaml:"requested"`
	ModelID   string `json:"model_id" yaml:"model_id"`
	Thinking  bool   `json:"thinking" yaml:"thinking"`
	Matched   bool   `json:"matched" yaml:"matched"`
}

type resolutionList []resolution

func (l resolutionList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"REQUESTED", "MODEL", "THINKING", "MATCHED"}}
	for _, r := range l {
		t.Rows = append(t.Rows, []string{r.Requested, r.ModelID, strconv.FormatBool(r.Thinking), strconv.FormatBool(r.Matched)})
	}
	return t
}

func listModels(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return printResult(cmd, modelList(a.resolver.ListModels()))
}

func resolveModels(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := make(resolutionList, 0, len(args))
	for _, name := range args {
		res := a.resolver.Resolve(name)
		out = append(out, resolution{
			Requested: res.Requested,
			ModelID:   res.ModelID,
			Thinking:  res.Thinking,
			Matched:   res.Matched,
		})
	}
	return printResult(cmd, out)
}

// upstreamModel is one row of `models upstream`.
type upstreamModel struct {
	ID     string `json:"id" yaml:"id"`
	Listed bool   `json:"listed" yaml:"listed"`
}

type upstreamModelList []upstreamModel

func (l upstreamModelList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"ID", "IN CATALOGUE"}}
	for _, m := range l {
		t.Rows = append(t.Rows, []string{m.ID, strconv.FormatBool(m.Listed)})
	}
	return t
}

func upstreamModels(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, ok := a.pool.Get(args[0])
	if !ok {
		return cli.NewCommandError("models upstream", fmt.Errorf("%w: %s", pool.ErrNotFound, args[0]))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	token, err := a.tokens.AccessToken(ctx, rec.ID, rec.Credentials, rec.AuthMethod)
	if err != nil {
		return cli.NewCommandError("models upstream", fmt.Errorf("failed to obtain access token: %w", err))
	}
	var profileARN string
	if creds, err := tokens.ParseCredentials(rec.Credentials); err == nil {
		profileARN = creds.ProfileARN
	}
	ids, err := a.upstream.ListAvailableModels(ctx, token, profileARN)
	if err != nil {
		return cli.NewCommandError("models upstream", err)
	}

	out := make(upstreamModelList, 0, len(ids))
	for _, id := range ids {
		_, listed := a.resolver.Model(id)
		out = append(out, upstreamModel{ID: id, Listed: listed})
	}
	return printResult(cmd, out)
}
