package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"kiro-hq/gateway/pkg/audit"
	"kiro-hq/gateway/pkg/cli"
	"kiro-hq/gateway/pkg/storage"
)

var keysFlags struct {
	name string
	key  string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage client API keys",
	Long: `Manage the API keys clients present in the Authorization or x-api-key
header. Keys stored here are accepted in addition to auth.api_keys from the
configuration.

Examples:
  # Create a key with a generated value
  kirogate keys add --name ci

  # Store a key you already hand out
  kirogate keys add --name laptop --key "sk-my-existing-key"

  # List keys (values are redacted)
  kirogate keys list`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	Args:  cobra.NoArgs,
	RunE:  listKeys,
}

var keysAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store a key",
	Args:  cobra.NoArgs,
	RunE:  addKey,
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE:  removeKey,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysListCmd, keysAddCmd, keysRemoveCmd)

	keysAddCmd.Flags().StringVar(&keysFlags.name, "name", "", "label for the key")
	keysAddCmd.Flags().StringVar(&keysFlags.key, "key", "", "key value (generated when empty)")
}

type keyList []storage.APIKey

func (l keyList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"KEY", "NAME", "ENABLED", "CREATED"}}
	for _, k := range l {
		t.Rows = append(t.Rows, []string{k.Key, k.Name, strconv.FormatBool(k.Enabled), formatTime(k.CreatedAt)})
	}
	return t
}

// generateKey returns a random key with the sk-kiro- prefix.
func generateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return "sk-kiro-" + hex.EncodeToString(b), nil
}

func listKeys(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	keys, err := a.store.ListAPIKeys(cmd.Context())
	if err != nil {
		return cli.NewCommandError("keys list", err)
	}
	for i := range keys {
		keys[i].Key = audit.RedactAPIKey(keys[i].Key)
	}
	return printResult(cmd, keyList(keys))
}

func addKey(cmd *cobra.Command, args []string) error {
	key := keysFlags.key
	if key == "" {
		var err error
		if key, err = generateKey(); err != nil {
			return cli.NewCommandError("keys add", err)
		}
	} else if len(key) < 8 {
		return cli.NewConfigError("key", "must be at least 8 characters")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	rec := storage.APIKey{Key: key, Name: keysFlags.name, Enabled: true, CreatedAt: time.Now()}
	if err := a.store.InsertAPIKey(cmd.Context(), rec); err != nil {
		return cli.NewCommandError("keys add", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Key stored")
	if keysFlags.key == "" {
		fmt.Fprintf(out, "  %s\n", key)
		fmt.Fprintln(out, "  Save this key now; it is only shown once.")
	}
	return nil
}

func removeKey(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteAPIKey(cmd.Context(), args[0]); err != nil {
		return cli.NewCommandError("keys remove", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Key removed")
	return nil
}
