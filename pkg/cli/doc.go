/*
Package cli provides helpers for the kirogate command.

Output Formatting:

Commands print results as an aligned table (text), JSON, YAML or CSV.
Results that implement Tabular are rendered through their table in text
and CSV modes:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, accounts); err != nil {
		return err
	}

Account Import:

ReadAccountFile loads accounts from YAML, TOML or JSON files, including the
token file written by the Kiro IDE.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
