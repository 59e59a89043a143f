package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clinicimport/internal/config"
	"github.com/JonMunkholm/clinicimport/internal/core"
	"github.com/JonMunkholm/clinicimport/internal/core/tables"
	"github.com/JonMunkholm/clinicimport/internal/report"
	"github.com/JonMunkholm/clinicimport/internal/store/memory"
	"github.com/JonMunkholm/clinicimport/internal/store/postgres"
)

type importOptions struct {
	dryRun     bool
	reportPath string
	jsonOutput bool
	strict     bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <kind> <file>",
		Short: "Import a CSV file of patients (persons) or appointments (events)",
		Long: `Import a CSV file into the database.

With --dry-run the file is validated against an empty in-memory store: no
database is needed, and duplicates are only detected within the file.

Example: importctl import persons patients.csv --report erreurs.xlsx`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), core.Kind(args[0]), args[1], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate without writing to the database")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write failed rows to this .csv or .xlsx file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with an error when any row fails")

	return cmd
}

func runImport(ctx context.Context, stdout, stderr io.Writer, kind core.Kind, path string, opts importOptions) error {
	cfg, err := loadConfig(!opts.dryRun)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, opts.dryRun)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := core.NewService(tables.Registry(), store, cfg.Import)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := svc.Import(ctx, kind, filepath.Base(path), f, progressPrinter(stderr))
	if err != nil {
		// Fatal errors already carry the user-facing prefix
		return fmt.Errorf("%w\n%s", err, core.FormatUserError(err))
	}

	if opts.reportPath != "" && result.HasFailures() {
		if err := writeReport(opts.reportPath, result); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "failed rows written to %s\n", opts.reportPath)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printSummary(stdout, result, opts.dryRun)
	}

	if opts.strict && result.HasFailures() {
		return fmt.Errorf("%d rows failed", len(result.Errors))
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, dryRun bool) (core.Store, func(), error) {
	if dryRun {
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store := postgres.New(pool, postgres.TablesFrom(tables.Registry()),
		postgres.WithStatementTimeout(cfg.Database.StatementTimeout))
	return store, pool.Close, nil
}

// progressPrinter reports every tenth of the file, and the last row.
func progressPrinter(w io.Writer) core.ProgressFunc {
	last := -1
	return func(current, total int) {
		step := current * 10 / total
		if step != last || current == total {
			last = step
			fmt.Fprintf(w, "\r%d/%d rows", current, total)
			if current == total {
				fmt.Fprintln(w)
			}
		}
	}
}

func writeReport(path string, result *core.ImportResult) error {
	format, err := report.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(f, format, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, result *core.ImportResult, dryRun bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if dryRun {
		fmt.Fprintln(tw, "mode\tdry-run")
	}
	fmt.Fprintf(tw, "file\t%s\n", result.FileName)
	fmt.Fprintf(tw, "rows\t%d\n", result.TotalRows)
	fmt.Fprintf(tw, "imported\t%d\n", result.Success)
	fmt.Fprintf(tw, "duplicates\t%d\n", result.Duplicates)
	fmt.Fprintf(tw, "errors\t%d\n", len(result.Errors))
	tw.Flush()

	shown, hidden := result.ErrorsUpTo(20)
	for _, e := range shown {
		fmt.Fprintf(w, "  ligne %d: %s\n", e.Row, e.Message)
	}
	if hidden > 0 {
		fmt.Fprintf(w, "  … %d more\n", hidden)
	}
}
