package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clinicimport/internal/core"
	"github.com/JonMunkholm/clinicimport/internal/core/tables"
)

func newTemplateCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:       "template <kind>",
		Short:     "Write the CSV template of an import kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(core.KindPersons), string(core.KindEvents)},
		RunE: func(cmd *cobra.Command, args []string) error {
			def, ok := tables.Registry().Get(core.Kind(args[0]))
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrUnknownKind, args[0])
			}

			data, err := core.TemplateCSV(def)
			if err != nil {
				return err
			}

			path := filepath.Join(outDir, core.TemplateFileName(def.Kind, time.Now()))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Directory to write the template to")

	return cmd
}
