// cmd/brightpath/migration.go
package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/brightpath-lca/brightpath/pkg/migration"
)

func newMigrationCmd(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migration",
		Short: "Inspect and transform migration tables",
	}

	cmd.AddCommand(newMigrationCheckCmd(global))
	cmd.AddCommand(newMigrationInvertCmd())

	return cmd
}

// migrationSummary is the check report of one migration file
type migrationSummary struct {
	File         string             `json:"file"`
	Name         string             `json:"name"`
	Fields       []string           `json:"fields"`
	Replace      int                `json:"replace"`
	Disaggregate int                `json:"disaggregate"`
	Biosphere    int                `json:"biosphere"`
	Unbalanced   map[string]float64 `json:"unbalanced,omitempty"` // Disaggregations not summing to 1
}

func summarizeMigration(path string, t *migration.Table) migrationSummary {
	f := t.File()
	s := migrationSummary{
		File:         path,
		Name:         t.Name,
		Fields:       f.Fields,
		Replace:      len(f.Replace),
		Disaggregate: len(f.Disaggregate),
		Biosphere:    len(f.Biosphere),
	}
	for key, sum := range t.AllocationSums() {
		if math.Abs(sum-1) > 1e-9 {
			if s.Unbalanced == nil {
				s.Unbalanced = make(map[string]float64)
			}
			s.Unbalanced[key.String()] = sum
		}
	}
	return s
}

func newMigrationCheckCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <migration.yaml>...",
		Short: "Validate migration files",
		Long: `Load and validate migration files. Ambiguous source keys and structural
problems fail the check; disaggregations whose allocations do not sum to 1
are listed, since they scale the migrated amounts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries := make([]migrationSummary, 0, len(args))
			for _, path := range args {
				t, err := migration.LoadFile(path)
				if err != nil {
					return err
				}
				summaries = append(summaries, summarizeMigration(path, t))
			}

			if global.jsonOutput {
				return printJSON(cmd.OutOrStdout(), summaries)
			}

			out := cmd.OutOrStdout()
			for _, s := range summaries {
				fmt.Fprintf(out, "%s: %s OK (%d replace, %d disaggregate, %d biosphere)\n",
					s.File, s.Name, s.Replace, s.Disaggregate, s.Biosphere)

				keys := make([]string, 0, len(s.Unbalanced))
				for k := range s.Unbalanced {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  allocation of %s sums to %g\n", k, s.Unbalanced[k])
				}
			}
			return nil
		},
	}
}

func newMigrationInvertCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "invert <migration.yaml>",
		Short: "Write the table undoing the replace section of a migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := migration.LoadFile(args[0])
			if err != nil {
				return err
			}
			inv, err := t.Inverse()
			if err != nil {
				return err
			}

			f := inv.File()
			if err := migration.WriteFile(&f, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d replace entries)\n", output, len(f.Replace))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
