// cmd/brightpath/convert.go
package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brightpath-lca/brightpath/pkg/match"
	"github.com/brightpath-lca/brightpath/pkg/store"
	"github.com/brightpath-lca/brightpath/pkg/tabular"
)

// convertFlags are shared by both conversion directions
type convertFlags struct {
	database     string
	migrations   []string
	dropUnlinked bool
	confirmDrop  bool
}

func (f *convertFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.database, "database", "d", "", "Inventory database name (defaults to the input file name)")
	cmd.Flags().StringArrayVarP(&f.migrations, "migration", "m", nil, "Migration file to apply, in order (repeatable)")
	cmd.Flags().BoolVar(&f.dropUnlinked, "drop-unlinked", false, "Remove exchanges still unlinked after migration")
	cmd.Flags().BoolVar(&f.confirmDrop, "confirm-drop", false, "Confirm --drop-unlinked")
}

// databaseFor returns the database flag or the input file name without extension
func (f *convertFlags) databaseFor(path string) string {
	if f.database != "" {
		return f.database
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func newToSimaproCmd(global *globalFlags) *cobra.Command {
	var (
		flags      convertFlags
		metadata   string
		exportName string
	)

	cmd := &cobra.Command{
		Use:   "to-simapro <inventory.csv>",
		Short: "Export a Brightway inventory table as SimaPro CSV",
		Long: `Read an inventory table, link it against the reference databases of the
store and write a SimaPro CSV file into the export directory.

The file is named simapro_<name>_<dd-mm-yyyy>.csv.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx, global)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			s, err := a.session(ctx, sessionOptions{
				metadata:   metadata,
				exportName: exportName,
				migrations: flags.migrations,
			})
			if err != nil {
				return err
			}

			activities, err := tabular.NewReader(s.Tracker(), a.logger.Named("tabular")).
				ReadFile(args[0], flags.databaseFor(args[0]))
			if err != nil {
				return err
			}

			res, err := s.ToSimapro(ctx, activities, a.options(flags.dropUnlinked, flags.confirmDrop))
			if err != nil {
				return err
			}
			if err := a.report(cmd.OutOrStdout(), res, s); err != nil {
				return err
			}
			if !global.jsonOutput {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", res.Path)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&metadata, "metadata", "", "Metadata document (YAML) with system descriptions, literature references and defaults")
	cmd.Flags().StringVar(&exportName, "export-name", "", "Name used in the export file name (default \"ecoinvent\")")

	return cmd
}

func newToBrightwayCmd(global *globalFlags) *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "to-brightway <simapro.csv>",
		Short: "Import a SimaPro CSV export as a Brightway database",
		Long: `Read a SimaPro CSV export, convert its processes to Brightway activities,
link and migrate them, and write them to the store as a database. Writing
replaces any database of the same name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx, global)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			s, err := a.session(ctx, sessionOptions{migrations: flags.migrations})
			if err != nil {
				return err
			}

			doc, err := s.ReadSimapro(args[0])
			if err != nil {
				return err
			}

			res, err := s.ToBrightway(ctx, doc, flags.databaseFor(args[0]), a.store, a.options(flags.dropUnlinked, flags.confirmDrop))
			if err != nil {
				return err
			}
			if err := a.store.Verify(ctx, res.Handle); err != nil {
				return fmt.Errorf("written database failed verification: %w", err)
			}
			return a.report(cmd.OutOrStdout(), res, s)
		},
	}

	flags.register(cmd)
	return cmd
}

func newImportCmd(global *globalFlags) *cobra.Command {
	var (
		database string
		flows    bool
	)

	cmd := &cobra.Command{
		Use:   "import <table.csv>",
		Short: "Load an inventory or biosphere flow table into the store unchanged",
		Long: `Load an inventory table into the store as-is, for example to provide the
ecoinvent reference database that conversions link against.

With --flows the table lists biosphere flows (columns code, name, categories
and unit) and is stored as the biosphere database, which defaults to the
configured one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx, global)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			if flows {
				if database == "" {
					database = a.cfg.BiosphereDatabase
				}
				return a.importFlows(cmd, args[0], database)
			}

			flags := convertFlags{database: database}
			name := flags.databaseFor(args[0])
			activities, err := tabular.NewReader(nil, a.logger.Named("tabular")).ReadFile(args[0], name)
			if err != nil {
				return err
			}
			match.LinkProduction(activities)

			h, err := a.store.Write(ctx, name, activities)
			if err != nil {
				return err
			}
			if err := a.store.Verify(ctx, h); err != nil {
				return err
			}

			if global.jsonOutput {
				return printJSON(cmd.OutOrStdout(), h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", h)
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (defaults to the input file name, or the biosphere database with --flows)")
	cmd.Flags().BoolVar(&flows, "flows", false, "The table lists biosphere flows")
	return cmd
}

// importFlows stores a biosphere flow table and checks the stored count
func (a *app) importFlows(cmd *cobra.Command, path, database string) error {
	ctx := cmd.Context()
	flows, err := tabular.NewReader(nil, a.logger.Named("tabular")).ReadFlowsFile(path, database)
	if err != nil {
		return err
	}
	if err := a.store.WriteFlows(ctx, database, flows); err != nil {
		return err
	}

	stored, err := a.store.LoadFlows(ctx, database)
	if err != nil {
		return err
	}
	if len(stored) != len(flows) {
		return fmt.Errorf("%w: %s holds %d flows, wrote %d", store.ErrCountMismatch, database, len(stored), len(flows))
	}

	if a.flags.jsonOutput {
		return printJSON(cmd.OutOrStdout(), struct {
			Database string `json:"database"`
			Flows    int    `json:"flows"`
		}{database, len(flows)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d flows into %s\n", len(flows), database)
	return nil
}
