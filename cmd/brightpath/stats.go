// cmd/brightpath/stats.go
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightpath-lca/brightpath/pkg/model"
	"github.com/brightpath-lca/brightpath/pkg/stats"
	"github.com/brightpath-lca/brightpath/pkg/tabular"
)

func newStatsCmd(global *globalFlags) *cobra.Command {
	var (
		database string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "stats [inventory.csv]",
		Short: "Report linking statistics of an inventory",
		Long: `Report dataset and exchange counts and list the unlinked exchanges of an
inventory table, or of a database of the store when --database is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if (len(args) == 0) == (database == "") {
				return errors.New("give either an inventory table or --database")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, global)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			var activities []*model.Activity
			if database != "" {
				activities, err = a.store.LoadActivities(ctx, database)
			} else {
				activities, err = tabular.NewReader(nil, a.logger.Named("tabular")).ReadFile(args[0], "inventory")
			}
			if err != nil {
				return err
			}

			s := stats.Compute(activities)
			a.collector.Observe(s)
			unlinked := stats.UnlinkedExchanges(activities)

			if global.jsonOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					Statistics stats.Statistics         `json:"statistics"`
					Unlinked   []stats.UnlinkedExchange `json:"unlinked"`
				}{s, unlinked})
			}
			fmt.Fprint(cmd.OutOrStdout(), s.Report())
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), stats.UnlinkedReport(unlinked, limit))
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "Database of the store to report on")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of unlinked exchanges listed (0 for all)")

	return cmd
}
