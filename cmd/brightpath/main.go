// cmd/brightpath/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// Global flags
type globalFlags struct {
	metricsFile string
	jsonOutput  bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "brightpath",
		Short: "Convert LCA inventories between Brightway and SimaPro",
		Long: `brightpath converts life cycle inventories between the Brightway and
SimaPro formats.

Inventories are normalized, linked against the reference databases held in
the configured store, migrated between ecoinvent releases and written either
as a SimaPro CSV export or as a Brightway database in the store.

Configuration is read from the environment and an optional .env file.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "Write inventory gauges to this Prometheus textfile after the run")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(newToSimaproCmd(flags))
	rootCmd.AddCommand(newToBrightwayCmd(flags))
	rootCmd.AddCommand(newImportCmd(flags))
	rootCmd.AddCommand(newStatsCmd(flags))
	rootCmd.AddCommand(newMigrationCmd(flags))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
