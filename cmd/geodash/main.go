// Command geodash is the CLI edge of spec.md §6.2: one subcommand per core
// operation, a thin wrapper over the Facade. It does not re-implement
// request validation beyond what the core itself defensively clamps.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagDBURI    string
	flagLogLevel string
	flagConfig   string
)

var rootCmd = &cobra.Command{
	Use:           "geodash",
	Short:         "GeoDash city lookup and geocoding CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBURI, "db-uri", "", "database URI (sqlite://path or postgres://...), overrides config")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(
		searchCmd,
		cityCmd,
		coordinatesCmd,
		countriesCmd,
		statesCmd,
		citiesInStateCmd,
		importCmd,
		tableInfoCmd,
		serverCmd,
		configCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
