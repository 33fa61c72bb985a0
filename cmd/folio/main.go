package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile   string
	logLevel     string
	logFormat    string
	outputFormat string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "folio",
		Short:         "Folio - portfolio content sync client",
		Long:          "Loads portfolio content into local entity stores, applies optimistic admin edits and manages visitor preferences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")

	cmd.AddCommand(
		statusCmd(),
		showCmd(),
		retryCmd(),
		adminCmd(),
		prefsCmd(),
		serveCmd(),
	)
	return cmd
}
