// Command yeardash serves the personal dashboard API and a few maintenance
// commands around it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"yeardash/internal/cli"
)

var (
	envFile string

	rootCmd = &cobra.Command{
		Use:           "yeardash",
		Short:         "Goals, recaps and multi-currency finances for the year",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file for local development (ignore errors in production/docker)
			if envFile != "" {
				cli.LoadEnvFile(envFile)
			} else {
				cli.LoadEnvFile()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd, reportCmd, themeCmd, workerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
