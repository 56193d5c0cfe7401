// Package cli implements the dutyctl command line client.
package cli

import (
	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "dutyctl",
	Short: "Consumer Duty monitoring CLI",
	Long: `dutyctl is the command-line interface for the dutylens monitoring
service.

Run pillar analyses against local CSV extracts, manage structured rule
sets, and upload datasets to a running dutylens server.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "dutylens server URL")
}
