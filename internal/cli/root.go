package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "roadsense",
	Short: "Roadsense - crowdsourced road-quality sensing toolkit",
	Long: `Roadsense records accelerometer and GPS data while a vehicle travels,
detects shock events indicative of road damage, persists per-trip sensor
logs and uploads them to a backend.

The record command runs a full sensing session against the built-in drive
simulator; receive runs the ingest backend the uploads land on.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "roadsense-data",
		"Directory for trip logs, the trip index and preferences")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(tripsCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}
