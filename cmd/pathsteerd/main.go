package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "pathsteerd",
	Short: "Multi-uplink failover controller for vehicle/mobile routers",
	Long: `pathsteerd supervises a set of cellular, satellite, and wired uplinks,
watching for link degradation and actuating a make-before-break switch to a
healthy backup before the active path fails outright.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/pathsteer/pathsteerd.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
}

// Commands are defined in separate files:
// - runCmd in run.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
