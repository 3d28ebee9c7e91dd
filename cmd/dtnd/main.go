// Command dtnd is a Bundle Protocol v6 node daemon: it terminates
// convergence layers, forwards bundles according to a routing policy, and
// exposes the application API (pkg/apiproto) and an admin/management
// surface (pkg/adminapi) applications and operators can reach it through.
package main

import (
	"fmt"
	"os"

	"github.com/cuemby/dtnd/pkg/log"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dtnd",
	Short: "dtnd - Delay-Tolerant Networking bundle node daemon",
	Long: `dtnd implements a Bundle Protocol v6 node: convergence-layer
adapters, contact-driven link management, a pluggable router, custody and
registration handling, and the application API a local program binds
endpoints and sends/receives bundles through.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("dtnd version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(regCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
