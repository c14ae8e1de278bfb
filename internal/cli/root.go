// Package cli defines the godexd command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	confPath string
	debug    bool
	verbose  bool
	quiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "godexd",
	Short: "godexd runs a decentralized exchange daemon",
	Long: `godexd runs the helixdex engine suite: constant-product pools with
flash loans, yield farming, collateralized lending and a limit order
book, served over JSON-RPC and a websocket event stream.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&confPath, "conf", "", "path to TOML configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "force debug logging")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "lower the log level to info")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "raise the log level to error")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
