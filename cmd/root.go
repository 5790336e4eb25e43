// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sipscan",
	Short: "sipscan - SIP REGISTER/INVITE extractor for packet captures",
	Long: `sipscan reads pcap and pcapng capture files, finds SIP REGISTER and INVITE
requests and reports their To, From, P-Access-Network-Info and
Cellular-Network-Info headers, decomposed into parameters.

One report is written per capture file, with a summary of the total SIP
packets and the REGISTER and INVITE counts at the top.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and SIPSCAN_* environment when empty)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(validateCmd)
}
