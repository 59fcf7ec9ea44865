// Command uxone runs the helpdesk email ingestion service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TIPA-VN/uxone-sub003/internal/version"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "uxone",
	Short: "uxone helpdesk - email to ticket service",
	Long: `uxone turns inbound support email into helpdesk tickets.

Mail arrives through the email-to-ticket webhook or by polling the
configured IMAP/POP3 mailboxes. Replies within the thread window are
appended to the original ticket; everything else opens a new one.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("UXONE_CONFIG"), "path to the YAML config file (env UXONE_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
