// Package cli implements the policyscan command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/policyscan/policyscan/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"               _ _\n" +
		"  _ __   ___ | (_) ___ _   _ ___  ___ __ _ _ __\n" +
		" | '_ \\ / _ \\| | |/ __| | | / __|/ __/ _` | '_ \\\n" +
		" | |_) | (_) | | | (__| |_| \\__ \\ (_| (_| | | | |\n" +
		" | .__/ \\___/|_|_|\\___|\\__, |___/\\___\\__,_|_| |_|\n" +
		" |_|                   |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "policyscan",
	Short: "policyscan - billing policy rule extraction",
	Long:  color.CyanString(logo) + "\nExtracts billing rules from policy PDFs, generates claims queries, and scores them with web evidence.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(claimsCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("policyscan %s\n", version)
	},
}
