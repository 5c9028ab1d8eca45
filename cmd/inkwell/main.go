package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Settings and file access host for the inkwell editor",
	Long: `inkwell hosts the editor's settings document and its file dialogs.

Run "inkwell desktop" for the editor window, or "inkwell serve" to expose the
same commands over HTTP, a websocket event stream and MCP (stdio).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd, stopCmd, statusCmd, desktopCmd)
	rootCmd.AddCommand(settingsCmd, fileCmd, historyCmd, configCmd, eventsCmd)
}

func main() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		noColor = true
	}
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
