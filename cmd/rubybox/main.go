package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "rubybox",
	Short: "rubybox - Run Ruby snippets in throwaway containers",
	Long: `rubybox executes Ruby code inside short-lived, resource-limited Docker
containers, one container per execution, removed as soon as it finishes.

It serves an HTTP and WebSocket API, and can also run code, list versions
and manage stored workspace files straight from the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./rubybox.yaml or ~/.rubybox/rubybox.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Log execution details to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
