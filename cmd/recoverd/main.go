package main

import (
	"fmt"
	"os"

	"github.com/layer-3/recoverable/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "recoverd",
	Short:         "recoverd - recoverable wallet service",
	Long:          `Serves wallets whose ownership can be recovered by a designated agent after a veto window.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, keygenCmd)
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
