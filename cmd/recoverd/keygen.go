package main

import (
	"fmt"

	"github.com/layer-3/recoverable/config"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new token signing key for RECOVERD_SIGNING_KEY",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := config.ParseSigningKey("")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.EncodeSigningKey(key))
		return nil
	},
}
