package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zimcoin.dev/node/node"
)

func newExportKeyCmd(flags *persistentFlags) *cobra.Command {
	var keyPath string
	var passphrase string

	cmd := &cobra.Command{
		Use:   "export-key",
		Short: "decrypt a keystore and print its raw private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveKeyPath(flags, keyPath)
			if passphrase == "" {
				return fmt.Errorf("--passphrase is required")
			}
			hexKey, err := node.ExportWallet(path, passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "keyfile", "", "keystore path (default: <datadir>/wallet.json)")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "keystore passphrase")
	return cmd
}
