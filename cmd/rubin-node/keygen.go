package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"zimcoin.dev/node/consensus"
	"zimcoin.dev/node/node"
)

func newKeygenCmd(flags *persistentFlags) *cobra.Command {
	var keyPath string
	var passphrase string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "generate a new wallet keystore",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveKeyPath(flags, keyPath)
			if passphrase == "" {
				return fmt.Errorf("--passphrase is required")
			}
			signer, err := node.GenerateWallet(path, passphrase)
			if err != nil {
				return err
			}
			addr := consensus.DeriveAddress(signer.PublicKeyDER())
			fmt.Fprintf(cmd.OutOrStdout(), "wallet: %s\naddress: %x\n", path, addr[:])
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "keyfile", "", "keystore path (default: <datadir>/wallet.json)")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase to encrypt the new key under")
	return cmd
}

func resolveKeyPath(flags *persistentFlags, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(flags.dataDir, "wallet.json")
}
