package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zimcoin.dev/node/consensus"
	"zimcoin.dev/node/node"
)

func newImportKeyCmd(flags *persistentFlags) *cobra.Command {
	var keyPath string
	var passphrase string
	var privateKeyHex string

	cmd := &cobra.Command{
		Use:   "import-key",
		Short: "wrap a raw secp256k1 private key into a new keystore",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveKeyPath(flags, keyPath)
			if passphrase == "" {
				return fmt.Errorf("--passphrase is required")
			}
			if privateKeyHex == "" {
				return fmt.Errorf("--private-key is required")
			}
			signer, err := node.ImportWallet(path, privateKeyHex, passphrase)
			if err != nil {
				return err
			}
			addr := consensus.DeriveAddress(signer.PublicKeyDER())
			fmt.Fprintf(cmd.OutOrStdout(), "wallet: %s\naddress: %x\n", path, addr[:])
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "keyfile", "", "keystore path (default: <datadir>/wallet.json)")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase to encrypt the imported key under")
	cmd.Flags().StringVar(&privateKeyHex, "private-key", "", "hex-encoded 32-byte secp256k1 private key")
	return cmd
}
