package main

import (
	"github.com/spf13/cobra"

	"zimcoin.dev/node/node"
)

// persistentFlags are shared by every subcommand that touches a node's
// data directory or its logger; `run` additionally has its own
// network-facing flags.
type persistentFlags struct {
	dataDir  string
	network  string
	logLevel string
	chainID  string
	dev      bool
}

func newRootCmd() *cobra.Command {
	defaults := node.DefaultConfig()
	flags := &persistentFlags{}

	root := &cobra.Command{
		Use:           "rubin-node",
		Short:         "zimcoin ledger node: mining, P2P relay, and wallet key management",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&flags.dataDir, "datadir", defaults.DataDir, "node data directory")
	root.PersistentFlags().StringVar(&flags.network, "network", defaults.Network, "network name (devnet/testnet/mainnet)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&flags.chainID, "chain-id", defaults.ChainID, "hex-encoded 32-byte chain discriminator")
	root.PersistentFlags().BoolVar(&flags.dev, "dev", false, "use human-readable console logging instead of JSON")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newKeygenCmd(flags))
	root.AddCommand(newImportKeyCmd(flags))
	root.AddCommand(newExportKeyCmd(flags))
	root.AddCommand(newVerifyChainCmd(flags))
	return root
}
