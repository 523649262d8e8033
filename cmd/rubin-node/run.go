package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zimcoin.dev/node/crypto"
	"zimcoin.dev/node/node"
)

func newRunCmd(flags *persistentFlags) *cobra.Command {
	defaults := node.DefaultConfig()
	var (
		bindAddr     string
		peers        []string
		maxPeers     int
		minerAddress string
		mine         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the node: chain store, P2P relay, and (optionally) mining",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defaults
			cfg.DataDir = flags.dataDir
			cfg.Network = flags.network
			cfg.LogLevel = flags.logLevel
			cfg.ChainID = flags.chainID
			cfg.BindAddr = bindAddr
			cfg.Peers = node.NormalizePeers(peers...)
			cfg.MaxPeers = maxPeers
			cfg.MinerAddress = minerAddress

			if err := node.ValidateConfig(cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
				return fmt.Errorf("datadir create failed: %w", err)
			}

			logger, err := node.NewLogger(cfg.LogLevel, flags.dev)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			chainID, err := node.ParseChainID(cfg.ChainID)
			if err != nil {
				return err
			}
			verifier := crypto.StdVerifier{}

			store, err := node.OpenChainStore(cfg.DataDir, cfg.ChainID, verifier, logger)
			if err != nil {
				return fmt.Errorf("chain store open failed: %w", err)
			}
			defer store.Close() //nolint:errcheck

			syncEngine := node.NewSyncEngine(store, verifier, logger)

			magic := binary.BigEndian.Uint32(chainID[:4])
			userAgent := "/rubin-node:" + cfg.Network + "/"
			srv := node.NewServer(syncEngine, magic, chainID, userAgent, uint32(store.Height()), logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			serveDone := make(chan struct{})
			go func() {
				<-ctx.Done()
				close(serveDone)
			}()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe(cfg.BindAddr, serveDone)
			}()

			for _, addr := range cfg.Peers {
				if err := srv.Dial(addr, serveDone); err != nil {
					logger.Warn("run: failed to dial bootstrap peer", zap.String("addr", addr), zap.Error(err))
				}
			}

			if mine {
				if cfg.MinerAddress == "" {
					return fmt.Errorf("--mine requires --miner-address")
				}
				addr, err := node.ParseMinerAddress(cfg.MinerAddress)
				if err != nil {
					return fmt.Errorf("invalid miner address: %w", err)
				}
				minerCfg := node.DefaultMinerConfig(addr)
				miner := node.NewMiner(store, syncEngine, minerCfg, logger)
				go func() {
					if err := miner.Run(ctx, nowUnixU64); err != nil && ctx.Err() == nil {
						logger.Error("run: miner loop exited", zap.Error(err))
					}
				}()
			}

			logger.Info("run: node started",
				zap.String("network", cfg.Network),
				zap.String("bind_addr", cfg.BindAddr),
				zap.Uint64("height", store.Height()),
				zap.Bool("mining", mine),
			)

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					logger.Error("run: listener exited", zap.Error(err))
				}
			}
			logger.Info("run: shutting down")
			return nil
		},
	}

	cmd.Flags().StringVar(&bindAddr, "bind", defaults.BindAddr, "bind address host:port")
	cmd.Flags().StringSliceVar(&peers, "peer", nil, "bootstrap peer host:port (repeatable)")
	cmd.Flags().IntVar(&maxPeers, "max-peers", defaults.MaxPeers, "max connected peers")
	cmd.Flags().StringVar(&minerAddress, "miner-address", "", "hex-encoded 20-byte account address mining rewards are credited to")
	cmd.Flags().BoolVar(&mine, "mine", false, "mine blocks against the local chain store")
	return cmd
}

func nowUnixU64() uint64 {
	now := time.Now().Unix()
	if now <= 0 {
		return 0
	}
	return uint64(now)
}
