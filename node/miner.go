package node

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"zimcoin.dev/node/consensus"
)

// MinerConfig controls how Miner assembles candidate blocks.
type MinerConfig struct {
	MinerAddress consensus.Address
	MaxTxPerBlock int
}

func DefaultMinerConfig(addr consensus.Address) MinerConfig {
	return MinerConfig{MinerAddress: addr, MaxTxPerBlock: consensus.MaxTransactions}
}

// TxSource supplies pending transactions for a candidate block. The node's
// mempool implements this; tests can use a static slice-backed stub.
type TxSource interface {
	PendingTransactions(limit int) []*consensus.Transaction
}

// Miner repeatedly assembles a candidate block from the chain store's tip,
// mines it, and submits it: through the SyncEngine when that is its
// transaction source (so the mempool drops the included transactions),
// otherwise straight to the chain store. It holds no
// consensus state of its own: everything it needs (tip, previous, expected
// difficulty) comes from the ChainStore on every round, so it is safe to
// stop and restart at any point.
type Miner struct {
	store  *ChainStore
	txs    TxSource
	cfg    MinerConfig
	logger *zap.Logger
}

func NewMiner(store *ChainStore, txs TxSource, cfg MinerConfig, logger *zap.Logger) *Miner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Miner{store: store, txs: txs, cfg: cfg, logger: logger}
}

// MineOne assembles, mines, and submits a single block. It returns the
// mined block on success, or an error if mining was cancelled via ctx or
// the chain store rejected the result (e.g. a concurrent block beat it to
// the tip).
func (m *Miner) MineOne(ctx context.Context, timestamp uint64) (*consensus.Block, error) {
	tip := m.store.Tip()

	var previous [consensus.BlockIDLen]byte
	var height uint64
	if tip != nil {
		previous = tip.BlockID
		height = tip.Height + 1
		if timestamp < tip.Timestamp {
			timestamp = tip.Timestamp
		}
	} else {
		previous = consensus.GenesisPrevious
	}

	difficulty := m.store.ExpectedDifficulty()

	limit := m.cfg.MaxTxPerBlock
	if limit <= 0 || limit > consensus.MaxTransactions {
		limit = consensus.MaxTransactions
	}
	var txs []*consensus.Transaction
	if m.txs != nil {
		txs = m.txs.PendingTransactions(limit)
	}

	mined, err := consensus.MineBlock(ctx, previous, height, m.cfg.MinerAddress, txs, timestamp, difficulty)
	if err != nil {
		return nil, fmt.Errorf("miner: mine block: %w", err)
	}

	submit := m.store.ApplyBlock
	if se, ok := m.txs.(*SyncEngine); ok {
		submit = se.ApplyBlock
	}
	if err := submit(mined); err != nil {
		return nil, fmt.Errorf("miner: submit block: %w", err)
	}

	m.logger.Info("miner: mined block",
		zap.Uint64("height", mined.Height),
		zap.Uint64("difficulty", mined.Difficulty),
		zap.Int("tx_count", len(mined.Transactions)),
	)
	return mined, nil
}

// Run mines continuously until ctx is cancelled, logging (not panicking)
// on per-round errors so a transient failure doesn't kill the miner loop.
func (m *Miner) Run(ctx context.Context, nowFunc func() uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := m.MineOne(ctx, nowFunc()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("miner: round failed", zap.Error(err))
		}
	}
}
