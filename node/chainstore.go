package node

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"zimcoin.dev/node/consensus"
	"zimcoin.dev/node/node/store"
)

// ChainStore is the durable wrapper around an in-memory consensus.ChainState:
// it persists every block and the tip account map through a bbolt-backed
// store.DB, and replays that history back into a fresh consensus.ChainState
// on restart. The consensus package itself never touches disk; ChainStore
// is the only thing that does, and it serializes every mutation behind a
// single mutex (consensus.ChainState is not safe for concurrent use).
type ChainStore struct {
	mu         sync.Mutex
	core       *consensus.ChainState
	db         *store.DB
	chainIDHex string
	verifier   consensus.SignatureVerifier
	logger     *zap.Logger
}

// OpenChainStore opens (or initializes) the bbolt store under datadir for
// chainIDHex and replays its persisted blocks into a fresh
// consensus.ChainState.
func OpenChainStore(datadir, chainIDHex string, verifier consensus.SignatureVerifier, logger *zap.Logger) (*ChainStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := store.Open(datadir, chainIDHex)
	if err != nil {
		return nil, fmt.Errorf("chainstore: open db: %w", err)
	}

	cs := &ChainStore{core: consensus.NewChainState(), db: db, chainIDHex: chainIDHex, verifier: verifier, logger: logger}

	manifest := db.Manifest()
	if manifest == nil {
		logger.Info("chainstore: no manifest, starting from genesis")
		return cs, nil
	}

	for height := uint64(0); height <= manifest.TipHeight; height++ {
		hash, ok, err := db.HashAtHeight(height)
		if err != nil {
			return nil, fmt.Errorf("chainstore: hash at height %d: %w", height, err)
		}
		if !ok {
			return nil, fmt.Errorf("chainstore: missing block at height %d", height)
		}
		raw, ok, err := db.GetBlockBytes(hash)
		if err != nil {
			return nil, fmt.Errorf("chainstore: read block at height %d: %w", height, err)
		}
		if !ok {
			return nil, fmt.Errorf("chainstore: block bytes missing at height %d", height)
		}
		b, err := decodeBlock(raw)
		if err != nil {
			return nil, fmt.Errorf("chainstore: decode block at height %d: %w", height, err)
		}
		if err := cs.core.VerifyAndApplyBlock(b, verifier); err != nil {
			return nil, fmt.Errorf("chainstore: replay block at height %d: %w", height, err)
		}
	}

	if cached, err := db.LoadAccounts(); err != nil {
		logger.Warn("chainstore: failed to load cached accounts bucket", zap.Error(err))
	} else if !cached.Equal(cs.core.UserStates) {
		logger.Warn("chainstore: accounts_by_address cache diverged from replayed state, resyncing")
		if err := db.ResyncAccounts(cs.core.UserStates); err != nil {
			return nil, fmt.Errorf("chainstore: resync diverged accounts cache: %w", err)
		}
	}

	logger.Info("chainstore: replayed chain from disk",
		zap.Uint64("tip_height", manifest.TipHeight),
		zap.Int("block_count", len(cs.core.Chain)),
	)
	return cs, nil
}

func (cs *ChainStore) Close() error {
	return cs.db.Close()
}

// Height returns the number of blocks currently in the canonical chain.
func (cs *ChainStore) Height() uint64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return uint64(len(cs.core.Chain))
}

// Tip returns the current tip block, or nil if the chain is empty.
func (cs *ChainStore) Tip() *consensus.Block {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.core.Chain) == 0 {
		return nil
	}
	return cs.core.Chain[len(cs.core.Chain)-1]
}

// ExpectedDifficulty returns the difficulty the next appended block must
// carry.
func (cs *ChainStore) ExpectedDifficulty() uint64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.core.CalculateDifficulty()
}

// AccountState returns the current balance/nonce for addr.
func (cs *ChainStore) AccountState(addr consensus.Address) consensus.AccountState {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.core.UserStates.GetOrDefault(addr)
}

// TotalDifficulty returns the chain's current cumulative difficulty.
func (cs *ChainStore) TotalDifficulty() *big.Int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return new(big.Int).Set(cs.core.TotalDifficulty)
}

// BlockBytes returns the disk encoding of the block with the given hash,
// for relaying to a peer that requested it via getdata.
func (cs *ChainStore) BlockBytes(hash [32]byte) ([]byte, bool, error) {
	return cs.db.GetBlockBytes(hash)
}

// ApplyBlock validates and appends b, persisting the result. If
// persistence fails after the in-memory append already succeeded, the
// in-memory chain is rolled back via UndoLastBlock so core and disk never
// diverge.
func (cs *ChainStore) ApplyBlock(b *consensus.Block) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := cs.core.VerifyAndApplyBlock(b, cs.verifier); err != nil {
		return err
	}
	if err := cs.persistTip(); err != nil {
		cs.core.UndoLastBlock()
		return fmt.Errorf("chainstore: persist block: %w", err)
	}
	cs.logger.Info("chainstore: applied block",
		zap.Uint64("height", b.Height),
		zap.String("block_id", hex.EncodeToString(b.BlockID[:])),
	)
	return nil
}

// Undo pops the tip block and persists the result.
func (cs *ChainStore) Undo() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if len(cs.core.Chain) == 0 {
		return fmt.Errorf("chainstore: cannot undo an empty chain")
	}
	removed := cs.core.Chain[len(cs.core.Chain)-1]
	cs.core.UndoLastBlock()

	newHeight := int64(len(cs.core.Chain)) - 1
	if err := cs.db.DeleteBlocksAbove(uint64(max64(newHeight, 0))); err != nil {
		return fmt.Errorf("chainstore: delete undone block: %w", err)
	}
	if err := cs.persistTip(); err != nil {
		return fmt.Errorf("chainstore: persist after undo: %w", err)
	}
	cs.logger.Info("chainstore: undid block", zap.Uint64("height", removed.Height))
	return nil
}

// Reorg attempts to switch the canonical chain to newBranch, per
// consensus.ChainState.VerifyReorg. On success, every block in newBranch is
// persisted and every replaced block above height 0 is removed from disk.
// When newBranch starts at height 0, the replaced height-0 block's bytes and
// index entry stay in the store; only its height mapping is overwritten.
func (cs *ChainStore) Reorg(newBranch []*consensus.Block) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	next, err := cs.core.VerifyReorg(newBranch, cs.verifier)
	if err != nil {
		return err
	}

	splitHeight := newBranch[0].Height
	var keepHeight uint64
	if splitHeight > 0 {
		keepHeight = splitHeight - 1
	}
	if err := cs.db.DeleteBlocksAbove(keepHeight); err != nil {
		return fmt.Errorf("chainstore: reorg: clear replaced blocks: %w", err)
	}

	cs.core = next
	if err := cs.persistFrom(splitHeight); err != nil {
		return fmt.Errorf("chainstore: reorg: persist new branch: %w", err)
	}
	cs.logger.Info("chainstore: reorg applied",
		zap.Uint64("split_height", splitHeight),
		zap.Uint64("new_height", uint64(len(cs.core.Chain))),
	)
	return nil
}

// persistTip writes the current tip block plus a full accounts/manifest
// resync. It assumes the tip block itself may already be on disk (an
// idempotent PutBlock/PutIndex) and always rewrites accounts+manifest,
// which is cheap relative to a network round trip or a PoW search.
func (cs *ChainStore) persistTip() error {
	if len(cs.core.Chain) == 0 {
		return cs.db.ResyncAccounts(cs.core.UserStates)
	}
	return cs.persistFrom(uint64(len(cs.core.Chain) - 1))
}

// persistFrom writes every block from height fromHeight to the tip, then
// resyncs accounts and the manifest.
func (cs *ChainStore) persistFrom(fromHeight uint64) error {
	cumulative := new(big.Int)
	if fromHeight > 0 {
		prevHash, ok, err := cs.db.HashAtHeight(fromHeight - 1)
		if err != nil {
			return err
		}
		if ok {
			entry, ok, err := cs.db.GetIndex(prevHash)
			if err != nil {
				return err
			}
			if ok {
				cumulative = new(big.Int).Set(entry.CumulativeWork)
			}
		}
	}

	for i := fromHeight; i < uint64(len(cs.core.Chain)); i++ {
		b := cs.core.Chain[i]
		raw, err := encodeBlock(b)
		if err != nil {
			return err
		}
		if err := cs.db.PutBlock(b.Height, b.BlockID, raw); err != nil {
			return err
		}
		cumulative = new(big.Int).Add(cumulative, new(big.Int).SetUint64(b.Difficulty))
		if err := cs.db.PutIndex(b.BlockID, store.BlockIndexEntry{
			Height:         b.Height,
			PrevHash:       b.Previous,
			CumulativeWork: new(big.Int).Set(cumulative),
			Status:         store.BlockStatusValid,
		}); err != nil {
			return err
		}
	}

	if err := cs.db.ResyncAccounts(cs.core.UserStates); err != nil {
		return err
	}

	tip := cs.core.Chain[len(cs.core.Chain)-1]
	return cs.db.SetManifest(&store.Manifest{
		SchemaVersion:           store.SchemaVersionV1,
		ChainIDHex:              cs.chainIDHex,
		TipHashHex:              hex.EncodeToString(tip.BlockID[:]),
		TipHeight:               tip.Height,
		TipCumulativeWorkDec:    cumulative.String(),
		LastAppliedBlockHashHex: hex.EncodeToString(tip.BlockID[:]),
		LastAppliedHeight:       tip.Height,
	})
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
