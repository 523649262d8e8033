package node

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"zimcoin.dev/node/consensus"
)

// SyncEngine is the single point through which blocks and transactions
// enter the node, whether mined locally or received from a peer. It
// serializes every mutation into the ChainStore (itself already
// mutex-guarded, but SyncEngine additionally owns the mempool and the
// seen-block set, which must stay consistent with whatever ChainStore
// just accepted or rejected) and hands Miner a deterministic view of
// pending transactions via PendingTransactions.
type SyncEngine struct {
	mu     sync.Mutex
	store  *ChainStore
	logger *zap.Logger

	verifier consensus.SignatureVerifier
	mempool  map[[32]byte]*consensus.Transaction
	seen     map[[32]byte]struct{}
}

func NewSyncEngine(store *ChainStore, verifier consensus.SignatureVerifier, logger *zap.Logger) *SyncEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncEngine{
		store:    store,
		verifier: verifier,
		logger:   logger,
		mempool:  make(map[[32]byte]*consensus.Transaction),
		seen:     make(map[[32]byte]struct{}),
	}
}

// SubmitTransaction validates tx against the sender's current on-chain
// state and, if valid, admits it to the mempool. It does not re-verify
// once a block including tx is applied; ApplyBlock drops it from the
// mempool at that point instead.
func (s *SyncEngine) SubmitTransaction(tx *consensus.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mempool[tx.TxID]; ok {
		return nil
	}

	sender := s.store.AccountState(tx.SenderHash)
	if err := tx.Verify(sender.Balance, sender.Nonce, s.verifier); err != nil {
		return fmt.Errorf("sync: reject transaction %x: %w", tx.TxID, err)
	}

	s.mempool[tx.TxID] = tx
	s.logger.Debug("sync: admitted transaction to mempool", zap.String("txid", fmt.Sprintf("%x", tx.TxID)))
	return nil
}

// PendingTransactions implements node.TxSource for Miner. It returns up
// to limit mempool transactions ordered by descending fee, then by TxID
// for a stable tiebreak, so repeated calls against an unchanged mempool
// always produce the same candidate block.
func (s *SyncEngine) PendingTransactions(limit int) []*consensus.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*consensus.Transaction, 0, len(s.mempool))
	for _, tx := range s.mempool {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fee != out[j].Fee {
			return out[i].Fee > out[j].Fee
		}
		return lessTxID(out[i].TxID, out[j].TxID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ApplyBlock is the single serialization point for appending a block,
// whether it came from the local Miner or a peer's `block` message. On
// success, every transaction the block included is dropped from the
// mempool and the block's hash is marked seen so HasBlock/relay logic
// doesn't re-request it.
func (s *SyncEngine) ApplyBlock(b *consensus.Block) error {
	if err := s.store.ApplyBlock(b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range b.Transactions {
		delete(s.mempool, tx.TxID)
	}
	s.seen[b.BlockID] = struct{}{}
	return nil
}

// ApplyReorg is the reorg counterpart of ApplyBlock: it switches the
// canonical chain to newBranch and marks every block in it seen. Any
// mempool transaction the new branch already includes is dropped.
// Transactions that were only in the abandoned branch are not put back
// into the mempool.
func (s *SyncEngine) ApplyReorg(newBranch []*consensus.Block) error {
	if err := s.store.Reorg(newBranch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range newBranch {
		s.seen[b.BlockID] = struct{}{}
		for _, tx := range b.Transactions {
			delete(s.mempool, tx.TxID)
		}
	}
	return nil
}

// HasBlock reports whether blockID has been applied through this engine
// (ApplyBlock or ApplyReorg) since it was created, so a peer's inv
// advertisement for it can be skipped rather than re-fetched. Blocks
// replayed from disk when the chain store opened are not in this set.
func (s *SyncEngine) HasBlock(blockID [32]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[blockID]
	return ok
}

// BlockBytes returns the disk encoding of the block with the given hash,
// for relaying to a peer that requested it via getdata.
func (s *SyncEngine) BlockBytes(hash [32]byte) ([]byte, bool, error) {
	return s.store.BlockBytes(hash)
}

// HasTransaction reports whether txID is already sitting in the mempool.
func (s *SyncEngine) HasTransaction(txID [32]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.mempool[txID]
	return ok
}

func lessTxID(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
