package consensus

import "math/big"

// ChainState is the append-only history, its tip account map, and
// cumulative difficulty (§3). It is a single-threaded, synchronous state
// machine (§5): callers must serialize all calls into one instance
// themselves.
type ChainState struct {
	Chain           []*Block
	UserStates      AccountMap
	TotalDifficulty *big.Int
}

// NewChainState returns the empty chain state: no blocks, an empty
// account map, zero cumulative difficulty.
func NewChainState() *ChainState {
	return &ChainState{
		Chain:           nil,
		UserStates:      make(AccountMap),
		TotalDifficulty: new(big.Int),
	}
}

func (cs *ChainState) tip() *Block {
	if len(cs.Chain) == 0 {
		return nil
	}
	return cs.Chain[len(cs.Chain)-1]
}

// CalculateDifficulty computes the expected difficulty for the next block
// to be appended, per the retargeting rule in §4.6.
func (cs *ChainState) CalculateDifficulty() uint64 {
	n := len(cs.Chain)
	if n <= RetargetWindow {
		return BootstrapDifficulty
	}

	anchor := cs.Chain[n-RetargetWindow-1]
	tip := cs.Chain[n-1]

	var sumD uint64
	for _, blk := range cs.Chain[n-RetargetWindow:] {
		sumD += blk.Difficulty
	}

	deltaT := tip.Timestamp - anchor.Timestamp
	if deltaT == 0 {
		deltaT = 1
	}

	return (sumD / deltaT) * TargetBlockInterval
}

// VerifyAndApplyBlock validates B against the current tip and, on
// success, appends it (§4.5). On any failure, cs is left bit-identical to
// its pre-call value.
func (cs *ChainState) VerifyAndApplyBlock(b *Block, verifier SignatureVerifier) error {
	if b.Height != uint64(len(cs.Chain)) {
		return validationErr(ReasonBadHeight)
	}
	tip := cs.tip()
	if tip == nil {
		if b.Previous != GenesisPrevious {
			return validationErr(ReasonBadPrevious)
		}
	} else {
		if b.Previous != tip.BlockID {
			return validationErr(ReasonBadPrevious)
		}
		if b.Timestamp < tip.Timestamp {
			return validationErr(ReasonBadTimestamp)
		}
	}

	expectedDifficulty := cs.CalculateDifficulty()
	post, err := b.VerifyAndGetChanges(expectedDifficulty, cs.UserStates, verifier)
	if err != nil {
		return err
	}

	cs.Chain = append(cs.Chain, b)
	cs.TotalDifficulty = new(big.Int).Add(cs.TotalDifficulty, new(big.Int).SetUint64(b.Difficulty))
	cs.UserStates = post
	return nil
}

// UndoLastBlock pops the tail block and restores the account map it
// produced to its pre-state. It has no failure mode when invoked on a
// chain state that was itself produced by this package (§7); calling it
// on an empty chain is a precondition violation and is a silent no-op.
func (cs *ChainState) UndoLastBlock() {
	tip := cs.tip()
	if tip == nil {
		return
	}
	cs.UserStates = tip.GetChangesForUndo(cs.UserStates)
	cs.Chain = cs.Chain[:len(cs.Chain)-1]
	cs.TotalDifficulty = new(big.Int).Sub(cs.TotalDifficulty, new(big.Int).SetUint64(tip.Difficulty))
}

// clone returns a working copy whose account map is copied by value, so
// that mutations through the copy are never visible to the receiver
// (§4.7 step 1). The underlying *Block values are immutable once mined
// and are safe to share between the two chains' slices.
func (cs *ChainState) clone() *ChainState {
	chain := make([]*Block, len(cs.Chain))
	copy(chain, cs.Chain)
	return &ChainState{
		Chain:           chain,
		UserStates:      cs.UserStates.Clone(),
		TotalDifficulty: new(big.Int).Set(cs.TotalDifficulty),
	}
}
