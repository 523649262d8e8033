package consensus

import "crypto/sha256"

// Block is a header plus an ordered list of up to MaxTransactions
// transactions (§3). It induces a deterministic transition of the account
// map and carries a proof-of-work.
type Block struct {
	Previous     [BlockIDLen]byte
	Height       uint64
	Miner        Address
	Timestamp    uint64
	Difficulty   uint64
	BlockID      [BlockIDLen]byte
	Nonce        uint64
	Transactions []*Transaction
}

// ParseMinerAddress validates the wire-level length of a miner field
// before it is narrowed to the fixed-size Address type used everywhere
// else in the core (§4.3 check 4, "bad miner length"). In-memory Block
// values always carry a valid Address, so this check has no analogue once
// a Block is constructed; it belongs at the deserialization boundary.
func ParseMinerAddress(raw []byte) (Address, error) {
	var a Address
	if len(raw) != AddressLen {
		return a, validationErr(ReasonBadMinerLength)
	}
	copy(a[:], raw)
	return a, nil
}

// headerPreimageWithoutNonce builds previous || miner || concat(txids) ||
// timestamp_LE8 || difficulty_LE16, the portion of the block_id pre-image
// mining holds fixed while it searches nonces (§4.1, §4.4, §6).
func (b *Block) headerPreimageWithoutNonce() []byte {
	buf := make([]byte, 0, BlockIDLen+AddressLen+32*len(b.Transactions)+8+16)
	buf = append(buf, b.Previous[:]...)
	buf = append(buf, b.Miner[:]...)
	for _, t := range b.Transactions {
		buf = append(buf, t.TxID[:]...)
	}
	buf = appendU64LE(buf, b.Timestamp)
	buf = appendU128LE(buf, b.Difficulty)
	return buf
}

// computeBlockID recomputes the canonical block_id from the header
// fields, independent of the stored b.BlockID value.
func (b *Block) computeBlockID() [BlockIDLen]byte {
	buf := appendU64LE(b.headerPreimageWithoutNonce(), b.Nonce)
	return sha256.Sum256(buf)
}

// ApplyTransition computes the post-state from a pre-state, per the exact
// ordering rule in §4.3: the miner's fee is credited before the sender is
// debited for each transaction, and the block reward is credited before
// any transaction is processed. validation failures abort without
// mutating pre (the transition runs against a clone).
func (b *Block) ApplyTransition(pre AccountMap, verifier SignatureVerifier) (AccountMap, error) {
	work := pre.Clone()

	minerState := work.GetOrDefault(b.Miner)
	minerState.Balance += MiningReward
	work.Set(b.Miner, minerState)

	for _, t := range b.Transactions {
		senderState := work.GetOrDefault(t.SenderHash)
		if err := t.Verify(senderState.Balance, senderState.Nonce, verifier); err != nil {
			return nil, err
		}

		minerState = work.GetOrDefault(b.Miner)
		minerState.Balance += t.Fee
		work.Set(b.Miner, minerState)

		// Re-read: the credit above may have just touched this very
		// address if the sender is the miner.
		senderState = work.GetOrDefault(t.SenderHash)
		senderState.Balance -= t.Amount
		senderState.Nonce++
		work.Set(t.SenderHash, senderState)

		recipientState := work.GetOrDefault(t.RecipientHash)
		recipientState.Balance += t.Amount - t.Fee
		work.Set(t.RecipientHash, recipientState)
	}

	return work, nil
}

// VerifyAndGetChanges validates B against expectedDifficulty and preState
// and, on success, returns the resulting post-state (§4.3).
func (b *Block) VerifyAndGetChanges(expectedDifficulty uint64, preState AccountMap, verifier SignatureVerifier) (AccountMap, error) {
	if b.Difficulty != expectedDifficulty {
		return nil, validationErr(ReasonIncorrectDifficulty)
	}
	if b.BlockID != b.computeBlockID() {
		return nil, validationErr(ReasonBadBlockID)
	}
	if len(b.Transactions) > MaxTransactions {
		return nil, validationErr(ReasonTooManyTransactions)
	}
	if !powSatisfied(b.BlockID, b.Difficulty) {
		return nil, validationErr(ReasonInsufficientProofOfWork)
	}
	return b.ApplyTransition(preState, verifier)
}

// GetChangesForUndo computes the exact inverse of the state transition,
// applied to a deep copy of postState, without re-verification. It is
// correct only when invoked on the genuine post-state this same block
// produced (§4.3); callers must preserve that pairing.
func (b *Block) GetChangesForUndo(postState AccountMap) AccountMap {
	work := postState.Clone()

	for i := len(b.Transactions) - 1; i >= 0; i-- {
		t := b.Transactions[i]

		recipientState := work.GetOrDefault(t.RecipientHash)
		recipientState.Balance -= t.Amount - t.Fee
		work.Set(t.RecipientHash, recipientState)

		senderState := work.GetOrDefault(t.SenderHash)
		senderState.Nonce--
		senderState.Balance += t.Amount
		work.Set(t.SenderHash, senderState)

		minerState := work.GetOrDefault(b.Miner)
		minerState.Balance -= t.Fee
		work.Set(b.Miner, minerState)
	}

	minerState := work.GetOrDefault(b.Miner)
	minerState.Balance -= MiningReward
	work.Set(b.Miner, minerState)

	return work
}
