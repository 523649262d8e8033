package consensus

import (
	"context"
	"crypto/sha256"
	"encoding"
	"errors"
	"hash"
)

// ErrNonceSpaceExhausted is returned if MineBlock's nonce counter wraps
// around without finding an admissible block_id. It is not a
// ValidationError: it reflects operational exhaustion of the search
// space, not a malformed input.
var ErrNonceSpaceExhausted = errors.New("consensus: exhausted the nonce search space")

// incrementalDigest wraps crypto/sha256's hash.Hash and exposes the
// clone/extend/finalize pattern §4.4 requires: the fixed prefix of the
// block header is hashed once, then each nonce attempt clones that
// in-progress digest, appends its own 8 bytes, and finalizes — instead of
// re-hashing the whole header on every attempt. crypto/sha256's digest
// type implements encoding.BinaryMarshaler/Unmarshaler, which is the
// standard library's supported way to snapshot hash.Hash state; cloning
// goes through that round trip.
type incrementalDigest struct {
	h hash.Hash
}

func newIncrementalDigest(prefix []byte) *incrementalDigest {
	h := sha256.New()
	h.Write(prefix)
	return &incrementalDigest{h: h}
}

func (d *incrementalDigest) clone() (*incrementalDigest, error) {
	state, err := d.h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return nil, err
	}
	clone := sha256.New()
	if err := clone.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		return nil, err
	}
	return &incrementalDigest{h: clone}, nil
}

// extendAndFinalize clones the digest, appends nonce_LE8, and returns the
// finalized SHA-256 sum, leaving the receiver untouched for the next
// attempt.
func (d *incrementalDigest) extendAndFinalize(nonce uint64) ([BlockIDLen]byte, error) {
	attempt, err := d.clone()
	if err != nil {
		return [BlockIDLen]byte{}, err
	}
	var nonceBytes [8]byte
	copy(nonceBytes[:], appendU64LE(nil, nonce))
	attempt.h.Write(nonceBytes[:])
	var out [BlockIDLen]byte
	copy(out[:], attempt.h.Sum(nil))
	return out, nil
}

// MineBlock searches nonces starting at 0, ascending, for the first one
// whose resulting block_id satisfies the proof-of-work target (§4.4). It
// is cancellable by ctx so a newly accepted block from the network can
// preempt an in-progress local search (§5); passing context.Background()
// makes the search run to completion (or to ErrNonceSpaceExhausted).
func MineBlock(ctx context.Context, previous [BlockIDLen]byte, height uint64, miner Address, transactions []*Transaction, timestamp uint64, difficulty uint64) (*Block, error) {
	b := &Block{
		Previous:     previous,
		Height:       height,
		Miner:        miner,
		Timestamp:    timestamp,
		Difficulty:   difficulty,
		Transactions: transactions,
	}
	digest := newIncrementalDigest(b.headerPreimageWithoutNonce())

	var nonce uint64
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		blockID, err := digest.extendAndFinalize(nonce)
		if err != nil {
			return nil, err
		}
		if powSatisfied(blockID, difficulty) {
			b.Nonce = nonce
			b.BlockID = blockID
			return b, nil
		}

		nonce++
		if nonce == 0 {
			return nil, ErrNonceSpaceExhausted
		}
	}
}
