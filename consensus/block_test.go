package consensus_test

import (
	"context"
	"testing"

	"zimcoin.dev/node/consensus"
)

func TestMineBlock_SatisfiesProofOfWork(t *testing.T) {
	miner := consensus.DeriveAddress(mustSigner(t).PublicKeyDER())
	block, err := consensus.MineBlock(context.Background(), consensus.GenesisPrevious, 0, miner, nil, 0, consensus.BootstrapDifficulty)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if block.Height != 0 || block.Previous != consensus.GenesisPrevious {
		t.Fatalf("unexpected header: %+v", block)
	}
}

func TestMineBlock_Cancellation(t *testing.T) {
	miner := consensus.DeriveAddress(mustSigner(t).PublicKeyDER())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// An already-cancelled context must stop the search before it finds a
	// nonce, regardless of how easy the target is.
	_, err := consensus.MineBlock(ctx, consensus.GenesisPrevious, 0, miner, nil, 0, 1)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

// Applying a block whose miner is also a transaction's sender must credit
// the fee to the miner before debiting the sender (§4.3): the sender's
// post-transaction balance reflects having received its own fee back.
func TestApplyTransition_MinerIsSender(t *testing.T) {
	alice := mustSigner(t)
	aliceAddr := consensus.DeriveAddress(alice.PublicKeyDER())
	bobAddr := consensus.DeriveAddress(mustSigner(t).PublicKeyDER())

	pre := consensus.AccountMap{}
	pre.Set(aliceAddr, consensus.AccountState{Balance: 10_000, Nonce: consensus.DefaultNonce})

	tx, err := consensus.CreateSignedTransaction(alice, bobAddr, 1_000, 100, 0)
	if err != nil {
		t.Fatalf("create tx: %v", err)
	}

	block, err := consensus.MineBlock(context.Background(), consensus.GenesisPrevious, 0, aliceAddr, []*consensus.Transaction{tx}, 0, 1)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}

	post, err := block.VerifyAndGetChanges(1, pre, alice)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Alice: +10_000 (block reward) +100 (her own fee, credited first)
	// -1_000 (amount debited) = 19_100. Bob: +900 (amount - fee).
	aliceState := post.GetOrDefault(aliceAddr)
	if aliceState.Balance != 19_100 || aliceState.Nonce != 0 {
		t.Fatalf("alice post-state = %+v, want balance=19100 nonce=0", aliceState)
	}
	bobState := post.GetOrDefault(bobAddr)
	if bobState.Balance != 900 {
		t.Fatalf("bob post-state = %+v, want balance=900", bobState)
	}
}

// Property 4 (§8): applying a block increases total supply by exactly
// MINING_REWARD, regardless of how many fee-bearing transactions it holds.
func TestApplyTransition_SumConservation(t *testing.T) {
	alice := mustSigner(t)
	aliceAddr := consensus.DeriveAddress(alice.PublicKeyDER())
	bobAddr := consensus.DeriveAddress(mustSigner(t).PublicKeyDER())

	pre := consensus.AccountMap{}
	pre.Set(aliceAddr, consensus.AccountState{Balance: 50_000, Nonce: consensus.DefaultNonce})

	tx, err := consensus.CreateSignedTransaction(alice, bobAddr, 5_000, 200, 0)
	if err != nil {
		t.Fatalf("create tx: %v", err)
	}

	block, err := consensus.MineBlock(context.Background(), consensus.GenesisPrevious, 0, bobAddr, []*consensus.Transaction{tx}, 0, 1)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}

	post, err := block.VerifyAndGetChanges(1, pre, alice)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	var preSum, postSum uint64
	for _, st := range pre {
		preSum += st.Balance
	}
	for _, st := range post {
		postSum += st.Balance
	}
	if postSum-preSum != consensus.MiningReward {
		t.Fatalf("supply delta = %d, want %d", postSum-preSum, consensus.MiningReward)
	}
}

func TestApplyTransition_TooManyTransactionsRejected(t *testing.T) {
	miner := consensus.DeriveAddress(mustSigner(t).PublicKeyDER())
	txs := make([]*consensus.Transaction, consensus.MaxTransactions+1)
	for i := range txs {
		signer := mustSigner(t)
		tx, err := consensus.CreateSignedTransaction(signer, miner, 1, 0, 0)
		if err != nil {
			t.Fatalf("create tx: %v", err)
		}
		txs[i] = tx
	}
	// Mine the block so its block_id and proof-of-work are valid: the
	// block id is checked before the transaction count.
	block, err := consensus.MineBlock(context.Background(), consensus.GenesisPrevious, 0, miner, txs, 0, 1)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	_, err = block.VerifyAndGetChanges(1, consensus.AccountMap{}, mustSigner(t))
	if err == nil {
		t.Fatal("expected error")
	}
	ve, ok := err.(*consensus.ValidationError)
	if !ok || ve.Reason != consensus.ReasonTooManyTransactions {
		t.Fatalf("got %v, want too many transactions", err)
	}
}

// Property 1 (§8): applying then undoing a block reconstructs the
// pre-state exactly, including for a miner-is-sender block where the
// forward path transiently reads through an aliased address.
func TestApplyThenUndo_RoundTrips(t *testing.T) {
	alice := mustSigner(t)
	aliceAddr := consensus.DeriveAddress(alice.PublicKeyDER())
	bobAddr := consensus.DeriveAddress(mustSigner(t).PublicKeyDER())

	pre := consensus.AccountMap{}
	pre.Set(aliceAddr, consensus.AccountState{Balance: 10_000, Nonce: consensus.DefaultNonce})
	pre.Set(bobAddr, consensus.AccountState{Balance: 500, Nonce: 2})

	tx, err := consensus.CreateSignedTransaction(alice, bobAddr, 1_000, 100, 0)
	if err != nil {
		t.Fatalf("create tx: %v", err)
	}
	block, err := consensus.MineBlock(context.Background(), consensus.GenesisPrevious, 0, aliceAddr, []*consensus.Transaction{tx}, 0, 1)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}

	post, err := block.VerifyAndGetChanges(1, pre, alice)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	undone := block.GetChangesForUndo(post)
	if !undone.Equal(pre) {
		t.Fatalf("undo mismatch: got %+v, want %+v", undone, pre)
	}
}
