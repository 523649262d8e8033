package node_test

import (
	"context"
	"testing"

	"zimcoin.dev/node/consensus"
	"zimcoin.dev/node/crypto"
	"zimcoin.dev/node/node"
)

var testChainID = node.DefaultConfig().ChainID

func mineTestBlock(t *testing.T, previous [32]byte, height uint64, miner consensus.Address, ts, difficulty uint64) *consensus.Block {
	t.Helper()
	b, err := consensus.MineBlock(context.Background(), previous, height, miner, nil, ts, difficulty)
	if err != nil {
		t.Fatalf("mine block at height %d: %v", height, err)
	}
	return b
}

func TestChainStore_ApplyAndReopenReplaysState(t *testing.T) {
	datadir := t.TempDir()
	verifier := crypto.StdVerifier{}

	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	miner := consensus.DeriveAddress(signer.PublicKeyDER())

	cs, err := node.OpenChainStore(datadir, testChainID, verifier, nil)
	if err != nil {
		t.Fatalf("open chain store: %v", err)
	}

	b0 := mineTestBlock(t, consensus.GenesisPrevious, 0, miner, 1000, cs.ExpectedDifficulty())
	if err := cs.ApplyBlock(b0); err != nil {
		t.Fatalf("apply block 0: %v", err)
	}
	b1 := mineTestBlock(t, b0.BlockID, 1, miner, 1001, cs.ExpectedDifficulty())
	if err := cs.ApplyBlock(b1); err != nil {
		t.Fatalf("apply block 1: %v", err)
	}

	if got := cs.Height(); got != 2 {
		t.Fatalf("expected height 2, got %d", got)
	}
	wantBalance := 2 * consensus.MiningReward
	if got := cs.AccountState(miner).Balance; got != wantBalance {
		t.Fatalf("miner balance: got %d want %d", got, wantBalance)
	}
	if err := cs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := node.OpenChainStore(datadir, testChainID, verifier, nil)
	if err != nil {
		t.Fatalf("reopen chain store: %v", err)
	}
	defer reopened.Close()

	if got := reopened.Height(); got != 2 {
		t.Fatalf("reopened height: got %d want 2", got)
	}
	if got := reopened.AccountState(miner).Balance; got != wantBalance {
		t.Fatalf("reopened miner balance: got %d want %d", got, wantBalance)
	}
	tip := reopened.Tip()
	if tip == nil || tip.BlockID != b1.BlockID {
		t.Fatalf("reopened tip mismatch: %+v", tip)
	}
}

func TestChainStore_UndoRemovesTipFromDiskAndMemory(t *testing.T) {
	datadir := t.TempDir()
	verifier := crypto.StdVerifier{}
	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	miner := consensus.DeriveAddress(signer.PublicKeyDER())

	cs, err := node.OpenChainStore(datadir, testChainID, verifier, nil)
	if err != nil {
		t.Fatalf("open chain store: %v", err)
	}
	defer cs.Close()

	b0 := mineTestBlock(t, consensus.GenesisPrevious, 0, miner, 1000, cs.ExpectedDifficulty())
	if err := cs.ApplyBlock(b0); err != nil {
		t.Fatalf("apply block 0: %v", err)
	}
	b1 := mineTestBlock(t, b0.BlockID, 1, miner, 1001, cs.ExpectedDifficulty())
	if err := cs.ApplyBlock(b1); err != nil {
		t.Fatalf("apply block 1: %v", err)
	}

	if err := cs.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got := cs.Height(); got != 1 {
		t.Fatalf("height after undo: got %d want 1", got)
	}
	if got := cs.AccountState(miner).Balance; got != consensus.MiningReward {
		t.Fatalf("balance after undo: got %d want %d", got, consensus.MiningReward)
	}
	if _, ok, _ := cs.BlockBytes(b1.BlockID); ok {
		t.Fatal("undone block should no longer be retrievable from disk")
	}
}

func TestChainStore_ExpectedDifficultyBootstraps(t *testing.T) {
	datadir := t.TempDir()
	cs, err := node.OpenChainStore(datadir, testChainID, crypto.StdVerifier{}, nil)
	if err != nil {
		t.Fatalf("open chain store: %v", err)
	}
	defer cs.Close()

	if got := cs.ExpectedDifficulty(); got != consensus.BootstrapDifficulty {
		t.Fatalf("expected bootstrap difficulty %d, got %d", consensus.BootstrapDifficulty, got)
	}
}
