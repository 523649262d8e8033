package node_test

import (
	"context"
	"testing"

	"zimcoin.dev/node/consensus"
	"zimcoin.dev/node/crypto"
	"zimcoin.dev/node/node"
)

// fundedSigner mines one block crediting a fresh signer's address, so
// tests can build a valid transaction from a sender with a known balance
// and nonce -1 (DefaultAccountState).
func fundedSigner(t *testing.T, cs *node.ChainStore) (*crypto.Secp256k1Signer, consensus.Address) {
	t.Helper()
	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	addr := consensus.DeriveAddress(signer.PublicKeyDER())
	m := node.NewMiner(cs, stubTxSource{}, node.DefaultMinerConfig(addr), nil)
	if _, err := m.MineOne(context.Background(), 1000); err != nil {
		t.Fatalf("fund signer: %v", err)
	}
	return signer, addr
}

func TestSyncEngine_SubmitTransactionRejectsInvalid(t *testing.T) {
	cs, _ := newTestChainStore(t)
	se := node.NewSyncEngine(cs, crypto.StdVerifier{}, nil)

	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	var recipient consensus.Address
	recipient[0] = 0x01

	// sender has a zero balance, so any positive-amount transfer must fail.
	tx, err := consensus.CreateSignedTransaction(signer, recipient, 5, 1, 0)
	if err != nil {
		t.Fatalf("create signed transaction: %v", err)
	}
	if err := se.SubmitTransaction(tx); err == nil {
		t.Fatal("expected rejection of transaction from an unfunded sender")
	}
	if se.HasTransaction(tx.TxID) {
		t.Fatal("rejected transaction should not sit in the mempool")
	}
}

func TestSyncEngine_SubmitTransactionAdmitsValidAndDedups(t *testing.T) {
	cs, _ := newTestChainStore(t)
	se := node.NewSyncEngine(cs, crypto.StdVerifier{}, nil)
	signer, _ := fundedSigner(t, cs)

	var recipient consensus.Address
	recipient[0] = 0x02
	tx, err := consensus.CreateSignedTransaction(signer, recipient, 5, 1, 0)
	if err != nil {
		t.Fatalf("create signed transaction: %v", err)
	}

	if err := se.SubmitTransaction(tx); err != nil {
		t.Fatalf("submit valid transaction: %v", err)
	}
	if !se.HasTransaction(tx.TxID) {
		t.Fatal("expected transaction to be admitted to the mempool")
	}

	// resubmitting the same txid is a no-op, not a second validation pass.
	if err := se.SubmitTransaction(tx); err != nil {
		t.Fatalf("resubmitting an already-admitted transaction should not error: %v", err)
	}
	if got := se.PendingTransactions(0); len(got) != 1 {
		t.Fatalf("expected exactly one pending transaction after resubmit, got %d", len(got))
	}
}

func TestSyncEngine_PendingTransactionsOrderedByFeeDesc(t *testing.T) {
	cs, _ := newTestChainStore(t)
	se := node.NewSyncEngine(cs, crypto.StdVerifier{}, nil)
	// SubmitTransaction checks each nonce against on-chain state, so the
	// two transactions come from two funded senders.
	signer, _ := fundedSigner(t, cs)
	otherSigner, _ := fundedSigner(t, cs)

	var r1, r2 consensus.Address
	r1[0] = 0x10
	r2[0] = 0x20

	txLow, err := consensus.CreateSignedTransaction(signer, r1, 5, 1, 0)
	if err != nil {
		t.Fatalf("create low-fee tx: %v", err)
	}
	txHigh, err := consensus.CreateSignedTransaction(otherSigner, r2, 5, 2, 0)
	if err != nil {
		t.Fatalf("create high-fee tx: %v", err)
	}
	if err := se.SubmitTransaction(txLow); err != nil {
		t.Fatalf("submit low-fee tx: %v", err)
	}
	if err := se.SubmitTransaction(txHigh); err != nil {
		t.Fatalf("submit high-fee tx: %v", err)
	}

	pending := se.PendingTransactions(0)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending transactions, got %d", len(pending))
	}
	if pending[0].TxID != txHigh.TxID {
		t.Fatalf("expected higher-fee transaction first, got %+v", pending[0])
	}
}

func TestSyncEngine_PendingTransactionsRespectsLimit(t *testing.T) {
	cs, _ := newTestChainStore(t)
	se := node.NewSyncEngine(cs, crypto.StdVerifier{}, nil)
	for i := uint64(0); i < 3; i++ {
		// One funded sender per transaction: each is checked against its
		// sender's on-chain nonce.
		signer, _ := fundedSigner(t, cs)
		var r consensus.Address
		r[0] = byte(0x40 + i)
		tx, err := consensus.CreateSignedTransaction(signer, r, 1, 1, 0)
		if err != nil {
			t.Fatalf("create tx %d: %v", i, err)
		}
		if err := se.SubmitTransaction(tx); err != nil {
			t.Fatalf("submit tx %d: %v", i, err)
		}
	}
	if got := se.PendingTransactions(2); len(got) != 2 {
		t.Fatalf("expected limit to cap pending transactions to 2, got %d", len(got))
	}
}

func TestSyncEngine_ApplyBlockClearsIncludedMempoolEntries(t *testing.T) {
	cs, minerAddr := newTestChainStore(t)
	se := node.NewSyncEngine(cs, crypto.StdVerifier{}, nil)
	m := node.NewMiner(cs, se, node.DefaultMinerConfig(minerAddr), nil)

	signer, senderAddr := fundedSigner(t, cs)
	_ = senderAddr

	var recipient consensus.Address
	recipient[0] = 0x30
	tx, err := consensus.CreateSignedTransaction(signer, recipient, 5, 1, 0)
	if err != nil {
		t.Fatalf("create tx: %v", err)
	}
	if err := se.SubmitTransaction(tx); err != nil {
		t.Fatalf("submit tx: %v", err)
	}

	block, err := m.MineOne(context.Background(), 1001)
	if err != nil {
		t.Fatalf("mine block with pending tx: %v", err)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected mined block to include the pending tx, got %d", len(block.Transactions))
	}
	if se.HasTransaction(tx.TxID) {
		t.Fatal("transaction included in an applied block should be removed from the mempool")
	}
	if !se.HasBlock(block.BlockID) {
		t.Fatal("applied block should be marked seen")
	}
}
