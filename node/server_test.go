package node

import (
	"context"
	"net"
	"testing"
	"time"

	"zimcoin.dev/node/consensus"
	"zimcoin.dev/node/crypto"
)

func newTestServerChain(t *testing.T) (*ChainStore, *SyncEngine, *crypto.Secp256k1Signer, consensus.Address) {
	t.Helper()
	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	addr := consensus.DeriveAddress(signer.PublicKeyDER())
	cs, err := OpenChainStore(t.TempDir(), DefaultConfig().ChainID, crypto.StdVerifier{}, nil)
	if err != nil {
		t.Fatalf("open chain store: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	se := NewSyncEngine(cs, crypto.StdVerifier{}, nil)
	return cs, se, signer, addr
}

// TestServer_RelaysMinedBlockToPeer wires two independent node stacks
// (chain store + sync engine + server) over a real TCP connection and
// confirms a block mined locally on one side reaches the other's chain
// store via the inv -> getdata -> block handshake.
func TestServer_RelaysMinedBlockToPeer(t *testing.T) {
	var chainID [32]byte
	magic := uint32(0xFEEDBEEF)

	cs1, se1, _, minerAddr := newTestServerChain(t)
	cs2, se2, _, _ := newTestServerChain(t)

	srv1 := NewServer(se1, magic, chainID, "peer1", 0, nil)
	srv2 := NewServer(se2, magic, chainID, "peer2", 0, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	stop := make(chan struct{})
	defer close(stop)

	acceptDone := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		// acceptConn serves the peer until the connection ends, so signal
		// as soon as the connection is accepted.
		close(acceptDone)
		if err != nil {
			return
		}
		srv2.acceptConn(conn, stop)
	}()

	if err := srv1.Dial(ln.Addr().String(), stop); err != nil {
		t.Fatalf("dial: %v", err)
	}
	<-acceptDone

	miner := NewMiner(cs1, se1, DefaultMinerConfig(minerAddr), nil)
	block, err := miner.MineOne(context.Background(), 1000)
	if err != nil {
		t.Fatalf("mine block: %v", err)
	}

	// wait for srv1's peer registration, then broadcast the new tip.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv1.mu.Lock()
		n := len(srv1.peers)
		srv1.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for srv1 to register its peer")
		}
		time.Sleep(10 * time.Millisecond)
	}
	srv1.Broadcast(block.BlockID)

	deadline = time.Now().Add(2 * time.Second)
	for cs2.Height() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for relayed block; cs2 height=%d", cs2.Height())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := cs2.Tip(); got == nil || got.BlockID != block.BlockID {
		t.Fatalf("cs2 tip mismatch: %+v", got)
	}
}

func TestServer_OnTxSubmitsToSyncEngine(t *testing.T) {
	cs, se, signer, minerAddr := newTestServerChain(t)
	srv := NewServer(se, 1, [32]byte{}, "test", 0, nil)

	miner := NewMiner(cs, se, DefaultMinerConfig(minerAddr), nil)
	if _, err := miner.MineOne(context.Background(), 1000); err != nil {
		t.Fatalf("fund miner: %v", err)
	}

	var recipient consensus.Address
	recipient[0] = 0x55
	tx, err := consensus.CreateSignedTransaction(signer, recipient, 5, 1, 0)
	if err != nil {
		t.Fatalf("create tx: %v", err)
	}

	raw, err := EncodeTx(tx)
	if err != nil {
		t.Fatalf("encode tx: %v", err)
	}

	srv.OnTx(nil, raw)

	if !se.HasTransaction(tx.TxID) {
		t.Fatal("expected OnTx to admit the transaction to the mempool")
	}
}
