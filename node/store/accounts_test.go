package store_test

import (
	"testing"

	"zimcoin.dev/node/consensus"
	"zimcoin.dev/node/node/store"
)

func TestAccounts_ResyncLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)

	var addrA, addrB consensus.Address
	addrA[0] = 0xaa
	addrB[0] = 0xbb

	m := consensus.AccountMap{
		addrA: {Balance: 100, Nonce: 0},
		addrB: {Balance: 0, Nonce: -1},
	}
	if err := db.ResyncAccounts(m); err != nil {
		t.Fatalf("resync: %v", err)
	}

	loaded, err := db.LoadAccounts()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.GetOrDefault(addrA) != (consensus.AccountState{Balance: 100, Nonce: 0}) {
		t.Fatalf("addrA mismatch: %+v", loaded.GetOrDefault(addrA))
	}
	// addrB carries the default state, which Set treats as absent;
	// ResyncAccounts nonetheless wrote it verbatim since it bypasses Set.
	if got := loaded.GetOrDefault(addrB); got != (consensus.AccountState{Balance: 0, Nonce: -1}) {
		t.Fatalf("addrB mismatch: %+v", got)
	}
}

func TestAccounts_ResyncReplacesPriorContents(t *testing.T) {
	db := openTestDB(t)

	var addr consensus.Address
	addr[0] = 0x01
	if err := db.ResyncAccounts(consensus.AccountMap{addr: {Balance: 5, Nonce: 0}}); err != nil {
		t.Fatalf("first resync: %v", err)
	}

	var other consensus.Address
	other[0] = 0x02
	if err := db.ResyncAccounts(consensus.AccountMap{other: {Balance: 9, Nonce: 0}}); err != nil {
		t.Fatalf("second resync: %v", err)
	}

	loaded, err := db.LoadAccounts()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected exactly one account after replace, got %d", len(loaded))
	}
	if _, ok := loaded[addr]; ok {
		t.Fatal("stale account from first resync should be gone")
	}
}
