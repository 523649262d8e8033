package store

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"zimcoin.dev/node/consensus"
)

// ResyncAccounts replaces the entire accounts_by_address bucket with m. It
// is called after every block applied, undone, or reorganized onto, so the
// bucket always mirrors the tip's in-memory consensus.AccountMap exactly;
// there is no incremental diffing to get wrong.
func (d *DB) ResyncAccounts(m consensus.AccountMap) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAccounts)
		if err := tx.DeleteBucket(bucketAccounts); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		bucket, err := tx.CreateBucket(bucketAccounts)
		if err != nil {
			return err
		}
		for addr, state := range m {
			if err := bucket.Put(addr[:], encodeAccountState(state)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAccounts reconstructs a consensus.AccountMap from the accounts bucket.
// Returns an empty, non-nil map if the bucket has never been populated.
func (d *DB) LoadAccounts() (consensus.AccountMap, error) {
	out := make(consensus.AccountMap)
	err := d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAccounts).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) != consensus.AddressLen {
				return fmt.Errorf("store: account key has wrong length %d", len(k))
			}
			var addr consensus.Address
			copy(addr[:], k)
			state, err := decodeAccountState(v)
			if err != nil {
				return err
			}
			out[addr] = state
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// encodeAccountState lays out balance (u64le) then nonce (i64 as u64le
// two's complement), matching the node's other fixed-width disk encodings.
func encodeAccountState(s consensus.AccountState) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:8], s.Balance)
	binary.LittleEndian.PutUint64(out[8:16], uint64(s.Nonce))
	return out
}

func decodeAccountState(b []byte) (consensus.AccountState, error) {
	if len(b) != 16 {
		return consensus.AccountState{}, fmt.Errorf("store: account value has wrong length %d", len(b))
	}
	return consensus.AccountState{
		Balance: binary.LittleEndian.Uint64(b[0:8]),
		Nonce:   int64(binary.LittleEndian.Uint64(b[8:16])),
	}, nil
}
