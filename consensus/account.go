package consensus

// AccountState is the pair (balance, nonce) for one address (§3).
// DefaultNonce is the sentinel meaning "no transaction ever applied from
// this address"; the first valid transaction from a fresh account carries
// Nonce == 0.
type AccountState struct {
	Balance uint64
	Nonce   int64
}

const DefaultNonce int64 = -1

// DefaultAccountState is the implicit value of every address that has
// never been touched.
var DefaultAccountState = AccountState{Balance: 0, Nonce: DefaultNonce}

// AccountMap is Address -> AccountState with the defaulting rule from §3:
// unknown addresses implicitly map to (balance=0, nonce=-1). A nil map
// behaves identically to an empty one for reads.
type AccountMap map[Address]AccountState

// GetOrDefault reads an account without materializing it in the map, so
// that pure reads never grow the map (§9).
func (m AccountMap) GetOrDefault(addr Address) AccountState {
	if st, ok := m[addr]; ok {
		return st
	}
	return DefaultAccountState
}

// Set writes an account's state. Writing the default state back removes
// the entry instead of storing it, so two maps that agree on every
// touched address compare equal under Equal even if one of them took a
// round trip through the default value (§3: "addresses that remain at the
// default state are indistinguishable from absent").
func (m AccountMap) Set(addr Address, st AccountState) {
	if st == DefaultAccountState {
		delete(m, addr)
		return
	}
	m[addr] = st
}

// Clone returns a deep (value) copy so that a failed state transition
// never mutates the caller's map (§4.3, §9 "Copy-on-write for rollback").
func (m AccountMap) Clone() AccountMap {
	out := make(AccountMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether two maps agree on every address that has ever
// been touched, per §3's equality rule.
func (m AccountMap) Equal(other AccountMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
