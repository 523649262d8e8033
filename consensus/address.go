package consensus

import "crypto/sha1" //nolint:gosec // address derivation is spec-mandated SHA-1, not used for collision resistance here.

// Address is a 20-byte account identifier: SHA-1 of the DER-encoded
// public key (§3, §4.1).
type Address [AddressLen]byte

// DeriveAddress computes address(pk) = SHA-1(DER(pk)). pubkeyDER is the
// X.509 SubjectPublicKeyInfo encoding of a secp256k1 public key, produced
// by the crypto package; this function only performs the hashing step so
// that the consensus core stays independent of the DER encoding details.
func DeriveAddress(pubkeyDER []byte) Address {
	return Address(sha1.Sum(pubkeyDER)) //nolint:gosec
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLen)
	copy(out, a[:])
	return out
}
