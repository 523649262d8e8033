package consensus

import "crypto/sha256"

// Signer is the narrow interface CreateSignedTransaction needs from a
// wallet key: its DER-encoded public key and the ability to produce an
// ECDSA signature over a pre-hashed message. The crypto package supplies
// the concrete secp256k1 implementation; consensus stays agnostic of it.
type Signer interface {
	PublicKeyDER() []byte
	Sign(digest [32]byte) ([]byte, error)
}

// SignatureVerifier is the narrow interface Transaction.Verify needs to
// check an ECDSA signature over a pre-hashed message.
type SignatureVerifier interface {
	VerifySignature(pubkeyDER []byte, digest [32]byte, sig []byte) bool
}

// Transaction is a self-contained signed value transfer (§3).
type Transaction struct {
	SenderHash       Address
	RecipientHash    Address
	SenderPublicKey  []byte // DER (X.509 SubjectPublicKeyInfo) encoding
	Amount           uint64
	Fee              uint64
	Nonce            uint64
	Signature        []byte
	TxID             [32]byte
}

// signedMessageDigest computes SHA-256(recipient_hash || amount_LE8 ||
// fee_LE8 || nonce_LE8), the pre-hashed message ECDSA signs (§3, §6).
func signedMessageDigest(recipientHash Address, amount, fee, nonce uint64) [32]byte {
	buf := make([]byte, 0, AddressLen+8+8+8)
	buf = append(buf, recipientHash[:]...)
	buf = appendU64LE(buf, amount)
	buf = appendU64LE(buf, fee)
	buf = appendU64LE(buf, nonce)
	return sha256.Sum256(buf)
}

// computeTxID computes the canonical txid pre-image from §6:
// sender_hash || recipient_hash || DER(sender_pubkey) || amount_LE8 ||
// fee_LE8 || nonce_LE8 || signature.
func computeTxID(senderHash, recipientHash Address, senderPubKeyDER []byte, amount, fee, nonce uint64, signature []byte) [32]byte {
	buf := make([]byte, 0, AddressLen*2+len(senderPubKeyDER)+24+len(signature))
	buf = append(buf, senderHash[:]...)
	buf = append(buf, recipientHash[:]...)
	buf = append(buf, senderPubKeyDER...)
	buf = appendU64LE(buf, amount)
	buf = appendU64LE(buf, fee)
	buf = appendU64LE(buf, nonce)
	buf = append(buf, signature...)
	return sha256.Sum256(buf)
}

// CreateSignedTransaction constructs and signs a value transfer (§4.2).
func CreateSignedTransaction(signer Signer, recipientHash Address, amount, fee, nonce uint64) (*Transaction, error) {
	pubKeyDER := signer.PublicKeyDER()
	senderHash := DeriveAddress(pubKeyDER)

	digest := signedMessageDigest(recipientHash, amount, fee, nonce)
	sig, err := signer.Sign(digest)
	if err != nil {
		return nil, err
	}

	txid := computeTxID(senderHash, recipientHash, pubKeyDER, amount, fee, nonce, sig)

	return &Transaction{
		SenderHash:      senderHash,
		RecipientHash:   recipientHash,
		SenderPublicKey: pubKeyDER,
		Amount:          amount,
		Fee:             fee,
		Nonce:           nonce,
		Signature:       sig,
		TxID:            txid,
	}, nil
}

// Verify checks t against a snapshot of the sender's (balance, nonce), in
// the exact order specified by §4.2. Any failure is a fatal error for the
// enclosing block (§7).
func (t *Transaction) Verify(senderBalance uint64, senderPrevNonce int64, verifier SignatureVerifier) error {
	if len(t.SenderHash) != AddressLen {
		return validationErr(ReasonBadSenderHash)
	}
	if len(t.RecipientHash) != AddressLen {
		return validationErr(ReasonBadRecipientHash)
	}
	if t.SenderHash != DeriveAddress(t.SenderPublicKey) {
		return validationErr(ReasonBadSenderHash)
	}
	if t.Amount == 0 || t.Amount > senderBalance {
		return validationErr(ReasonBadAmount)
	}
	if t.Fee > t.Amount {
		return validationErr(ReasonBadFee)
	}
	wantNonce, ok := addSignedUint64(senderPrevNonce, 1)
	if !ok || t.Nonce != wantNonce {
		return validationErr(ReasonBadNonce)
	}
	wantTxID := computeTxID(t.SenderHash, t.RecipientHash, t.SenderPublicKey, t.Amount, t.Fee, t.Nonce, t.Signature)
	if t.TxID != wantTxID {
		return validationErr(ReasonBadTxID)
	}
	digest := signedMessageDigest(t.RecipientHash, t.Amount, t.Fee, t.Nonce)
	if !verifier.VerifySignature(t.SenderPublicKey, digest, t.Signature) {
		return validationErr(ReasonInvalidSignature)
	}
	return nil
}

// addSignedUint64 adds 1 (always positive here) to a signed nonce and
// reports whether the result is representable as a uint64 transaction
// nonce. senderPrevNonce+1 is negative only if senderPrevNonce < -1, which
// never happens for a well-formed account (its floor is DefaultNonce=-1).
func addSignedUint64(prev int64, delta int64) (uint64, bool) {
	next := prev + delta
	if next < 0 {
		return 0, false
	}
	return uint64(next), true
}
