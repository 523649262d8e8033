package crypto

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// X.509 SubjectPublicKeyInfo OIDs for EC public keys on the secp256k1
// curve. Go's standard library crypto/x509 only knows the NIST curves
// (P-224/256/384/521); secp256k1 has no entry in its OID table, so there
// is no way to get an *x509.Certificate-style encoder to emit this form.
// This is the one piece of the crypto surface hand-rolled on
// encoding/asn1 rather than pulled from a third-party library.
var (
	oidPublicKeyECDSA      = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

type pkixAlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue
}

type pkixPublicKey struct {
	Algorithm pkixAlgorithmIdentifier
	PublicKey asn1.BitString
}

// MarshalPublicKeyDER encodes pub as an X.509 SubjectPublicKeyInfo,
// carrying the uncompressed EC point (0x04 || X || Y) as the BIT STRING
// payload.
func MarshalPublicKeyDER(pub *btcec.PublicKey) ([]byte, error) {
	curveParams, err := asn1.Marshal(oidNamedCurveSecp256k1)
	if err != nil {
		return nil, err
	}
	raw := pub.SerializeUncompressed()
	spki := pkixPublicKey{
		Algorithm: pkixAlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: curveParams},
		},
		PublicKey: asn1.BitString{Bytes: raw, BitLength: len(raw) * 8},
	}
	return asn1.Marshal(spki)
}

// ParsePublicKeyDER is the inverse of MarshalPublicKeyDER.
func ParsePublicKeyDER(der []byte) (*btcec.PublicKey, error) {
	var spki pkixPublicKey
	rest, err := asn1.Unmarshal(der, &spki)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.New("crypto: trailing bytes after SubjectPublicKeyInfo")
	}
	if !spki.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
		return nil, errors.New("crypto: not an id-ecPublicKey SubjectPublicKeyInfo")
	}
	var curveOID asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &curveOID); err != nil {
		return nil, err
	}
	if !curveOID.Equal(oidNamedCurveSecp256k1) {
		return nil, errors.New("crypto: SubjectPublicKeyInfo is not on secp256k1")
	}
	return btcec.ParsePubKey(spki.PublicKey.Bytes)
}

// Secp256k1Signer wraps a secp256k1 private key as a consensus.Signer
// (and implements CryptoProvider). It is the wallet key's in-memory form
// once unlocked from the keystore.
type Secp256k1Signer struct {
	priv *btcec.PrivateKey
}

// GenerateSecp256k1Signer creates a fresh random secp256k1 key.
func GenerateSecp256k1Signer() (*Secp256k1Signer, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Secp256k1Signer{priv: priv}, nil
}

// NewSecp256k1Signer wraps an existing private key, e.g. one unwrapped
// from an on-disk keystore.
func NewSecp256k1Signer(priv *btcec.PrivateKey) *Secp256k1Signer {
	return &Secp256k1Signer{priv: priv}
}

// SignerFromBytes wraps a raw 32-byte secp256k1 private key, e.g. one an
// operator is importing from another node.
func SignerFromBytes(raw []byte) (*Secp256k1Signer, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("crypto: private key must be 32 bytes, got %d", len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &Secp256k1Signer{priv: priv}, nil
}

// NewKeystoreForSigner wraps signer's private key under a KEK derived
// from passphrase, the Keystore-producing counterpart to NewKeystore for
// callers that already hold a Secp256k1Signer rather than a raw
// *btcec.PrivateKey.
func NewKeystoreForSigner(signer *Secp256k1Signer, passphrase string, params ScryptParams) (*Keystore, error) {
	return NewKeystore(signer.priv, passphrase, params)
}

func (s *Secp256k1Signer) PrivateKeyBytes() []byte {
	return s.priv.Serialize()
}

func (s *Secp256k1Signer) PublicKeyDER() []byte {
	der, err := MarshalPublicKeyDER(s.priv.PubKey())
	if err != nil {
		// MarshalPublicKeyDER only fails if asn1.Marshal rejects a fixed,
		// well-formed OID, which does not happen.
		panic(err)
	}
	return der
}

// Sign produces a canonical, low-S DER-encoded ECDSA signature over a
// pre-hashed digest (§4.2, §6). btcec/v2/ecdsa.Sign already enforces
// RFC6979 deterministic nonces and low-S normalization.
func (s *Secp256k1Signer) Sign(digest [32]byte) ([]byte, error) {
	sig := ecdsa.Sign(s.priv, digest[:])
	return sig.Serialize(), nil
}

// VerifySignature checks a canonical DER-encoded ECDSA signature over a
// pre-hashed digest under a DER SubjectPublicKeyInfo-encoded public key.
func (s *Secp256k1Signer) VerifySignature(pubkeyDER []byte, digest [32]byte, sig []byte) bool {
	return VerifySignature(pubkeyDER, digest, sig)
}

// StdVerifier is a stateless consensus.SignatureVerifier: a node checks
// signatures from many different senders' public keys, never its own
// alone, so verification has no need for a held private key the way
// Secp256k1Signer does.
type StdVerifier struct{}

func (StdVerifier) VerifySignature(pubkeyDER []byte, digest [32]byte, sig []byte) bool {
	return VerifySignature(pubkeyDER, digest, sig)
}

// VerifySignature is the stateless form, usable without holding a signer.
func VerifySignature(pubkeyDER []byte, digest [32]byte, sig []byte) bool {
	pub, err := ParsePublicKeyDER(pubkeyDER)
	if err != nil {
		return false
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsedSig.Verify(digest[:], pub)
}
