package crypto_test

import (
	"crypto/sha256"
	"testing"

	"zimcoin.dev/node/crypto"
)

func TestSecp256k1Signer_SignAndVerifyRoundTrip(t *testing.T) {
	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	digest := sha256.Sum256([]byte("zimcoin"))

	sig, err := signer.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !signer.VerifySignature(signer.PublicKeyDER(), digest, sig) {
		t.Fatal("signature did not verify under its own public key")
	}
}

func TestSecp256k1Signer_VerifyRejectsWrongKeyOrDigest(t *testing.T) {
	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	other, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate other: %v", err)
	}
	digest := sha256.Sum256([]byte("zimcoin"))
	sig, err := signer.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if signer.VerifySignature(other.PublicKeyDER(), digest, sig) {
		t.Fatal("signature verified under the wrong public key")
	}

	wrongDigest := sha256.Sum256([]byte("not zimcoin"))
	if signer.VerifySignature(signer.PublicKeyDER(), wrongDigest, sig) {
		t.Fatal("signature verified over the wrong digest")
	}
}

func TestPublicKeyDER_MarshalParseRoundTrip(t *testing.T) {
	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	der := signer.PublicKeyDER()

	pub, err := crypto.ParsePublicKeyDER(der)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reencoded, err := crypto.MarshalPublicKeyDER(pub)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(reencoded) != string(der) {
		t.Fatal("DER round trip did not reproduce the original encoding")
	}
}

func TestParsePublicKeyDER_RejectsGarbage(t *testing.T) {
	if _, err := crypto.ParsePublicKeyDER([]byte("not a der spki")); err == nil {
		t.Fatal("expected error parsing garbage")
	}
}
