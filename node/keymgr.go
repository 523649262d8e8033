package node

import (
	"encoding/hex"
	"fmt"
	"os"

	"zimcoin.dev/node/crypto"
)

// GenerateWallet creates a fresh secp256k1 key and writes it to path as a
// passphrase-encrypted crypto.Keystore. It refuses to overwrite an
// existing file so a stray `keygen` can't silently destroy a wallet.
func GenerateWallet(path, passphrase string) (*crypto.Secp256k1Signer, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("keymgr: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keymgr: stat %s: %w", path, err)
	}

	signer, err := crypto.GenerateSecp256k1Signer()
	if err != nil {
		return nil, fmt.Errorf("keymgr: generate key: %w", err)
	}
	if err := saveKeystore(path, signer, passphrase); err != nil {
		return nil, err
	}
	return signer, nil
}

// UnlockWallet reads the keystore at path and unwraps it under
// passphrase, returning a ready-to-sign Secp256k1Signer.
func UnlockWallet(path, passphrase string) (*crypto.Secp256k1Signer, error) {
	raw, err := readFileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("keymgr: read %s: %w", path, err)
	}
	ks, err := crypto.DecodeKeystore(raw)
	if err != nil {
		return nil, fmt.Errorf("keymgr: decode %s: %w", path, err)
	}
	priv, err := ks.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("keymgr: unlock %s: %w", path, err)
	}
	return crypto.NewSecp256k1Signer(priv), nil
}

// ExportWallet returns the raw 32-byte secp256k1 private key held by path
// (after unlocking it with passphrase) as a hex string, for an
// operator migrating a key to another node. The key never touches disk
// unencrypted; callers are responsible for what they do with the
// returned string.
func ExportWallet(path, passphrase string) (string, error) {
	signer, err := UnlockWallet(path, passphrase)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(signer.PrivateKeyBytes()), nil
}

// ImportWallet wraps an existing hex-encoded secp256k1 private key under
// a fresh passphrase and writes it to path, refusing to overwrite an
// existing keystore.
func ImportWallet(path, privateKeyHex, passphrase string) (*crypto.Secp256k1Signer, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("keymgr: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keymgr: stat %s: %w", path, err)
	}

	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("keymgr: decode private key: %w", err)
	}
	signer, err := crypto.SignerFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("keymgr: %w", err)
	}
	if err := saveKeystore(path, signer, passphrase); err != nil {
		return nil, err
	}
	return signer, nil
}

func saveKeystore(path string, signer *crypto.Secp256k1Signer, passphrase string) error {
	ks, err := crypto.NewKeystoreForSigner(signer, passphrase, crypto.DefaultScryptParams())
	if err != nil {
		return fmt.Errorf("keymgr: wrap key: %w", err)
	}
	raw, err := ks.Encode()
	if err != nil {
		return fmt.Errorf("keymgr: encode keystore: %w", err)
	}
	if err := writeFileAtomic(path, raw, 0o600); err != nil {
		return fmt.Errorf("keymgr: write %s: %w", path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
