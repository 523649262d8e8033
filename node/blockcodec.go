package node

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"zimcoin.dev/node/consensus"
)

// blockDisk is the JSON wire/disk shape for a Block, matching the
// hex-everything convention the rest of this package's config and wallet
// files use for fixed-size byte fields.
type blockDisk struct {
	Previous     string   `json:"previous"`
	Height       uint64   `json:"height"`
	Miner        string   `json:"miner"`
	Timestamp    uint64   `json:"timestamp"`
	Difficulty   uint64   `json:"difficulty"`
	BlockID      string   `json:"block_id"`
	Nonce        uint64   `json:"nonce"`
	Transactions []txDisk `json:"transactions"`
}

type txDisk struct {
	SenderPublicKey string `json:"sender_public_key"`
	RecipientHash   string `json:"recipient_hash"`
	SenderHash      string `json:"sender_hash"`
	Amount          uint64 `json:"amount"`
	Fee             uint64 `json:"fee"`
	Nonce           uint64 `json:"nonce"`
	TxID            string `json:"txid"`
	Signature       string `json:"signature"`
}

func encodeBlock(b *consensus.Block) ([]byte, error) {
	disk := blockDisk{
		Previous:   hex.EncodeToString(b.Previous[:]),
		Height:     b.Height,
		Miner:      hex.EncodeToString(b.Miner[:]),
		Timestamp:  b.Timestamp,
		Difficulty: b.Difficulty,
		BlockID:    hex.EncodeToString(b.BlockID[:]),
		Nonce:      b.Nonce,
	}
	for _, t := range b.Transactions {
		disk.Transactions = append(disk.Transactions, txDisk{
			SenderPublicKey: hex.EncodeToString(t.SenderPublicKey),
			RecipientHash:   hex.EncodeToString(t.RecipientHash[:]),
			SenderHash:      hex.EncodeToString(t.SenderHash[:]),
			Amount:          t.Amount,
			Fee:             t.Fee,
			Nonce:           t.Nonce,
			TxID:            hex.EncodeToString(t.TxID[:]),
			Signature:       hex.EncodeToString(t.Signature),
		})
	}
	return json.Marshal(disk)
}

func decodeBlock(raw []byte) (*consensus.Block, error) {
	var disk blockDisk
	if err := json.Unmarshal(raw, &disk); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	b := &consensus.Block{
		Height:     disk.Height,
		Timestamp:  disk.Timestamp,
		Difficulty: disk.Difficulty,
		Nonce:      disk.Nonce,
	}
	if err := decodeHash32(disk.Previous, &b.Previous); err != nil {
		return nil, fmt.Errorf("decode block previous: %w", err)
	}
	if err := decodeHash32(disk.BlockID, &b.BlockID); err != nil {
		return nil, fmt.Errorf("decode block block_id: %w", err)
	}
	miner, err := hex.DecodeString(disk.Miner)
	if err != nil {
		return nil, fmt.Errorf("decode block miner: %w", err)
	}
	b.Miner, err = consensus.ParseMinerAddress(miner)
	if err != nil {
		return nil, fmt.Errorf("decode block miner: %w", err)
	}
	for i, td := range disk.Transactions {
		t, err := decodeTx(td)
		if err != nil {
			return nil, fmt.Errorf("decode block tx[%d]: %w", i, err)
		}
		b.Transactions = append(b.Transactions, t)
	}
	return b, nil
}

func decodeTx(td txDisk) (*consensus.Transaction, error) {
	pubkey, err := hex.DecodeString(td.SenderPublicKey)
	if err != nil {
		return nil, fmt.Errorf("sender_public_key: %w", err)
	}
	sig, err := hex.DecodeString(td.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	t := &consensus.Transaction{
		SenderPublicKey: pubkey,
		Amount:          td.Amount,
		Fee:             td.Fee,
		Nonce:           td.Nonce,
		Signature:       sig,
	}
	if err := decodeHash20(td.RecipientHash, &t.RecipientHash); err != nil {
		return nil, fmt.Errorf("recipient_hash: %w", err)
	}
	if err := decodeHash20(td.SenderHash, &t.SenderHash); err != nil {
		return nil, fmt.Errorf("sender_hash: %w", err)
	}
	if err := decodeHash32(td.TxID, &t.TxID); err != nil {
		return nil, fmt.Errorf("txid: %w", err)
	}
	return t, nil
}

func decodeHash32(s string, out *[32]byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return nil
}

// EncodeTx/DecodeTx give a single transaction the same hex-JSON disk
// shape as the transactions embedded in a block, for the p2p `tx`
// message.
func EncodeTx(t *consensus.Transaction) ([]byte, error) {
	return json.Marshal(txDisk{
		SenderPublicKey: hex.EncodeToString(t.SenderPublicKey),
		RecipientHash:   hex.EncodeToString(t.RecipientHash[:]),
		SenderHash:      hex.EncodeToString(t.SenderHash[:]),
		Amount:          t.Amount,
		Fee:             t.Fee,
		Nonce:           t.Nonce,
		TxID:            hex.EncodeToString(t.TxID[:]),
		Signature:       hex.EncodeToString(t.Signature),
	})
}

func DecodeTx(raw []byte) (*consensus.Transaction, error) {
	var td txDisk
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil, fmt.Errorf("decode tx: %w", err)
	}
	return decodeTx(td)
}

func decodeHash20(s string, out *consensus.Address) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	a, err := consensus.ParseMinerAddress(raw)
	if err != nil {
		return err
	}
	*out = a
	return nil
}
