package node

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"zimcoin.dev/node/consensus"
)

type Config struct {
	Network  string   `json:"network"`
	DataDir  string   `json:"data_dir"`
	BindAddr string   `json:"bind_addr"`
	LogLevel string   `json:"log_level"`
	Peers    []string `json:"peers"`
	MaxPeers int      `json:"max_peers"`

	// MinerAddress is the hex-encoded 20-byte account that mined blocks
	// credit the reward to. It may be empty; `run --mine` then refuses to
	// start.
	MinerAddress string `json:"miner_address"`

	// ChainID is a hex-encoded 32-byte network discriminator mixed into
	// the P2P handshake so nodes on unrelated networks reject each other
	// on connect instead of exchanging blocks that will never validate.
	ChainID string `json:"chain_id"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".rubin"
	}
	return filepath.Join(home, ".rubin")
}

func DefaultConfig() Config {
	return Config{
		Network:  "devnet",
		DataDir:  DefaultDataDir(),
		BindAddr: "0.0.0.0:19111",
		Peers:    nil,
		LogLevel: "info",
		MaxPeers: 64,
		ChainID:  strings.Repeat("00", 32),
	}
}

func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	for _, peer := range cfg.Peers {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MaxPeers <= 0 {
		return errors.New("max_peers must be > 0")
	}
	if cfg.MaxPeers > 4096 {
		return errors.New("max_peers must be <= 4096")
	}
	if _, err := decodeChainID(cfg.ChainID); err != nil {
		return fmt.Errorf("invalid chain_id: %w", err)
	}
	if cfg.MinerAddress != "" {
		if _, err := decodeMinerAddress(cfg.MinerAddress); err != nil {
			return fmt.Errorf("invalid miner_address: %w", err)
		}
	}
	return nil
}

// ParseChainID decodes a hex-encoded 32-byte chain_id, for callers (the
// CLI) building a P2P VersionPayload outside of Config validation.
func ParseChainID(s string) ([32]byte, error) {
	return decodeChainID(s)
}

// ParseMinerAddress decodes a hex-encoded 20-byte account address, for
// callers building a MinerConfig outside of Config validation.
func ParseMinerAddress(s string) (consensus.Address, error) {
	return decodeMinerAddress(s)
}

func decodeChainID(s string) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("chain_id must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func decodeMinerAddress(s string) (consensus.Address, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return consensus.Address{}, err
	}
	return consensus.ParseMinerAddress(raw)
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}
