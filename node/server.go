package node

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"zimcoin.dev/node/node/p2p"
)

// Server accepts and dials P2P connections and routes their inv/getdata/
// block/tx traffic into a SyncEngine. It implements p2p.Handler itself;
// the p2p package knows nothing about blocks or transactions beyond raw
// bytes and hashes.
type Server struct {
	sync       *SyncEngine
	magic      uint32
	chainID    [32]byte
	ourVersion p2p.VersionPayload
	logger     *zap.Logger

	mu    sync.Mutex
	peers map[*p2p.Peer]struct{}
}

func NewServer(sync *SyncEngine, magic uint32, chainID [32]byte, userAgent string, startHeight uint32, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sync:    sync,
		magic:   magic,
		chainID: chainID,
		ourVersion: p2p.VersionPayload{
			ProtocolVersion: p2p.ProtocolVersionV1,
			ChainID:         chainID,
			Nonce:           p2p.RandomNonce(),
			UserAgent:       userAgent,
			StartHeight:     startHeight,
			Relay:           true,
		},
		logger: logger,
		peers:  make(map[*p2p.Peer]struct{}),
	}
}

// ListenAndServe accepts connections on bindAddr until stop is closed.
func (srv *Server) ListenAndServe(bindAddr string, stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", bindAddr, err)
	}
	go func() {
		<-stop
		ln.Close()
	}()

	srv.logger.Info("server: listening", zap.String("addr", bindAddr))
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		go srv.acceptConn(conn, stop)
	}
}

func (srv *Server) acceptConn(conn net.Conn, stop <-chan struct{}) {
	p, err := p2p.Accept(conn, srv.magic, srv.ourVersion, srv.chainID)
	if err != nil {
		srv.logger.Warn("server: inbound handshake failed", zap.Error(err))
		return
	}
	srv.servePeer(p, stop)
}

// Dial connects to addr, performs the handshake, and serves the
// connection until it closes or stop fires.
func (srv *Server) Dial(addr string, stop <-chan struct{}) error {
	p, err := p2p.Dial(addr, srv.magic, srv.ourVersion, srv.chainID)
	if err != nil {
		return fmt.Errorf("server: dial %s: %w", addr, err)
	}
	go srv.servePeer(p, stop)
	return nil
}

func (srv *Server) servePeer(p *p2p.Peer, stop <-chan struct{}) {
	srv.mu.Lock()
	srv.peers[p] = struct{}{}
	srv.mu.Unlock()
	srv.logger.Info("server: peer connected", zap.String("remote", p.RemoteAddr().String()))

	defer func() {
		srv.mu.Lock()
		delete(srv.peers, p)
		srv.mu.Unlock()
		p.Close()
	}()

	if err := p.Serve(srv, stop); err != nil {
		srv.logger.Warn("server: peer disconnected", zap.String("remote", p.RemoteAddr().String()), zap.Error(err))
	}
}

// Broadcast advertises a newly applied block to every connected peer.
func (srv *Server) Broadcast(blockID [32]byte) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	items := []p2p.InvVector{{Type: p2p.InvTypeBlock, Hash: blockID}}
	for p := range srv.peers {
		if err := p.SendInv(items); err != nil {
			srv.logger.Warn("server: broadcast failed", zap.Error(err))
		}
	}
}

func (srv *Server) OnInv(p *p2p.Peer, items []p2p.InvVector) {
	var want []p2p.InvVector
	for _, item := range items {
		switch item.Type {
		case p2p.InvTypeBlock:
			if !srv.sync.HasBlock(item.Hash) {
				want = append(want, item)
			}
		case p2p.InvTypeTx:
			if !srv.sync.HasTransaction(item.Hash) {
				want = append(want, item)
			}
		}
	}
	if len(want) > 0 {
		if err := p.SendGetData(want); err != nil {
			srv.logger.Warn("server: getdata send failed", zap.Error(err))
		}
	}
}

func (srv *Server) OnGetData(p *p2p.Peer, items []p2p.InvVector) {
	for _, item := range items {
		if item.Type != p2p.InvTypeBlock {
			continue
		}
		raw, ok, err := srv.sync.BlockBytes(item.Hash)
		if err != nil || !ok {
			continue
		}
		if err := p.SendBlock(raw); err != nil {
			srv.logger.Warn("server: block send failed", zap.Error(err))
		}
	}
}

func (srv *Server) OnBlock(p *p2p.Peer, raw []byte) {
	b, err := decodeBlock(raw)
	if err != nil {
		srv.logger.Warn("server: malformed block from peer", zap.Error(err))
		return
	}
	if err := srv.sync.ApplyBlock(b); err != nil {
		srv.logger.Debug("server: rejected block from peer", zap.Uint64("height", b.Height), zap.Error(err))
		return
	}
	srv.logger.Info("server: accepted block from peer", zap.Uint64("height", b.Height))
	go srv.Broadcast(b.BlockID)
}

func (srv *Server) OnTx(p *p2p.Peer, raw []byte) {
	tx, err := DecodeTx(raw)
	if err != nil {
		srv.logger.Warn("server: malformed tx from peer", zap.Error(err))
		return
	}
	if err := srv.sync.SubmitTransaction(tx); err != nil {
		srv.logger.Debug("server: rejected tx from peer", zap.Error(err))
	}
}
