package p2p

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"
)

// Handler reacts to messages a Peer receives after the handshake completes.
// Implementations live in the node package, which has access to the chain
// store and mempool; this package only knows about framing and ban-score
// bookkeeping.
type Handler interface {
	OnInv(p *Peer, items []InvVector)
	OnGetData(p *Peer, items []InvVector)
	OnBlock(p *Peer, raw []byte)
	OnTx(p *Peer, raw []byte)
}

// Peer wraps one handshaken connection and its ban-score bookkeeping.
// Reads happen on a single goroutine started by Serve; the Send* methods
// are safe to call concurrently from others.
type Peer struct {
	conn    net.Conn
	magic   uint32
	version VersionPayload
	ban     BanScore

	mu      sync.Mutex
	closed  bool
	pingSeq uint64
}

// Dial connects to addr, performs the handshake, and returns a ready Peer.
func Dial(addr string, magic uint32, ourVersion VersionPayload, chainID [32]byte) (*Peer, error) {
	conn, err := net.DialTimeout("tcp", addr, HandshakeTimeout)
	if err != nil {
		return nil, err
	}
	res, err := Handshake(conn, magic, ourVersion, chainID)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Peer{conn: conn, magic: magic, version: res.PeerVersion}, nil
}

// Accept performs the responder side of the handshake over an already
// accepted connection.
func Accept(conn net.Conn, magic uint32, ourVersion VersionPayload, chainID [32]byte) (*Peer, error) {
	res, err := Handshake(conn, magic, ourVersion, chainID)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Peer{conn: conn, magic: magic, version: res.PeerVersion}, nil
}

func (p *Peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }
func (p *Peer) PeerVersion() VersionPayload { return p.version }

func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

func (p *Peer) send(cmd string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("p2p: peer closed")
	}
	return WriteMessage(p.conn, p.magic, cmd, payload)
}

func (p *Peer) SendInv(items []InvVector) error {
	payload, err := EncodeInvPayload(items)
	if err != nil {
		return err
	}
	return p.send(CmdInv, payload)
}

func (p *Peer) SendGetData(items []InvVector) error {
	payload, err := EncodeInvPayload(items)
	if err != nil {
		return err
	}
	return p.send(CmdGetData, payload)
}

func (p *Peer) SendBlock(raw []byte) error { return p.send(CmdBlock, raw) }
func (p *Peer) SendTx(raw []byte) error    { return p.send(CmdTx, raw) }

func (p *Peer) SendPing() error {
	p.mu.Lock()
	p.pingSeq++
	nonce := p.pingSeq
	p.mu.Unlock()
	payload, err := EncodePingPayload(PingPayload{Nonce: nonce})
	if err != nil {
		return err
	}
	return p.send(CmdPing, payload)
}

// Serve reads messages until the connection closes or done is closed,
// dispatching each to h. It returns the error that ended the loop.
func (p *Peer) Serve(h Handler, done <-chan struct{}) error {
	for {
		select {
		case <-done:
			return nil
		default:
		}

		msg, rerr := ReadMessage(p.conn, p.magic)
		if rerr != nil {
			if rerr.Disconnect {
				return rerr
			}
			p.ban.Add(time.Now(), rerr.BanScoreDelta)
			if p.ban.ShouldBan(time.Now()) {
				return fmt.Errorf("p2p: peer banned: %w", rerr)
			}
			continue
		}

		switch msg.Command {
		case CmdInv:
			items, err := DecodeInvPayload(msg.Payload)
			if err != nil {
				p.ban.Add(time.Now(), 10)
				continue
			}
			h.OnInv(p, items)
		case CmdGetData:
			items, err := DecodeInvPayload(msg.Payload)
			if err != nil {
				p.ban.Add(time.Now(), 10)
				continue
			}
			h.OnGetData(p, items)
		case CmdBlock:
			h.OnBlock(p, msg.Payload)
		case CmdTx:
			h.OnTx(p, msg.Payload)
		case CmdPing:
			pp, err := DecodePingPayload(msg.Payload)
			if err != nil {
				p.ban.Add(time.Now(), 10)
				continue
			}
			pong, _ := EncodePongPayload(PongPayload{Nonce: pp.Nonce})
			_ = p.send(CmdPong, pong)
		case CmdPong:
			// No in-flight ping tracking beyond liveness; arrival itself
			// resets read-timeout expectations at the caller.
		case CmdReject:
			// Logged by caller via a higher-level wrapper; nothing to do here.
		default:
			p.ban.Add(time.Now(), 1)
		}
	}
}

// RandomNonce produces a 64-bit nonce for version/ping payloads.
func RandomNonce() uint64 {
	return rand.Uint64()
}
