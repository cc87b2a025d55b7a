// Package bridgeserver implements the TCP peer-fanout side of the bridge
// (component C7): a bounded-capacity listener, per-peer NEW/BROADCAST/
// CLOSED state, and an optional reconnecting outbound client. Grounded on
// the teacher's apps/proxy/tcpprox.go goroutine-per-direction shape,
// generalized from a two-ended MITM proxy to an N-peer fanout.
package bridgeserver

import (
	"fmt"
	"net"

	"github.com/binnacle/nmeabridge/nmea"
)

// pypbsHandshake is the literal sentence a peer must send to move from
// NEW to BROADCAST (spec.md §4.4).
const pypbsHandshake = "$PYPBS*48"

// peerState is a peer socket's place in the NEW/BROADCAST/CLOSED state
// machine (spec.md §4.4).
type peerState int

const (
	peerNew peerState = iota
	peerBroadcast
	peerClosed
)

// Peer is one connected TCP peer: its framer, handshake state, and a
// channel of lines to be written out to it.
type Peer struct {
	ID   uint64
	Conn net.Conn

	state  peerState
	framer *nmea.LineBuffer

	out chan string
}

// newPeer wraps conn as a NEW peer with id.
func newPeer(id uint64, conn net.Conn) *Peer {
	return &Peer{
		ID:     id,
		Conn:   conn,
		state:  peerNew,
		framer: nmea.NewLineBuffer(),
		out:    make(chan string, 64),
	}
}

// DeviceID is the device string recorded against readings this peer
// produces (Open Question #2: plain "socket<uid>", no talker-ID prefix).
func (p *Peer) DeviceID() string {
	return socketDeviceID(p.ID)
}

func socketDeviceID(id uint64) string {
	return "socket" + uitoa(id)
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

// Broadcasting reports whether this peer has completed the PYPBS
// handshake, so that its inbound lines are relayed to the other peers
// (Open Question #3: sticky, no opt-out once set). Receiving relayed
// lines does not depend on it.
func (p *Peer) Broadcasting() bool {
	return p.state == peerBroadcast
}

// onLine applies one framed line from this peer to its handshake state,
// reporting whether the peer just transitioned into BROADCAST for the
// first time (spec.md's NEW --recv "$PYPBS*48"--> BROADCAST).
func (p *Peer) onLine(line string) (justBroadcast bool) {
	if p.state == peerNew && line == pypbsHandshake {
		p.state = peerBroadcast
		return true
	}
	return false
}

// Feed appends freshly read bytes to this peer's line framer. Called only
// by the supervisor goroutine as it drains EventPeerData, never by
// readLoop itself.
func (p *Peer) Feed(data []byte) {
	p.framer.Feed(data)
}

// NextLine returns the next complete, checksum-valid sentence buffered
// for this peer, if any.
func (p *Peer) NextLine() (string, bool) {
	return p.framer.Next()
}

// ApplyLine is the exported form of onLine, for the supervisor to drive
// the handshake state machine as it drains lines.
func (p *Peer) ApplyLine(line string) (justBroadcast bool) {
	return p.onLine(line)
}

// Send queues line to be written to this peer, dropping it if the
// peer's outbound buffer is full rather than blocking the caller (a slow
// peer must never stall the supervisor).
func (p *Peer) Send(line string) {
	select {
	case p.out <- line:
	default:
	}
}

// writeLoop drains p.out to the underlying connection until it's closed.
// This, together with readLoop, is the pair of pure-forwarder goroutines
// per peer: neither touches bridge state, only channels and the socket.
func (p *Peer) writeLoop() {
	for line := range p.out {
		if _, err := p.Conn.Write([]byte(line)); err != nil {
			return
		}
	}
}

// readLoop reads raw bytes from the peer connection and posts them to
// out as Events, until the connection errors or is closed.
func (p *Peer) readLoop(out chan<- Event) {
	buf := make([]byte, 2048)
	for {
		n, err := p.Conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- Event{Kind: EventPeerData, PeerID: p.ID, Data: chunk}
		}
		if err != nil {
			out <- Event{Kind: EventPeerLost, PeerID: p.ID, Err: fmt.Errorf("%w: %v", ErrPeerLost, err)}
			return
		}
	}
}

// Close releases the peer's connection and stops its writer goroutine.
func (p *Peer) Close() {
	p.state = peerClosed
	p.Conn.Close()
	close(p.out)
}
