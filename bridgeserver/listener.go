package bridgeserver

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// MaxPeers is the hard cap on simultaneously connected TCP peers
// (spec.md §6: "backlog 5", §4.4: "10-peer cap").
const MaxPeers = 10

// BindRetryInterval is how often Listen retries binding the listening
// socket after a failure (spec.md §6: "retries every 1 s until success").
const BindRetryInterval = time.Second

// EventKind distinguishes the events a Listener/Peer produce.
type EventKind int

const (
	EventNewPeer EventKind = iota
	EventPeerData
	EventPeerLost
)

// Event is what feeder goroutines (the accept loop, per-peer readers)
// post back to the supervisor. All bridge-state mutation in response to
// an Event happens in the single supervisor goroutine.
type Event struct {
	Kind   EventKind
	PeerID uint64
	Peer   *Peer
	Data   []byte
	Err    error
}

// ErrPeerLost wraps a peer socket's terminal read error, returned to the
// supervisor as part of an EventPeerLost's Err field.
var ErrPeerLost = errors.New("bridgeserver: peer connection lost")

// Listener accepts TCP peers on a bound address and forwards lifecycle
// events to a shared channel, mirroring apps/proxy/tcpprox.go's
// StartClientListener/handleClientMessages pair but generalized from one
// MITM connection to N fanout peers.
type Listener struct {
	addr   string
	ln     net.Listener
	events chan<- Event
	nextID uint64
}

// Listen binds addr (host:port), retrying every BindRetryInterval until
// it succeeds; it does not return before the bind succeeds, so the
// returned error is always nil. events receives
// EventNewPeer/EventPeerData/EventPeerLost.
func Listen(addr string, events chan<- Event) (*Listener, error) {
	l := &Listener{addr: addr, events: events}
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			l.ln = ln
			break
		}
		time.Sleep(BindRetryInterval)
	}
	return l, nil
}

// AcceptLoop accepts connections until the listener is closed, enforcing
// the MaxPeers cap by immediately closing any connection accepted while
// the cap is reached; no log line is written for a rejected connection,
// and no event reaches the supervisor. livePeers is an atomic counter the supervisor
// increments/decrements as it processes EventNewPeer/EventPeerLost; it is
// the one piece of state touched outside the supervisor goroutine,
// because the accept loop must reject over-cap connections immediately
// rather than round-tripping through the supervisor first.
func (l *Listener) AcceptLoop(livePeers *atomic.Int64) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		if livePeers.Load() >= MaxPeers {
			conn.Close()
			continue
		}
		id := l.nextID
		l.nextID++
		p := newPeer(id, conn)
		l.events <- Event{Kind: EventNewPeer, PeerID: id, Peer: p}
		go p.readLoop(l.events)
		go p.writeLoop()
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Addr returns the listener's bound address, useful once Listen is asked
// to bind on an ephemeral port (":0") in tests.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (e Event) String() string {
	switch e.Kind {
	case EventNewPeer:
		return fmt.Sprintf("new peer %d", e.PeerID)
	case EventPeerData:
		return fmt.Sprintf("peer %d: %d bytes", e.PeerID, len(e.Data))
	case EventPeerLost:
		return fmt.Sprintf("peer %d lost: %v", e.PeerID, e.Err)
	default:
		return "unknown event"
	}
}
