package bridgeserver

import (
	"net"
	"time"

	"github.com/binnacle/nmeabridge/internal/clock"
)

// OutboundRetryInterval is the minimum gap between outbound connect
// attempts (spec.md §4.4: "attempt connect at most every 20s").
const OutboundRetryInterval = 20 * time.Second

// OutboundClient manages the optional outbound connection to a
// host:port sourced from the bus's "nmea.client" key. Once connected it
// is treated as a BROADCAST peer whose lifetime is tied to the
// configured target (spec.md §4.4).
type OutboundClient struct {
	clock  clock.Clock
	dial   func(addr string) (net.Conn, error)
	target string
	peer   *Peer
	lastAt time.Time
}

// NewOutboundClient creates an OutboundClient using dial to make
// connections (production code passes net.Dial wrapped to the
// "tcp"-network shape; tests substitute a fake).
func NewOutboundClient(c clock.Clock, dial func(addr string) (net.Conn, error)) *OutboundClient {
	return &OutboundClient{clock: c, dial: dial}
}

// Reconcile applies the latest value of the bus's "nmea.client" key. A
// changed target closes any existing connection immediately; the new
// target is dialed by the first Tick at least OutboundRetryInterval after
// the previous connection attempt.
func (o *OutboundClient) Reconcile(target string) {
	if target == o.target {
		return
	}
	o.target = target
	if o.peer != nil {
		o.peer.Close()
		o.peer = nil
	}
}

// Tick attempts a connection if none exists, a target is configured, and
// at least OutboundRetryInterval has passed since the last attempt. It
// returns the new Peer on success.
func (o *OutboundClient) Tick(nextID uint64, events chan<- Event) (*Peer, bool) {
	if o.target == "" || o.peer != nil {
		return nil, false
	}
	now := o.clock.Now()
	if !o.lastAt.IsZero() && now.Sub(o.lastAt) < OutboundRetryInterval {
		return nil, false
	}
	o.lastAt = now

	conn, err := o.dial(o.target)
	if err != nil {
		return nil, false
	}
	p := newPeer(nextID, conn)
	p.state = peerBroadcast // the outbound target is treated as BROADCAST from the start
	o.peer = p
	go p.readLoop(events)
	go p.writeLoop()
	return p, true
}

// Lost clears the current connection, e.g. after an EventPeerLost for
// this peer's ID, so the next Tick redials.
func (o *OutboundClient) Lost(peerID uint64) {
	if o.peer != nil && o.peer.ID == peerID {
		o.peer = nil
	}
}

// Peer returns the current outbound peer, if connected.
func (o *OutboundClient) Peer() *Peer {
	return o.peer
}
