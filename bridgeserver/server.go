package bridgeserver

import "sync/atomic"

// Server owns the live peer set and the atomic peer count shared with the
// accept loop. It performs no I/O of its own; it's the supervisor-owned
// bookkeeping the Listener/OutboundClient events get applied to.
type Server struct {
	peers     map[uint64]*Peer
	liveCount atomic.Int64
}

// NewServer creates an empty Server.
func NewServer() *Server {
	return &Server{peers: make(map[uint64]*Peer)}
}

// LiveCount exposes the atomic counter for Listener.AcceptLoop.
func (s *Server) LiveCount() *atomic.Int64 {
	return &s.liveCount
}

// AddPeer registers a newly accepted peer.
func (s *Server) AddPeer(p *Peer) {
	s.peers[p.ID] = p
	s.liveCount.Store(int64(len(s.peers)))
}

// RemovePeer drops a peer that has been lost, closing its resources.
func (s *Server) RemovePeer(id uint64) {
	if p, ok := s.peers[id]; ok {
		p.Close()
		delete(s.peers, id)
		s.liveCount.Store(int64(len(s.peers)))
	}
}

// Peer looks up a peer by ID.
func (s *Server) Peer(id uint64) (*Peer, bool) {
	p, ok := s.peers[id]
	return p, ok
}

// Count returns the number of currently connected peers.
func (s *Server) Count() int {
	return len(s.peers)
}

// AnyConnected reports whether at least one peer is connected, for the
// "sockets"/"nosockets" pipe control tags (spec.md §6).
func (s *Server) AnyConnected() bool {
	return len(s.peers) > 0
}

// Broadcast queues line for delivery to every connected peer. When
// hasExclude is true, the peer identified by excludeID (the one the line
// arrived from) is skipped so a peer never receives its own sentence
// echoed back. Whether a line is forwarded at all is a sender-side
// decision (only a peer in BROADCAST state causes its inbound lines to
// be rebroadcast, matching receive_nmea/receive_pipe in
// original_source/pypilot/nmea.py, which fan out to every socket with no
// check on the receiving socket's own flag); Broadcast itself delivers to
// every other connected peer unconditionally.
func (s *Server) Broadcast(line string, excludeID uint64, hasExclude bool) {
	for id, p := range s.peers {
		if hasExclude && id == excludeID {
			continue
		}
		p.Send(line)
	}
}
