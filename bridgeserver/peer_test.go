package bridgeserver

import "testing"

func TestPeerHandshakeTransitionsToBroadcast(t *testing.T) {
	p := &Peer{state: peerNew, out: make(chan string, 1)}

	if p.Broadcasting() {
		t.Fatal("a fresh peer must start in NEW, not BROADCAST")
	}
	if justBroadcast := p.onLine("some other sentence"); justBroadcast {
		t.Fatal("an unrelated line must not trigger the handshake")
	}
	if p.Broadcasting() {
		t.Fatal("peer must still be NEW after a non-handshake line")
	}

	if justBroadcast := p.onLine(pypbsHandshake); !justBroadcast {
		t.Fatal("the PYPBS handshake must transition NEW -> BROADCAST")
	}
	if !p.Broadcasting() {
		t.Fatal("peer must be BROADCAST after the handshake")
	}
}

func TestPeerHandshakeIsStickyNoOptOut(t *testing.T) {
	p := &Peer{state: peerNew, out: make(chan string, 1)}
	p.onLine(pypbsHandshake)

	// Per Open Question #3, broadcast mode has no opt-out sentence; any
	// further line, even a bare non-handshake one, must leave it set.
	p.onLine("$GPRMC,anything")
	if !p.Broadcasting() {
		t.Fatal("BROADCAST mode must be sticky: no line un-sets it")
	}
}

func TestPeerDeviceIDHasNoTalkerPrefix(t *testing.T) {
	p := &Peer{ID: 7}
	if got := p.DeviceID(); got != "socket7" {
		t.Fatalf("DeviceID() = %q, want socket7 (Open Question #2)", got)
	}
}
