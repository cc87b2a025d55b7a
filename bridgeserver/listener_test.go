package bridgeserver

import (
	"net"
	"sync/atomic"
	"testing"
	"time"
)

func TestListenerAcceptLoopRejectsOverCapConnections(t *testing.T) {
	events := make(chan Event, 16)
	ln, err := Listen("127.0.0.1:0", events)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	var live atomic.Int64
	live.Store(MaxPeers)
	go ln.AcceptLoop(&live)

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected the over-cap connection to be closed by the listener")
	}
}

func TestListenerAcceptLoopEmitsNewPeerUnderCap(t *testing.T) {
	events := make(chan Event, 16)
	ln, err := Listen("127.0.0.1:0", events)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	var live atomic.Int64
	go ln.AcceptLoop(&live)

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case ev := <-events:
		if ev.Kind != EventNewPeer {
			t.Fatalf("Kind = %v, want EventNewPeer", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for EventNewPeer")
	}
}
