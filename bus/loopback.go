package bus

import (
	"sync"

	"github.com/binnacle/nmeabridge/nmea"
)

// WriteRecord is one call to Write, captured for tests and for the
// standalone (no fusion service) mode of operation.
type WriteRecord struct {
	Kind      nmea.Kind
	Reading   nmea.Reading
	SourceTag string
}

// LoopbackBus is an in-process Bus: Write calls accumulate on a channel
// instead of going over a network, and updates are injected by tests (or
// by a future local sensor source) via Push. Grounded on the teacher's
// byteChan/messageChan channel-only plumbing in apps/proxy/tcpprox.go,
// adapted here to the bus's richer Update/WriteRecord shape.
type LoopbackBus struct {
	mu      sync.Mutex
	watched map[string]bool
	pending []Update
	writes  chan WriteRecord
	lost    chan string
	closed  bool
}

// NewLoopbackBus creates a LoopbackBus with the given buffered capacity
// for writes and lost-device notifications.
func NewLoopbackBus(writeBuffer int) *LoopbackBus {
	return &LoopbackBus{
		watched: make(map[string]bool),
		writes:  make(chan WriteRecord, writeBuffer),
		lost:    make(chan string, writeBuffer),
	}
}

// Watch implements Bus.
func (b *LoopbackBus) Watch(key string, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.watched[key] = true
	} else {
		delete(b.watched, key)
	}
	return nil
}

// Push injects an Update as if it had arrived from the bus, but only if
// the key is currently watched (mirrors the original only delivering
// watched keys through receive()).
func (b *LoopbackBus) Push(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.watched[key] {
		return
	}
	b.pending = append(b.pending, Update{Key: key, Value: value})
}

// Receive implements Bus.
func (b *LoopbackBus) Receive() ([]Update, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out, nil
}

// Write implements Bus.
func (b *LoopbackBus) Write(kind nmea.Kind, reading nmea.Reading, sourceTag string) error {
	select {
	case b.writes <- WriteRecord{Kind: kind, Reading: reading, SourceTag: sourceTag}:
	default:
		// Writes channel is a test/inspection aid, not a durable queue;
		// drop rather than block the supervisor goroutine.
	}
	return nil
}

// LostDevice implements Bus.
func (b *LoopbackBus) LostDevice(devicePrefix string) error {
	select {
	case b.lost <- devicePrefix:
	default:
	}
	return nil
}

// Close implements Bus.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		close(b.writes)
		close(b.lost)
		b.closed = true
	}
	return nil
}

// Writes exposes the channel of recorded Write calls, for tests.
func (b *LoopbackBus) Writes() <-chan WriteRecord { return b.writes }

// LostDevices exposes the channel of recorded LostDevice calls, for tests.
func (b *LoopbackBus) LostDevices() <-chan string { return b.lost }
