// Package supervisor implements the single cooperative event loop that
// ties every other component together (components C7+C8): arbitration,
// rate-limited forwarding and synthesis, serial probing, and TCP peer
// fanout. Grounded on the original's Nmea.poll/nmeaBridge.poll pairing,
// realized in Go as one goroutine performing a non-blocking drain of
// every input channel per Tick, exactly mirroring poller.poll(0).
package supervisor

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/binnacle/nmeabridge/arbiter"
	"github.com/binnacle/nmeabridge/bridgeserver"
	"github.com/binnacle/nmeabridge/bus"
	"github.com/binnacle/nmeabridge/internal/clock"
	"github.com/binnacle/nmeabridge/serialdev"
	"github.com/binnacle/nmeabridge/status"
)

// ErrFatal wraps the loss of the upstream bus connection (a Bus.Receive
// error), which the bridge cannot recover from on its own. Loss of the
// TCP listening socket is not detected by the supervisor and does not
// produce ErrFatal. cmd/nmeabridge exits the process with code 2 when Run
// returns this error.
var ErrFatal = errors.New("supervisor: fatal resource loss")

// Rate limits and timing thresholds, named after the original's literal
// comments (spec.md §4.4, §4.5).
const (
	serialForwardInterval = 250 * time.Millisecond // 4 Hz
	imuSynthInterval      = 500 * time.Millisecond  // 2 Hz
	windRudderInterval    = 250 * time.Millisecond  // 4 Hz
	slowTickThreshold     = 100 * time.Millisecond  // logged if one Tick exceeds this
)

// Logger is the minimal surface Supervisor needs for diagnostics, so
// tests can substitute a no-op or a buffer; production wiring supplies an
// adapter writing through a go-tools logger.LoggerT (see cmd/nmeabridge).
type Logger interface {
	Printf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// Supervisor owns all bridge-private state and is driven by a single
// goroutine calling Tick once per readiness wait. No field here is ever
// touched by another goroutine: feeder goroutines only ever write to the
// channels Supervisor reads from (see SPEC_FULL.md §5).
type Supervisor struct {
	clock clock.Clock
	log   Logger

	table  *arbiter.Table
	serial *serialdev.Manager
	tcp    *bridgeserver.Server
	out    *bridgeserver.OutboundClient
	bus    bus.Bus

	reporter *status.Reporter
	recent   *status.RecentSentences

	peerEvents chan bridgeserver.Event
	serialRead chan serialdev.ReadResult

	forwardLimiter *rateLimiter
	synthLimiter   *rateLimiter

	values map[string]float64 // latest numeric values off the bus, keyed by bus.Key*

	nextPeerID uint64
	fatal      error // set once the bus connection is unrecoverably lost; Run surfaces it as ErrFatal
}

// New builds a Supervisor wired from prober/open for serial discovery, b
// for the sensor bus, and dial for the optional outbound-client
// connection. Status reporting is optional (pass nil, nil).
func New(c clock.Clock, b bus.Bus, prober serialdev.Prober, open serialdev.Opener, dial func(addr string) (net.Conn, error), reporter *status.Reporter, recent *status.RecentSentences, log Logger) *Supervisor {
	if log == nil {
		log = noopLogger{}
	}
	s := &Supervisor{
		clock:          c,
		log:            log,
		table:          arbiter.NewTable(),
		serial:         serialdev.NewManager(prober, open, c),
		tcp:            bridgeserver.NewServer(),
		out:            bridgeserver.NewOutboundClient(c, dial),
		bus:            b,
		reporter:       reporter,
		recent:         recent,
		peerEvents:     make(chan bridgeserver.Event, 256),
		serialRead:     make(chan serialdev.ReadResult, 256),
		forwardLimiter: newRateLimiter(),
		synthLimiter:   newRateLimiter(),
		values:         make(map[string]float64),
	}
	for _, key := range []string{
		bus.KeyGPSSource, bus.KeyWindSource, bus.KeyRudderSource, bus.KeyAPBSource,
		bus.KeyClient, bus.KeyIMUPitch, bus.KeyIMURoll, bus.KeyIMUHeadingLowpass,
		bus.KeyWindDirection, bus.KeyWindSpeed, bus.KeyRudderAngle,
	} {
		_ = b.Watch(key, true)
	}
	return s
}

// PeerEvents exposes the channel bridgeserver.Listener/Peer feeder
// goroutines should send to.
func (s *Supervisor) PeerEvents() chan<- bridgeserver.Event { return s.peerEvents }

// SerialReads exposes the channel serialdev feeder goroutines
// (serialdev.ReadLoop) should send to.
func (s *Supervisor) SerialReads() chan<- serialdev.ReadResult { return s.serialRead }

// TCPServer exposes the peer bookkeeping, for wiring the accept loop's
// over-cap check: Listener.AcceptLoop(sup.TCPServer().LiveCount()).
func (s *Supervisor) TCPServer() *bridgeserver.Server { return s.tcp }

// Table exposes the arbitration table, mainly for tests and the status
// reporter's periodic snapshot.
func (s *Supervisor) Table() *arbiter.Table { return s.table }

func parseValue(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}
