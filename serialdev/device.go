// Package serialdev implements the serial probe and lifecycle manager
// (component C4): discovering, opening, validating and retiring NMEA
// serial devices, grounded on pypilot's NMEASerialDevice/probe_serial and
// the teacher's serial_usb_grabber tool.
package serialdev

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/binnacle/nmeabridge/nmea"
)

// CandidateBauds are the baud rates tried against a newly discovered port,
// in order, matching spec.md's probe parameters.
var CandidateBauds = []int{38400, 4800}

const dataBits = 8

// Port is the narrow surface serialdev needs from an open serial
// connection. go.bug.st/serial.Port satisfies it structurally, as does
// FakePort in tests; neither needs to be named explicitly for the
// assignment to type-check.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// fdHaver is satisfied by go.bug.st/serial's concrete port type on
// platforms where the descriptor is reachable, even though Port itself
// doesn't expose it. Locking is best-effort: a port that doesn't support
// it (a different OS, or a fake in tests) is still fully usable.
type fdHaver interface {
	Fd() uintptr
}

// Opener opens path at the given baud rate. Production code uses
// OpenSerialPort (go.bug.st/serial.Open); tests substitute a fake.
type Opener func(path string, baud int) (Port, error)

// OpenSerialPort opens path in 8-N-1 mode at baud, with a 200ms read
// timeout (so a Read returns at least that often even on a silent port),
// and attempts to take exclusive ownership of the underlying tty.
func OpenSerialPort(path string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: dataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("serialdev: open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("serialdev: set read timeout on %s: %w", path, err)
	}
	if fh, ok := port.(fdHaver); ok {
		_ = lockExclusive(int(fh.Fd())) // best-effort, see lockExclusive
	}
	return port, nil
}

// Device is a single open, validated serial source. It is promoted from a
// probe once a valid NMEA sentence has been seen on it.
type Device struct {
	Path string
	Baud int

	port   Port
	framer *nmea.LineBuffer

	lastMsgTime time.Time
}

// DeviceID is the device string recorded against readings it produces and
// compared by the arbiter (spec.md: device path prefix).
func (d *Device) DeviceID() string {
	return d.Path
}

// Feed appends freshly read bytes to the device's line framer. Called only
// by the owning supervisor goroutine, never by the reader goroutine
// itself, preserving the "feeders are pure forwarders" invariant.
func (d *Device) Feed(data []byte) {
	d.framer.Feed(data)
}

// NextLine returns the next complete, checksum-valid sentence buffered for
// this device, if any.
func (d *Device) NextLine() (string, bool) {
	return d.framer.Next()
}

// Touch records that a valid message was just seen, resetting the silence
// timers.
func (d *Device) Touch(now time.Time) {
	d.lastMsgTime = now
}

// SilentFor reports how long it has been since the last accepted message.
func (d *Device) SilentFor(now time.Time) time.Duration {
	return now.Sub(d.lastMsgTime)
}

// Close releases the underlying port.
func (d *Device) Close() error {
	return d.port.Close()
}

// ReadResult is what a feeder goroutine posts back to the supervisor: a
// chunk of bytes, or a terminal error meaning the device is gone.
type ReadResult struct {
	Path string
	Data []byte
	Err  error
}

// ReadLoop blocks reading from port and forwards every chunk read to out,
// until the port errors (including when Close is called from another
// goroutine, which unblocks the read). This is the "pure forwarder"
// feeder goroutine: it never touches a Device's framer or timers
// directly, only the channel.
func ReadLoop(path string, port Port, out chan<- ReadResult) {
	buf := make([]byte, 4096)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- ReadResult{Path: path, Data: chunk}
		}
		if err != nil {
			out <- ReadResult{Path: path, Err: err}
			return
		}
	}
}

// FakePort is a minimal Port for tests: a byte source fed by Push, with a
// Close that unblocks any pending Read.
type FakePort struct {
	data   chan []byte
	closed chan struct{}
}

// NewFakePort creates a FakePort with no data queued yet.
func NewFakePort() *FakePort {
	return &FakePort{
		data:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

// Push queues a chunk of bytes to be returned by a future Read.
func (p *FakePort) Push(b []byte) {
	select {
	case p.data <- b:
	case <-p.closed:
	}
}

// Read implements Port, returning queued chunks or blocking until one
// arrives or the port is closed.
func (p *FakePort) Read(b []byte) (int, error) {
	select {
	case chunk := <-p.data:
		return copy(b, chunk), nil
	case <-p.closed:
		return 0, fmt.Errorf("serialdev: fake port closed")
	}
}

// Write implements Port; writes are discarded.
func (p *FakePort) Write(b []byte) (int, error) { return len(b), nil }

// Close implements Port.
func (p *FakePort) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

var _ Port = (*FakePort)(nil)
