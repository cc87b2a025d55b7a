package serialdev

import (
	"time"

	"github.com/binnacle/nmeabridge/internal/clock"
	"github.com/binnacle/nmeabridge/nmea"
)

// ProbeTimeout is how long a probe device is given to produce a valid
// sentence before it's abandoned (spec.md §4.5).
const ProbeTimeout = 5 * time.Second

// SilenceWarn and SilenceRetire are the soft-warning and hard-retirement
// thresholds for an established device going quiet (spec.md §4.5).
const (
	SilenceWarn   = 2 * time.Second
	SilenceRetire = 15 * time.Second
)

// Event reports something the manager wants the supervisor to act on:
// a newly promoted device, a device that went silent too long, or a
// diagnostic.
type Event struct {
	Kind   EventKind
	Device *Device
	Detail string
}

// EventKind distinguishes the events Manager's ProbeTick, FeedRead and
// CheckSilence can produce.
type EventKind int

const (
	EventDevicePromoted EventKind = iota
	EventDeviceRetired
	EventDeviceSilenceWarning
)

type probeState struct {
	index  int
	device *Device
	start  time.Time
	path   string
}

// Manager owns the sparse slot list of established devices plus the
// single in-flight probe, exactly mirroring the original's
// self.devices/self.probedevice pair. All of its methods are called only
// from the single supervisor goroutine; it holds no lock.
type Manager struct {
	prober Prober
	open   Opener
	clock  clock.Clock

	slots []*Device // sparse: nil entries are empty slots
	probe *probeState

	lastProbeIndex int
	haveProbed     bool

	warned map[string]bool // devices that already got a silence warning
}

// NewManager creates a Manager with the given port-discovery and
// port-opening strategies and clock.
func NewManager(prober Prober, open Opener, c clock.Clock) *Manager {
	return &Manager{
		prober: prober,
		open:   open,
		clock:  c,
		warned: make(map[string]bool),
	}
}

// SlotName returns the external probe-relinquish identifier for slot
// index i (spec.md: "nmea<idx>").
func SlotName(i int) string {
	return "nmea" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

// firstEmptySlot returns the index of the first nil slot, or len(slots) if
// every slot is occupied (mirroring the original's devices.index(False)
// falling back to len(devices)).
func (m *Manager) firstEmptySlot() int {
	for i, d := range m.slots {
		if d == nil {
			return i
		}
	}
	return len(m.slots)
}

// ProbeTick advances the probe state machine by one step: starting a new
// probe if none is in flight, or checking whether the in-flight probe has
// produced a valid sentence or timed out. It returns an EventDevicePromoted
// event when a device graduates into a slot.
func (m *Manager) ProbeTick() (Event, bool) {
	now := m.clock.Now()

	if m.probe == nil {
		return m.startProbe(now)
	}

	line, ok := m.probe.device.NextLine()
	if ok {
		m.probe.device.Touch(now)
		return m.promoteProbe(line)
	}

	if now.Sub(m.probe.start) > ProbeTimeout {
		m.probe.device.Close()
		m.probe = nil
	}
	return Event{}, false
}

func (m *Manager) startProbe(now time.Time) (Event, bool) {
	index := m.firstEmptySlot()
	if m.haveProbed && m.lastProbeIndex != index &&
		(m.lastProbeIndex >= len(m.slots) || m.slots[m.lastProbeIndex] == nil) {
		m.prober.Relinquish(SlotName(m.lastProbeIndex))
	}
	m.lastProbeIndex = index
	m.haveProbed = true

	path, baud, ok := m.prober.Probe(SlotName(index), CandidateBauds, dataBits)
	if !ok {
		return Event{}, false
	}

	port, err := m.open(path, baud)
	if err != nil {
		return Event{}, false
	}
	m.probe = &probeState{
		index: index,
		device: &Device{
			Path:   path,
			Baud:   baud,
			port:   port,
			framer: nmea.NewLineBuffer(),
		},
		path:  path,
		start: now,
	}
	m.probe.device.Touch(now)
	return Event{}, false
}

func (m *Manager) promoteProbe(firstLine string) (Event, bool) {
	d := m.probe.device
	idx := m.probe.index

	for idx >= len(m.slots) {
		m.slots = append(m.slots, nil)
	}
	m.slots[idx] = d
	m.prober.Success(SlotName(idx), d.Path)
	m.probe = nil

	return Event{Kind: EventDevicePromoted, Device: d, Detail: firstLine}, true
}

// FeedRead applies a ReadResult from a device's feeder goroutine: either
// framing the new bytes (for the probe device or an established slot), or
// handling the device's disappearance. Framed bytes are NOT parsed here;
// the supervisor drains NextLine itself once FeedRead returns so all
// arbitration logic stays centralized.
func (m *Manager) FeedRead(r ReadResult) (Event, bool) {
	if m.probe != nil && m.probe.path == r.Path {
		if r.Err != nil {
			m.probe.device.Close()
			m.probe = nil
			return Event{}, false
		}
		m.probe.device.Feed(r.Data)
		return Event{}, false
	}

	for i, d := range m.slots {
		if d == nil || d.Path != r.Path {
			continue
		}
		if r.Err != nil {
			return m.retire(i, "read error: "+r.Err.Error())
		}
		d.Feed(r.Data)
		return Event{}, false
	}
	return Event{}, false
}

// CheckSilence scans established devices for the 2s warn / 15s retire
// timers. It returns at most one event per call (the supervisor calls it
// every tick, so this still converges quickly).
func (m *Manager) CheckSilence() (Event, bool) {
	now := m.clock.Now()
	for i, d := range m.slots {
		if d == nil {
			continue
		}
		silence := d.SilentFor(now)
		if silence > SilenceRetire {
			return m.retire(i, "silent for over 15s")
		}
		if silence > SilenceWarn && !m.warned[d.Path] {
			m.warned[d.Path] = true
			return Event{Kind: EventDeviceSilenceWarning, Device: d}, true
		}
	}
	return Event{}, false
}

func (m *Manager) retire(index int, reason string) (Event, bool) {
	d := m.slots[index]
	d.Close()
	delete(m.warned, d.Path)
	m.slots[index] = nil
	return Event{Kind: EventDeviceRetired, Device: d, Detail: reason}, true
}

// Devices returns the currently occupied slots, skipping empties.
func (m *Manager) Devices() []*Device {
	out := make([]*Device, 0, len(m.slots))
	for _, d := range m.slots {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}
