package serialdev

import "go.bug.st/serial"

// Prober discovers a serial device for a probe slot and determines the
// baud it should be opened at. It is deliberately opaque about low-level
// enumeration heuristics (baud sensing, vendor/product filtering, which
// already-claimed paths to avoid) — spec.md §1 scopes that out as "the
// hard part," modeled as a single collaborator matching the original's
// serialprobe.probe(slot_name, baud_set, data_bits) -> path_tuple. The
// manager only ever sees the (path, baud) result; it never iterates
// candidate bauds itself.
type Prober interface {
	// Probe tries to find a serial device for slotName not already bound
	// to a different slot, trying each rate in bauds in turn at the given
	// data bit width. It reports ok=false if nothing suitable is found.
	Probe(slotName string, bauds []int, dataBits int) (path string, baud int, ok bool)

	// Relinquish tells the prober that slotName ("nmea<idx>") is no longer
	// associated with any path, e.g. because the probe moved on to a
	// different empty slot.
	Relinquish(slotName string)

	// Success tells the prober that slotName has been durably bound to
	// path, having produced a valid sentence.
	Success(slotName, path string)
}

// DefaultProber lists and opens ports via go.bug.st/serial, the same
// library the manager uses for established devices. It remembers which
// path each slot last bound (via Success/Relinquish) so Probe never hands
// out a path another slot already owns.
type DefaultProber struct {
	open    Opener
	claimed map[string]string // path -> owning slot name
}

// NewDefaultProber creates a DefaultProber that opens candidate ports via
// open (normally OpenSerialPort) to test whether a baud rate is usable.
func NewDefaultProber(open Opener) *DefaultProber {
	return &DefaultProber{open: open, claimed: make(map[string]string)}
}

// Probe implements Prober. dataBits is accepted for signature fidelity
// with the original's probe(slot_name, baud_set, data_bits); this
// implementation always opens 8-N-1 (see OpenSerialPort), so it's only
// otherwise meaningful to a prober backed by different open logic.
func (p *DefaultProber) Probe(slotName string, bauds []int, dataBits int) (string, int, bool) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", 0, false
	}
	for _, path := range ports {
		if owner, ok := p.claimed[path]; ok && owner != slotName {
			continue
		}
		for _, baud := range bauds {
			port, err := p.open(path, baud)
			if err != nil {
				continue
			}
			port.Close()
			return path, baud, true
		}
	}
	return "", 0, false
}

// Relinquish implements Prober.
func (p *DefaultProber) Relinquish(slotName string) {
	for path, owner := range p.claimed {
		if owner == slotName {
			delete(p.claimed, path)
		}
	}
}

// Success implements Prober.
func (p *DefaultProber) Success(slotName, path string) {
	p.claimed[path] = slotName
}
