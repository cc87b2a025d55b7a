// Package arbiter decides which inbound stream is allowed to own each
// sensor channel, and whether a candidate reading from a given source may
// overwrite (or is shadowed by) the channel's current owner.
//
// The ordering itself is owned by the external sensor bus (see
// pypilot's sensors.source_priority); this package only relies on the
// ordering, exactly as spec.md requires.
package arbiter

import "github.com/binnacle/nmeabridge/nmea"

// Source identifies the origin of a reading. Lower rank wins: a reading
// from a lower-ranked source may always overwrite the channel's current
// owner; a reading from a higher-ranked source may only take over once the
// lower-ranked source has gone silent and been explicitly relinquished.
type Source int

const (
	SourceIMU Source = iota
	SourceGPS
	SourceSerial
	SourceTCP
	SourceUSB
	SourceNone
)

func (s Source) String() string {
	switch s {
	case SourceIMU:
		return "imu"
	case SourceGPS:
		return "gps"
	case SourceSerial:
		return "serial"
	case SourceTCP:
		return "tcp"
	case SourceUSB:
		return "usb"
	case SourceNone:
		return "none"
	default:
		return "unknown"
	}
}

// rank gives the total order; lower values win. Declared as a table (not a
// switch) so adding a source is a one-line change, matching the original's
// plain priority dict.
var rank = [...]int{
	SourceIMU:    0,
	SourceGPS:    1,
	SourceSerial: 2,
	SourceTCP:    3,
	SourceUSB:    4,
	SourceNone:   5,
}

// Priority returns s's rank. Lower is higher priority.
func Priority(s Source) int {
	return rank[s]
}

// ShouldEmit reports whether a reading arriving from candidate may
// overwrite (or equal) the channel's current owner. It is a pure function
// of the two ranks: priority(candidate) <= priority(current).
func ShouldEmit(candidate, current Source) bool {
	return Priority(candidate) <= Priority(current)
}

// owner records the current winner of a sensor channel.
type owner struct {
	source Source
	device string
}

// Table tracks, per Kind, which source currently owns the channel and the
// device string that produced its last accepted reading. It is the
// process-private state the single supervisor goroutine consults and
// mutates once per tick; nothing else touches it, so it needs no locking
// (see supervisor's design notes).
type Table struct {
	owners [nmea.NumKinds]owner // indexed by nmea.Kind
}

// NewTable returns a Table with every channel owned by SourceNone (nobody).
func NewTable() *Table {
	t := &Table{}
	for i := range t.owners {
		t.owners[i] = owner{source: SourceNone}
	}
	return t
}

// Current returns the current owning source and device for kind.
func (t *Table) Current(kind nmea.Kind) (Source, string) {
	o := t.owners[kind]
	return o.source, o.device
}

// TryAccept attempts to record a reading for kind arriving from source on
// device. It returns true and updates the table iff ShouldEmit(source,
// current) holds; otherwise the table is left untouched and the reading
// should be discarded.
func (t *Table) TryAccept(kind nmea.Kind, source Source, device string) bool {
	o := t.owners[kind]
	if !ShouldEmit(source, o.source) {
		return false
	}
	t.owners[kind] = owner{source: source, device: device}
	return true
}

// Relinquish clears the channel's owner back to SourceNone, e.g. when a
// serial device that owned it is retired.
func (t *Table) Relinquish(kind nmea.Kind) {
	t.owners[kind] = owner{source: SourceNone}
}

// RelinquishDevice clears ownership of every channel currently owned by
// device, regardless of kind. Used when a device is lost entirely.
func (t *Table) RelinquishDevice(device string) {
	for k := range t.owners {
		if t.owners[k].device == device {
			t.owners[k] = owner{source: SourceNone}
		}
	}
}

// EligibleForSerialDevice reports whether a line arriving from a serial
// device identified by devicePathPrefix should be allowed to attempt
// parsing kind at all. This mirrors the original's per-device
// arbitration: a kind is eligible if plain serial outranks the current
// owner (so serial is allowed to contend for it), or nobody currently
// owns it on record, or the current owner's device has this exact prefix
// (a channel already won by this device stays pinned to it).
func (t *Table) EligibleForSerialDevice(kind nmea.Kind, devicePathPrefix string) bool {
	o := t.owners[kind]
	if Priority(o.source) > Priority(SourceSerial) {
		return true
	}
	if o.device == "" {
		return true
	}
	return o.device == devicePathPrefix
}
