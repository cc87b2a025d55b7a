// Package bus implements the sensor-bus collaborator interface (spec.md
// §6): the bridge watches a handful of keys for ownership changes, writes
// parsed readings back, and reports lost devices. Two implementations are
// provided: WebsocketBus talks to a real fusion service, LoopbackBus is an
// in-process stand-in for tests and standalone operation.
package bus

import "github.com/binnacle/nmeabridge/nmea"

// Keys are the sensor-bus values the supervisor watches, per spec.md §6.
const (
	KeyGPSSource    = "gps.source"
	KeyWindSource   = "wind.source"
	KeyRudderSource = "rudder.source"
	KeyAPBSource    = "apb.source"
	KeyClient       = "nmea.client" // persistent outbound-client host:port
)

// Value keys carry the actual sensor-fusion values the supervisor
// synthesizes outbound sentences from (spec.md §6's "Outbound synthesized
// sentences"; the original reads these off self.client.values.values
// rather than the watch/receive channel used for *.source, but this Bus
// abstraction folds both into the same Watch/Receive contract).
const (
	KeyIMUPitch          = "imu.pitch"
	KeyIMURoll           = "imu.roll"
	KeyIMUHeadingLowpass = "imu.heading_lowpass"
	KeyWindDirection     = "wind.direction"
	KeyWindSpeed         = "wind.speed"
	KeyRudderAngle       = "rudder.angle"
)

// Update is one entry of the map Receive returns: a bus key whose value
// changed since the last call.
type Update struct {
	Key   string
	Value string
}

// Bus is the sensor-bus collaborator (spec.md §6): Watch/Receive/Write/
// LostDevice. Implementations must be safe to drive from a single
// goroutine only; the supervisor never calls a Bus concurrently with
// itself.
type Bus interface {
	// Watch registers or deregisters interest in key. on mirrors the
	// original's watch(name, on|off).
	Watch(key string, on bool) error

	// Receive returns the updates accumulated since the last call,
	// never blocking (matches "returns deltas since last call").
	Receive() ([]Update, error)

	// Write publishes a parsed reading tagged with the source that won
	// arbitration for it.
	Write(kind nmea.Kind, reading nmea.Reading, sourceTag string) error

	// LostDevice notifies that the device identified by devicePrefix has
	// gone away (its path is no longer eligible to own any channel).
	LostDevice(devicePrefix string) error

	// Close releases any underlying connection.
	Close() error
}
