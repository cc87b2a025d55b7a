package bus

import (
	"testing"

	"github.com/binnacle/nmeabridge/nmea"
)

func TestLoopbackBusOnlyDeliversWatchedKeys(t *testing.T) {
	b := NewLoopbackBus(4)
	b.Push(KeyGPSSource, "serial") // not yet watched
	if err := b.Watch(KeyGPSSource, true); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	b.Push(KeyGPSSource, "tcp")
	b.Push(KeyWindSource, "imu") // never watched

	updates, err := b.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(updates) != 1 || updates[0] != (Update{Key: KeyGPSSource, Value: "tcp"}) {
		t.Fatalf("updates = %v, want exactly one gps.source=tcp update", updates)
	}

	if more, _ := b.Receive(); len(more) != 0 {
		t.Fatalf("second Receive should be empty, got %v", more)
	}
}

func TestLoopbackBusWatchOffStopsDelivery(t *testing.T) {
	b := NewLoopbackBus(4)
	b.Watch(KeyAPBSource, true)
	b.Watch(KeyAPBSource, false)
	b.Push(KeyAPBSource, "compass")

	updates, _ := b.Receive()
	if len(updates) != 0 {
		t.Fatalf("expected no updates after un-watching, got %v", updates)
	}
}

func TestLoopbackBusRecordsWritesAndLostDevices(t *testing.T) {
	b := NewLoopbackBus(4)
	reading := nmea.Reading{Kind: nmea.KindWind, Device: "/dev/ttyUSB0"}

	if err := b.Write(nmea.KindWind, reading, "serial"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.LostDevice("/dev/ttyUSB0"); err != nil {
		t.Fatalf("LostDevice: %v", err)
	}

	select {
	case rec := <-b.Writes():
		if rec.SourceTag != "serial" || rec.Kind != nmea.KindWind {
			t.Fatalf("write record = %+v, want serial/wind", rec)
		}
	default:
		t.Fatal("expected a buffered write record")
	}

	select {
	case dev := <-b.LostDevices():
		if dev != "/dev/ttyUSB0" {
			t.Fatalf("lost device = %q, want /dev/ttyUSB0", dev)
		}
	default:
		t.Fatal("expected a buffered lost-device notification")
	}
}

func TestLoopbackBusCloseIsIdempotent(t *testing.T) {
	b := NewLoopbackBus(1)
	if err := b.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}
