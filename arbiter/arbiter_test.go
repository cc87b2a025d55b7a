package arbiter

import (
	"testing"

	"github.com/binnacle/nmeabridge/nmea"
)

func TestPriorityOrdering(t *testing.T) {
	order := []Source{SourceIMU, SourceGPS, SourceSerial, SourceTCP, SourceUSB, SourceNone}
	for i := 1; i < len(order); i++ {
		if Priority(order[i-1]) >= Priority(order[i]) {
			t.Fatalf("%v should outrank %v (lower rank wins)", order[i-1], order[i])
		}
	}
}

func TestShouldEmit(t *testing.T) {
	cases := []struct {
		candidate, current Source
		want                bool
	}{
		{SourceIMU, SourceNone, true},
		{SourceNone, SourceIMU, false},
		{SourceSerial, SourceSerial, true}, // equal source re-emits
		{SourceTCP, SourceSerial, false},
		{SourceSerial, SourceTCP, true},
	}
	for _, c := range cases {
		if got := ShouldEmit(c.candidate, c.current); got != c.want {
			t.Errorf("ShouldEmit(%v, %v) = %v, want %v", c.candidate, c.current, got, c.want)
		}
	}
}

func TestTableTryAcceptRespectsPriority(t *testing.T) {
	tbl := NewTable()

	if !tbl.TryAccept(nmea.KindGPS, SourceSerial, "ttyUSB0") {
		t.Fatalf("first reading from serial should be accepted when channel is unowned")
	}
	src, dev := tbl.Current(nmea.KindGPS)
	if src != SourceSerial || dev != "ttyUSB0" {
		t.Fatalf("Current = (%v, %q), want (serial, ttyUSB0)", src, dev)
	}

	if tbl.TryAccept(nmea.KindGPS, SourceTCP, "peer1") {
		t.Fatalf("lower-priority tcp reading should not displace serial")
	}
	src, dev = tbl.Current(nmea.KindGPS)
	if src != SourceSerial || dev != "ttyUSB0" {
		t.Fatalf("Current changed after rejected TryAccept: (%v, %q)", src, dev)
	}

	if !tbl.TryAccept(nmea.KindGPS, SourceGPS, "ttyUSB1") {
		t.Fatalf("higher-priority gps reading should displace serial")
	}
	src, dev = tbl.Current(nmea.KindGPS)
	if src != SourceGPS || dev != "ttyUSB1" {
		t.Fatalf("Current = (%v, %q), want (gps, ttyUSB1)", src, dev)
	}
}

func TestTableRelinquish(t *testing.T) {
	tbl := NewTable()
	tbl.TryAccept(nmea.KindWind, SourceSerial, "ttyUSB0")
	tbl.Relinquish(nmea.KindWind)
	src, dev := tbl.Current(nmea.KindWind)
	if src != SourceNone || dev != "" {
		t.Fatalf("Current after Relinquish = (%v, %q), want (none, \"\")", src, dev)
	}
}

func TestTableRelinquishDeviceClearsAllItsKinds(t *testing.T) {
	tbl := NewTable()
	tbl.TryAccept(nmea.KindWind, SourceSerial, "ttyUSB0")
	tbl.TryAccept(nmea.KindRudder, SourceSerial, "ttyUSB0")
	tbl.TryAccept(nmea.KindGPS, SourceSerial, "ttyUSB1")

	tbl.RelinquishDevice("ttyUSB0")

	if src, _ := tbl.Current(nmea.KindWind); src != SourceNone {
		t.Errorf("wind channel should be relinquished, got %v", src)
	}
	if src, _ := tbl.Current(nmea.KindRudder); src != SourceNone {
		t.Errorf("rudder channel should be relinquished, got %v", src)
	}
	if src, _ := tbl.Current(nmea.KindGPS); src != SourceSerial {
		t.Errorf("gps channel on a different device should be untouched, got %v", src)
	}
}

func TestEligibleForSerialDevicePinsToWinningDevice(t *testing.T) {
	tbl := NewTable()
	tbl.TryAccept(nmea.KindGPS, SourceSerial, "ttyUSB0")

	if tbl.EligibleForSerialDevice(nmea.KindGPS, "ttyUSB1") {
		t.Errorf("a different serial device should not be eligible once ttyUSB0 owns the channel")
	}
	if !tbl.EligibleForSerialDevice(nmea.KindGPS, "ttyUSB0") {
		t.Errorf("the winning device should remain eligible for its own channel")
	}
}

func TestEligibleForSerialDeviceWhenUnowned(t *testing.T) {
	tbl := NewTable()
	if !tbl.EligibleForSerialDevice(nmea.KindWind, "ttyUSB0") {
		t.Errorf("an unowned channel should be eligible to any serial device")
	}
}

func TestEligibleForSerialDeviceWhenOutrankedBySerial(t *testing.T) {
	tbl := NewTable()
	tbl.TryAccept(nmea.KindGPS, SourceTCP, "socket0")
	if !tbl.EligibleForSerialDevice(nmea.KindGPS, "ttyUSB1") {
		t.Errorf("serial should be allowed to contend for a channel owned by a lower-priority source")
	}
}
