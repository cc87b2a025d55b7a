package config

import (
	"strings"
	"testing"
)

func TestParseAppliesDefaultsForZeroFields(t *testing.T) {
	cfg, err := parse(strings.NewReader(`{"bus_address": "ws://localhost:23322"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.TCPPort != 20220 {
		t.Errorf("TCPPort = %d, want default 20220", cfg.TCPPort)
	}
	if cfg.StatusPort != 8080 {
		t.Errorf("StatusPort = %d, want default 8080", cfg.StatusPort)
	}
	if len(cfg.SerialBauds) != 2 || cfg.SerialBauds[0] != 38400 {
		t.Errorf("SerialBauds = %v, want default [38400 4800]", cfg.SerialBauds)
	}
	if cfg.BusAddress != "ws://localhost:23322" {
		t.Errorf("BusAddress = %q, want the configured value", cfg.BusAddress)
	}
}

func TestParseHonorsExplicitValuesOverDefaults(t *testing.T) {
	cfg, err := parse(strings.NewReader(`{"tcp_port": 2000, "serial_bauds": [9600]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.TCPPort != 2000 {
		t.Errorf("TCPPort = %d, want 2000", cfg.TCPPort)
	}
	if len(cfg.SerialBauds) != 1 || cfg.SerialBauds[0] != 9600 {
		t.Errorf("SerialBauds = %v, want [9600]", cfg.SerialBauds)
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, err := parse(strings.NewReader(`{not json`)); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
