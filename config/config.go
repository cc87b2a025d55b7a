// Package config loads the bridge's JSON configuration file, grounded on
// the teacher's jsonconfig.Config idiom: a plain struct with json tags,
// loaded with encoding/json, with defaults applied where the file leaves
// a field zero.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Config holds every value the bridge needs at startup: the TCP
// fanout listener, serial probing parameters, the sensor-bus address,
// the status page address, and the optional raw-sentence capture log
// directory (spec.md §6, SPEC_FULL.md's [AMBIENT STACK]).
type Config struct {
	// TCPPort is the port the bridge listens on for NMEA peers.
	TCPPort int `json:"tcp_port"`
	// TCPBindHost is the address to bind the listener to ("" = all
	// interfaces).
	TCPBindHost string `json:"tcp_bind_host"`

	// SerialBauds overrides the candidate baud rates tried against a
	// newly discovered serial device, highest-to-lowest.
	SerialBauds []int `json:"serial_bauds"`

	// BusAddress is the websocket URL of the sensor-fusion service
	// ("" selects the in-process LoopbackBus instead).
	BusAddress string `json:"bus_address"`

	// StatusHost and StatusPort configure the read-only HTTP status
	// page.
	StatusHost string `json:"status_host"`
	StatusPort int    `json:"status_port"`

	// CaptureLogDirectory, if non-empty, is created at startup and holds a
	// daily-rotated capture log that the status reporter can enable or
	// disable; no sentences are written to that log.
	CaptureLogDirectory string `json:"capture_log_directory"`
}

// Defaults returns a Config with every field set to the bridge's
// built-in defaults (spec.md §6: TCP port 20220).
func Defaults() Config {
	return Config{
		TCPPort:     20220,
		SerialBauds: []int{38400, 4800},
		StatusPort:  8080,
	}
}

// Load reads and parses path, then fills any zero-valued field left
// unset by the file with its default, exactly as apps/rtcmfilter/main.go
// layers command-line/default values over a loaded jsonconfig.Config.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (Config, error) {
	cfg := Defaults()
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if cfg.TCPPort == 0 {
		cfg.TCPPort = 20220
	}
	if cfg.StatusPort == 0 {
		cfg.StatusPort = 8080
	}
	if len(cfg.SerialBauds) == 0 {
		cfg.SerialBauds = []int{38400, 4800}
	}
	return cfg, nil
}
