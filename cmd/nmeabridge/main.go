// The nmeabridge command arbitrates NMEA-0183 sentences between an IMU/GPS
// sensor-fusion bus, a set of autopilot serial devices, and a fanout of
// TCP peers (typically an OpenCPN-style chart plotter and an autopilot
// bridge), forwarding and synthesizing sentences according to a fixed
// source-priority order.
//
// When the application starts up it looks for a JSON config file (named
// by -c/-config) describing the TCP listen port, the candidate serial
// baud rates, the sensor-bus address, and the status page address. Any
// field the file leaves unset falls back to the built-in default (see
// the config package).
//
//	nmeabridge -c nmeabridge.json
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goblimey/go-tools/dailylogger"
	"github.com/goblimey/go-tools/logger"
	"github.com/robfig/cron/v3"

	"github.com/binnacle/nmeabridge/bridgeserver"
	"github.com/binnacle/nmeabridge/bus"
	"github.com/binnacle/nmeabridge/config"
	"github.com/binnacle/nmeabridge/internal/clock"
	"github.com/binnacle/nmeabridge/serialdev"
	"github.com/binnacle/nmeabridge/status"
	"github.com/binnacle/nmeabridge/supervisor"
)

// eventLog is the bridge's runtime event log, matching the teacher's
// package-level *logger.LoggerT in apps/proxy/tcpprox.go.
var eventLog *logger.LoggerT

func init() {
	eventLog = logger.New()
}

// logAdapter satisfies supervisor.Logger by writing through eventLog, the
// same fmt.Fprintf(log, ...)-as-io.Writer idiom tcpprox.go uses.
type logAdapter struct{}

func (logAdapter) Printf(format string, args ...any) {
	fmt.Fprintf(eventLog, format+"\n", args...)
}

func main() {
	var configFileName string
	flag.StringVar(&configFileName, "c", "", "JSON config file")
	flag.StringVar(&configFileName, "config", "", "JSON config file")

	verbose := false
	flag.BoolVar(&verbose, "v", true, "verbose logging (shorthand)")
	flag.BoolVar(&verbose, "verbose", true, "verbose logging")

	quiet := false
	flag.BoolVar(&quiet, "q", false, "quiet logging (shorthand)")
	flag.BoolVar(&quiet, "quiet", false, "quiet logging")

	flag.Parse()

	if verbose {
		eventLog.SetLogLevel(1)
	}
	if quiet {
		eventLog.SetLogLevel(0)
	}

	cfg := config.Defaults()
	if configFileName != "" {
		loaded, err := config.Load(configFileName)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if len(cfg.SerialBauds) > 0 {
		serialdev.CandidateBauds = cfg.SerialBauds
	}

	if cfg.CaptureLogDirectory != "" {
		if err := os.MkdirAll(cfg.CaptureLogDirectory, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, "nmeabridge: cannot create capture log directory:", err)
			os.Exit(1)
		}
	}

	exitCode := run(cfg)
	os.Exit(exitCode)
}

func run(cfg config.Config) int {
	recent := status.NewRecentSentences(50)

	var captureLog *dailylogger.Writer
	if cfg.CaptureLogDirectory != "" {
		captureLog = dailylogger.New(cfg.CaptureLogDirectory, "nmeabridge.", ".log")
	}
	reportFeed := status.New(captureLog, recent)

	sensorBus := openBus(cfg)
	defer sensorBus.Close()

	sup := supervisor.New(
		clock.NewSystemClock(),
		sensorBus,
		serialdev.NewDefaultProber(serialdev.OpenSerialPort),
		serialdev.OpenSerialPort,
		dialTCP,
		reportFeed,
		recent,
		logAdapter{},
	)

	tcpAddr := fmt.Sprintf("%s:%d", cfg.TCPBindHost, cfg.TCPPort)
	listener, err := bridgeserver.Listen(tcpAddr, sup.PeerEvents())
	if err != nil {
		fmt.Fprintln(os.Stderr, "nmeabridge: failed to bind tcp listener:", err)
		return 1
	}
	defer listener.Close()
	go listener.AcceptLoop(sup.TCPServer().LiveCount())

	if cfg.StatusPort != 0 {
		status.StartService(reportFeed, cfg.StatusHost, cfg.StatusPort)
	}

	// A cron job writes a periodic heartbeat line to the event log, the
	// same division of labor as rtcmlogger/log/writer.go's cronjob field:
	// the daily log itself rolls over on write, cron only drives the
	// side effect that has no natural trigger of its own.
	heartbeat := cron.New()
	heartbeat.AddFunc("@every 1m", func() {
		eventLog.Printf("heartbeat: %d tcp peers connected", sup.TCPServer().Count())
	})
	heartbeat.Start()
	defer heartbeat.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = sup.Run(ctx)
	if err != nil {
		eventLog.Printf("nmeabridge: fatal: %v", err)
		return 2
	}
	return 0
}

func openBus(cfg config.Config) bus.Bus {
	if cfg.BusAddress == "" {
		return bus.NewLoopbackBus(256)
	}
	b, err := bus.DialWebsocketBus(cfg.BusAddress, 5*time.Second)
	if err != nil {
		eventLog.Printf("nmeabridge: failed to dial sensor bus %s: %v, falling back to loopback", cfg.BusAddress, err)
		return bus.NewLoopbackBus(256)
	}
	return b
}

func dialTCP(addr string) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, 10*time.Second)
}
