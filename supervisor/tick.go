package supervisor

import (
	"time"

	"github.com/binnacle/nmeabridge/arbiter"
	"github.com/binnacle/nmeabridge/bridgeserver"
	"github.com/binnacle/nmeabridge/bus"
	"github.com/binnacle/nmeabridge/nmea"
	"github.com/binnacle/nmeabridge/serialdev"
	"github.com/binnacle/nmeabridge/status"
)

// Tick performs exactly one non-blocking pass over every input, mirroring
// the original's poll(): probe the serial bus, drain every ready channel
// once, apply arbitration, forward/synthesize outbound sentences, and
// retire anything that's timed out. It never blocks, matching
// poller.poll(0)'s "ask, don't wait" contract; the caller (Run) supplies
// the actual waiting between ticks.
func (s *Supervisor) Tick(now time.Time) {
	t0 := now

	s.applyBusUpdates()
	t1 := s.clock.Now()

	s.driveSerialProbe()
	t2 := s.clock.Now()

	s.drainSerialLines(t2)
	t3 := s.clock.Now()

	s.drainPeerEvents(t3)
	t4 := s.clock.Now()

	s.checkDeviceSilence(t4)
	t5 := s.clock.Now()

	s.synthesizeOutbound(t5)
	t6 := s.clock.Now()

	s.reconcileOutbound(t6)
	t7 := s.clock.Now()

	if elapsed := t7.Sub(t0); elapsed > slowTickThreshold {
		s.log.Printf("supervisor tick took %s (bus=%s probe=%s serial=%s peers=%s silence=%s synth=%s outbound=%s)",
			elapsed, t1.Sub(t0), t2.Sub(t1), t3.Sub(t2), t4.Sub(t3), t5.Sub(t4), t6.Sub(t5), t7.Sub(t6))
	}

	if s.reporter != nil {
		s.reporter.SetPeerCount(s.tcp.Count())
		for k := 0; k < nmea.NumKinds; k++ {
			kind := nmea.Kind(k)
			source, device := s.table.Current(kind)
			s.reporter.SetKindStatus(kind, source, device)
		}
	}
}

// applyBusUpdates drains the sensor bus and folds numeric value keys into
// s.values, the Go analogue of reading self.client.values.values.
func (s *Supervisor) applyBusUpdates() {
	updates, err := s.bus.Receive()
	if err != nil {
		s.log.Printf("supervisor: bus receive error: %v", err)
		s.fatal = err
		return
	}
	for _, u := range updates {
		if u.Key == bus.KeyClient {
			s.out.Reconcile(u.Value)
			continue
		}
		if v, ok := parseValue(u.Value); ok {
			s.values[u.Key] = v
		}
	}
}

// driveSerialProbe advances the serial probe state machine one step and
// logs device lifecycle transitions (spec.md §4.5).
func (s *Supervisor) driveSerialProbe() {
	select {
	case r := <-s.serialRead:
		if ev, ok := s.serial.FeedRead(r); ok {
			s.applySerialEvent(ev)
		}
	default:
	}
	if ev, ok := s.serial.ProbeTick(); ok {
		s.applySerialEvent(ev)
	}
}

func (s *Supervisor) applySerialEvent(ev serialdev.Event) {
	switch ev.Kind {
	case serialdev.EventDevicePromoted:
		s.log.Printf("serial device promoted: %s (baud %d)", ev.Device.Path, ev.Device.Baud)
	case serialdev.EventDeviceRetired:
		s.table.RelinquishDevice(ev.Device.DeviceID())
		_ = s.bus.LostDevice(ev.Device.DeviceID())
		s.log.Printf("serial device retired: %s (%s)", ev.Device.Path, ev.Detail)
	case serialdev.EventDeviceSilenceWarning:
		s.log.Printf("serial device %s silent, is another process accessing it?", ev.Device.Path)
	}
}

// drainSerialLines applies per-device arbitration and parsing to every
// line each established serial device has framed since the last tick,
// and rate-limits raw-line forwarding to TCP peers (spec.md §4.5, §4.4).
func (s *Supervisor) drainSerialLines(now time.Time) {
	for _, d := range s.serial.Devices() {
		for {
			line, ok := d.NextLine()
			if !ok {
				break
			}
			d.Touch(now)
			s.forwardSerialLine(d, line, now)
			s.parseAndArbitrate(line, arbiter.SourceSerial, d.DeviceID())
		}
	}
}

// forwardSerialLine relays a raw serial line to connected TCP peers at
// at most 4 Hz per sentence head, skipping MWV/RSA/APB (those are
// synthesized from arbitrated state instead) — spec.md §4.4.
func (s *Supervisor) forwardSerialLine(d *serialdev.Device, line string, now time.Time) {
	if !s.tcp.AnyConnected() {
		return
	}
	head := nmea.SentenceHead(line)
	code := nmea.SentenceCode(line)
	if code == "MWV" || code == "RSA" || code == "APB" {
		return
	}
	if !s.forwardLimiter.Allow(head, now, serialForwardInterval) {
		return
	}
	s.tcp.Broadcast(line, 0, false)
	if s.recent != nil {
		s.recent.Add(entryFor(line, "serial:"+d.Path))
	}
}

// parseAndArbitrate runs Parse against line, checks serial eligibility
// (only for arbiter.SourceSerial callers — TCP lines use the simpler
// priority gate in drainPeerEvents), and on acceptance publishes the
// reading upstream.
func (s *Supervisor) parseAndArbitrate(line string, source arbiter.Source, device string) {
	reading, ok := nmea.Parse(line)
	if !ok {
		return
	}
	if source == arbiter.SourceSerial && !s.table.EligibleForSerialDevice(reading.Kind, device) {
		return
	}
	if !s.table.TryAccept(reading.Kind, source, device) {
		return
	}
	reading.Device = device
	if err := s.bus.Write(reading.Kind, reading, source.String()); err != nil {
		s.log.Printf("supervisor: bus write failed: %v", err)
	}
}

// drainPeerEvents applies every TCP peer lifecycle/data event that has
// arrived since the last tick: new peers are registered, data is framed
// and offered to the parsers (gated to kinds where TCP could plausibly
// win, per spec.md §4.4's "only kinds whose current source has priority
// >= tcp" optimization), BROADCAST peers' lines are relayed to every
// other connected peer, and lost peers are cleaned up.
func (s *Supervisor) drainPeerEvents(now time.Time) {
	for {
		select {
		case ev := <-s.peerEvents:
			s.applyPeerEvent(ev, now)
		default:
			return
		}
	}
}

func (s *Supervisor) applyPeerEvent(ev bridgeserver.Event, now time.Time) {
	switch ev.Kind {
	case bridgeserver.EventNewPeer:
		s.tcp.AddPeer(ev.Peer)
		s.log.Printf("tcp peer %d connected", ev.PeerID)
	case bridgeserver.EventPeerData:
		peer, ok := s.tcp.Peer(ev.PeerID)
		if !ok {
			return
		}
		peer.Feed(ev.Data)
		for {
			line, ok := peer.NextLine()
			if !ok {
				break
			}
			justBroadcast := peer.ApplyLine(line)
			if justBroadcast {
				continue // the handshake sentence itself is never rebroadcast or parsed
			}
			if peer.Broadcasting() {
				s.tcp.Broadcast(line, ev.PeerID, true)
				if s.recent != nil {
					s.recent.Add(entryFor(line, "tcp:"+peer.DeviceID()))
				}
			}
			s.tryParseFromTCP(line, peer.DeviceID())
		}
	case bridgeserver.EventPeerLost:
		s.out.Lost(ev.PeerID)
		if peer, ok := s.tcp.Peer(ev.PeerID); ok {
			s.table.RelinquishDevice(peer.DeviceID())
			_ = s.bus.LostDevice(peer.DeviceID())
		}
		s.tcp.RemovePeer(ev.PeerID)
		s.log.Printf("tcp peer %d lost: %v", ev.PeerID, ev.Err)
	}
}

// tryParseFromTCP applies the "only parse if tcp could plausibly win"
// optimization before doing any parsing work at all.
func (s *Supervisor) tryParseFromTCP(line string, device string) {
	code := nmea.SentenceCode(line)
	kind, ok := kindForSentenceCode(code)
	if !ok {
		return
	}
	source, _ := s.table.Current(kind)
	if !arbiter.ShouldEmit(arbiter.SourceTCP, source) {
		return // a strictly better source already owns this channel
	}
	s.parseAndArbitrate(line, arbiter.SourceTCP, device)
}

func kindForSentenceCode(code string) (nmea.Kind, bool) {
	switch code {
	case "RMC":
		return nmea.KindGPS, true
	case "MWV":
		return nmea.KindWind, true
	case "RSA":
		return nmea.KindRudder, true
	case "APB":
		return nmea.KindAPB, true
	default:
		return 0, false
	}
}

// checkDeviceSilence applies the 2s-warn/15s-retire timers to every
// established serial device (spec.md §4.5).
func (s *Supervisor) checkDeviceSilence(now time.Time) {
	for {
		ev, ok := s.serial.CheckSilence()
		if !ok {
			return
		}
		s.applySerialEvent(ev)
	}
}

// synthesizeOutbound emits the 2/4 Hz synthesized sentences to connected
// TCP peers: IMU-derived pitch/roll/heading always (when the bridge has
// those values at all), wind/rudder only when the channel's current owner
// ranks below tcp; an owner of equal-or-better priority than tcp (tcp,
// serial, gps, imu) suppresses them.
func (s *Supervisor) synthesizeOutbound(now time.Time) {
	if !s.tcp.AnyConnected() {
		return
	}

	pitch, havePitch := s.values[bus.KeyIMUPitch]
	roll, haveRoll := s.values[bus.KeyIMURoll]
	heading, haveHeading := s.values[bus.KeyIMUHeadingLowpass]
	if havePitch && haveRoll && haveHeading && s.synthLimiter.Allow("imu", now, imuSynthInterval) {
		s.sendSynth(synthPitch(pitch))
		s.sendSynth(synthRoll(roll))
		s.sendSynth(synthHeading(heading))
	}

	windSource, _ := s.table.Current(nmea.KindWind)
	if s.synthLimiter.Allow("wind", now, windRudderInterval) && arbiter.Priority(windSource) > arbiter.Priority(arbiter.SourceTCP) {
		dir, haveDir := s.values[bus.KeyWindDirection]
		speed, haveSpeed := s.values[bus.KeyWindSpeed]
		if haveDir && haveSpeed {
			s.sendSynth(synthWind(dir, speed))
		}
	}

	rudderSource, _ := s.table.Current(nmea.KindRudder)
	if s.synthLimiter.Allow("rudder", now, windRudderInterval) && arbiter.Priority(rudderSource) > arbiter.Priority(arbiter.SourceTCP) {
		if angle, have := s.values[bus.KeyRudderAngle]; have {
			s.sendSynth(synthRudder(angle))
		}
	}
}

func (s *Supervisor) sendSynth(line string) {
	s.tcp.Broadcast(line, 0, false)
	if s.recent != nil {
		s.recent.Add(entryFor(line, "synth"))
	}
}

// reconcileOutbound attempts an outbound-client reconnect if one is
// configured and due (spec.md §4.4: "attempt connect at most every 20s").
func (s *Supervisor) reconcileOutbound(now time.Time) {
	peer, ok := s.out.Tick(s.nextPeerID, s.peerEvents)
	if !ok {
		return
	}
	s.nextPeerID++
	s.tcp.AddPeer(peer)
	s.log.Printf("outbound client connected")
}

func entryFor(line, tag string) status.Entry {
	return status.Entry{Line: line, Tag: tag}
}
