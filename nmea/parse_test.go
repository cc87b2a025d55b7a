package nmea

import (
	"math"
	"testing"
)

func near(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestParseRMCHappyPath(t *testing.T) {
	body := "GPRMC,120000,A,3723.2475,N,12158.3416,W,7.3,152.5,010123,,"
	line := Encode(body)
	line = line[:len(line)-2]
	r, ok := Parse(line)
	if !ok {
		t.Fatalf("Parse(%q) rejected, want accepted", line)
	}
	if r.Kind != KindGPS {
		t.Fatalf("Kind = %v, want KindGPS", r.Kind)
	}
	if !near(r.GPS.Timestamp, 120000.0, 1e-6) {
		t.Errorf("Timestamp = %v, want 120000.0", r.GPS.Timestamp)
	}
	if !near(r.GPS.Lat, 37.387458, 1e-5) {
		t.Errorf("Lat = %v, want ~37.387458", r.GPS.Lat)
	}
	if !near(r.GPS.Lon, -121.972360, 1e-5) {
		t.Errorf("Lon = %v, want ~-121.972360", r.GPS.Lon)
	}
	if !near(r.GPS.Speed, 7.3, 1e-9) {
		t.Errorf("Speed = %v, want 7.3", r.GPS.Speed)
	}
	if !r.GPS.HasTrack || !near(r.GPS.Track, 152.5, 1e-9) {
		t.Errorf("Track = %v (has=%v), want 152.5", r.GPS.Track, r.GPS.HasTrack)
	}
}

func TestParseRMCVoidFixRejected(t *testing.T) {
	// Same sentence with status V (void) and recomputed checksum.
	body := "GPRMC,120000,V,3723.2475,N,12158.3416,W,7.3,152.5,010123,,"
	line := Encode(body)
	// Encode appends CRLF; Parse expects no CRLF, so trim it like LineBuffer would.
	line = line[:len(line)-2]
	if _, ok := Parse(line); ok {
		t.Fatalf("Parse accepted a void (status=V) RMC sentence")
	}
}

func TestParseRMCBadChecksumRejected(t *testing.T) {
	line := "$GPRMC,120000,A,3723.2475,N,12158.3416,W,7.3,152.5,010123,,*FF"
	if _, ok := Parse(line); ok {
		t.Fatalf("Parse accepted a sentence with a wrong checksum")
	}
}

func TestParseMWVKnotsFromKmh(t *testing.T) {
	body := "WIMWV,045.0,R,100.0,K,A"
	line := Encode(body)
	line = line[:len(line)-2]
	r, ok := Parse(line)
	if !ok {
		t.Fatalf("Parse(%q) rejected, want accepted", line)
	}
	if r.Kind != KindWind {
		t.Fatalf("Kind = %v, want KindWind", r.Kind)
	}
	if !near(r.Wind.Direction, 45.0, 1e-9) {
		t.Errorf("Direction = %v, want 45.0", r.Wind.Direction)
	}
	want := 100.0 * 0.53995
	if !near(r.Wind.Speed, want, 1e-9) {
		t.Errorf("Speed = %v, want %v", r.Wind.Speed, want)
	}
}

func TestParseMWVUnrecognizedUnitRejected(t *testing.T) {
	body := "WIMWV,045.0,R,100.0,X,A"
	line := Encode(body)
	line = line[:len(line)-2]
	if _, ok := Parse(line); ok {
		t.Fatalf("Parse accepted an MWV sentence with an unrecognized speed unit")
	}
}

func TestParseRSAHappyPath(t *testing.T) {
	body := "IIRSA,4.5,A,,V"
	line := Encode(body)
	line = line[:len(line)-2]
	r, ok := Parse(line)
	if !ok {
		t.Fatalf("Parse(%q) rejected, want accepted", line)
	}
	if r.Kind != KindRudder {
		t.Fatalf("Kind = %v, want KindRudder", r.Kind)
	}
	if !near(r.Rudder.Angle, 4.5, 1e-9) {
		t.Errorf("Angle = %v, want 4.5", r.Rudder.Angle)
	}
}

func TestParseRSABlankAngleSkipped(t *testing.T) {
	body := "IIRSA,,V,,V"
	line := Encode(body)
	line = line[:len(line)-2]
	if _, ok := Parse(line); ok {
		t.Fatalf("Parse accepted an RSA sentence with a blank angle field")
	}
}

func TestParseAPBClampAndSign(t *testing.T) {
	// This is the exact sentence from the boundary-behavior scenario, minus
	// its literal checksum since Encode computes the real one.
	body := "ECAPB,A,A,10.00,L,N,V,V,,,,,090.0,T,090.0,M"
	line := Encode(body)
	line = line[:len(line)-2]

	r, ok := Parse(line)
	if !ok {
		t.Fatalf("Parse(%q) rejected, want accepted", line)
	}
	if r.Kind != KindAPB {
		t.Fatalf("Kind = %v, want KindAPB", r.Kind)
	}
	if r.APB.Mode != APBModeCompass {
		t.Errorf("Mode = %v, want compass", r.APB.Mode)
	}
	if !near(r.APB.Track, 90.0, 1e-9) {
		t.Errorf("Track = %v, want 90.0", r.APB.Track)
	}
	if !near(r.APB.XTE, -0.15, 1e-9) {
		t.Errorf("XTE = %v, want -0.15 (clamped)", r.APB.XTE)
	}
	if r.APB.SenderID != "EC" {
		t.Errorf("SenderID = %q, want %q", r.APB.SenderID, "EC")
	}
}

func TestParseAPBModeGPSWhenNotCompass(t *testing.T) {
	body := "GPAPB,A,A,0.02,R,N,V,V,,,,,090.0,T,090.0,T"
	line := Encode(body)
	line = line[:len(line)-2]
	r, ok := Parse(line)
	if !ok {
		t.Fatalf("Parse(%q) rejected, want accepted", line)
	}
	if r.APB.Mode != APBModeGPS {
		t.Errorf("Mode = %v, want gps", r.APB.Mode)
	}
	if !near(r.APB.XTE, 0.02, 1e-9) {
		t.Errorf("XTE = %v, want 0.02", r.APB.XTE)
	}
}

func TestParseRejectsShortSentence(t *testing.T) {
	if _, ok := Parse("$A*"); ok {
		t.Fatalf("Parse accepted a too-short sentence")
	}
}

func TestParseRejectsUnknownSentenceType(t *testing.T) {
	body := "GPZZZ,1,2,3"
	line := Encode(body)
	line = line[:len(line)-2]
	if _, ok := Parse(line); ok {
		t.Fatalf("Parse accepted an unsupported sentence type")
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	body := "GPRMC,120000,A,3723.2475,N,12158.3416,W,7.3,152.5,010123,,"
	encoded := Encode(body)
	want := "$" + body + "*04\r\n"
	if encoded != want {
		t.Fatalf("Encode(%q) = %q, want %q", body, encoded, want)
	}
}

func TestLineBufferFramesSentenceFromStream(t *testing.T) {
	lb := NewLineBuffer()
	lb.Feed([]byte("garbage before\x00"))
	lb.Feed([]byte("$GPRMC,120000,A,3723.2475,N,12158.3416,W,7.3,152.5,010123,,*04\r\n"))
	lb.Feed([]byte("$WIMWV,045.0,R,100.0,K,A*26\r\n"))

	first, ok := lb.Next()
	if !ok {
		t.Fatalf("expected first sentence to be ready")
	}
	if SentenceCode(first) != "RMC" {
		t.Errorf("first sentence code = %q, want RMC", SentenceCode(first))
	}

	second, ok := lb.Next()
	if !ok {
		t.Fatalf("expected second sentence to be ready")
	}
	if SentenceCode(second) != "MWV" {
		t.Errorf("second sentence code = %q, want MWV", SentenceCode(second))
	}

	if _, ok := lb.Next(); ok {
		t.Fatalf("expected no third sentence")
	}
}

func TestLineBufferDropsOverlongUnterminatedFrame(t *testing.T) {
	lb := NewLineBuffer()
	junk := make([]byte, MaxSentenceLength+10)
	junk[0] = '$'
	for i := 1; i < len(junk); i++ {
		junk[i] = 'A'
	}
	lb.Feed(junk)
	lb.Feed([]byte("$WIMWV,045.0,R,100.0,K,A*26\r\n"))
	line, ok := lb.Next()
	if !ok {
		t.Fatalf("expected the well-formed sentence after the overlong garbage to be found")
	}
	if SentenceCode(line) != "MWV" {
		t.Errorf("sentence code = %q, want MWV", SentenceCode(line))
	}
}

func TestSentenceHead(t *testing.T) {
	if got := SentenceHead("$GPRMC,1,2,3*00"); got != "GPRMC" {
		t.Errorf("SentenceHead = %q, want GPRMC", got)
	}
}
