package nmea

import (
	"strconv"
	"strings"
)

// parserEntry pairs a sentence type code (the three characters after the
// two-character talker ID) with the field-level parser for that kind. This
// is the "small fixed enumeration... tagged variant plus a table" called
// for instead of a string-keyed dictionary (see design notes).
type parserEntry struct {
	kind         Kind
	sentenceCode string
	parseFields  func(fields []string, senderID string) (Reading, bool)
}

var parserTable = [kindCount]parserEntry{
	KindGPS:    {KindGPS, "RMC", parseRMCFields},
	KindWind:   {KindWind, "MWV", parseMWVFields},
	KindRudder: {KindRudder, "RSA", parseRSAFields},
	KindAPB:    {KindAPB, "APB", parseAPBFields},
}

// Parse is the top-level pure function that turns a raw sentence (as
// delivered by LineBuffer.Next, i.e. "$TTSSS,...,...*HH" with no CR/LF)
// into a typed Reading. It rejects sentences shorter than 6 bytes, with an
// invalid checksum, or whose type isn't one of the four supported kinds, or
// whose type-specific fields fail to parse.
func Parse(line string) (Reading, bool) {
	if len(line) < 6 {
		return Reading{}, false
	}
	if line[0] != '$' && line[0] != '!' {
		return Reading{}, false
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || star < 6 {
		return Reading{}, false
	}
	body := line[1:star]
	if !ValidChecksum(body, line[star+1:]) {
		return Reading{}, false
	}

	senderID := line[1:3]
	sentenceCode := line[3:6]

	fields := strings.Split(body, ",")

	for _, entry := range parserTable {
		if entry.sentenceCode == sentenceCode {
			return entry.parseFields(fields, senderID)
		}
	}
	return Reading{}, false
}

// SentenceCode reports the three-character sentence type of line (e.g.
// "RMC"), or "" if line is too short to contain one.
func SentenceCode(line string) string {
	if len(line) < 6 {
		return ""
	}
	return line[3:6]
}

// SentenceHead returns the first five characters after '$'/'!' (talker ID
// plus sentence type, e.g. "GPRMC"), used as the rate-limiting key. Returns
// "" if line is too short.
func SentenceHead(line string) string {
	if len(line) < 6 {
		return ""
	}
	return line[1:6]
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ddmmToDegrees converts an NMEA DDMM.mmm coordinate magnitude into signed
// decimal degrees (sign applied by the caller based on the hemisphere
// letter): ddmm/100 -> dd + (ddmm/100 - dd) * 100/60.
func ddmmToDegrees(ddmm float64) float64 {
	x := ddmm / 100
	dd := float64(int64(x))
	minutes := x - dd
	return dd + minutes*100/60
}

// parseRMCFields implements the RMC -> gps parser (spec.md §4.3). fields is
// the full comma-split body including the sentence-id field at index 0, so
// field N below matches spec.md's "position N" numbering.
func parseRMCFields(fields []string, senderID string) (Reading, bool) {
	if len(fields) < 9 {
		return Reading{}, false
	}
	if fields[2] != "A" {
		return Reading{}, false // not a valid fix
	}

	timestamp, ok := parseFloat(fields[1])
	if !ok {
		return Reading{}, false
	}

	latMag, ok := parseFloat(fields[3])
	if !ok {
		return Reading{}, false
	}
	lat := ddmmToDegrees(latMag)
	switch fields[4] {
	case "S":
		lat = -lat
	case "N":
	default:
		return Reading{}, false
	}

	lonMag, ok := parseFloat(fields[5])
	if !ok {
		return Reading{}, false
	}
	lon := ddmmToDegrees(lonMag)
	switch fields[6] {
	case "W":
		lon = -lon
	case "E":
	default:
		return Reading{}, false
	}

	speed := 0.0
	if strings.TrimSpace(fields[7]) != "" {
		speed, ok = parseFloat(fields[7])
		if !ok {
			return Reading{}, false
		}
	}

	gps := GPSReading{Timestamp: timestamp, Lat: lat, Lon: lon, Speed: speed}
	if len(fields) > 8 && strings.TrimSpace(fields[8]) != "" {
		track, ok := parseFloat(fields[8])
		if ok {
			gps.Track = track
			gps.HasTrack = true
		}
	}

	return Reading{Kind: KindGPS, GPS: gps}, true
}

// windUnitToKnots converts a wind speed given in unit u to knots. Ok is
// false for an unrecognized unit, which causes the sentence to be
// rejected.
func windUnitToKnots(speed float64, unit string) (float64, bool) {
	switch unit {
	case "K":
		return speed * 0.53995, true
	case "M":
		return speed * 1.94384, true
	case "N":
		return speed, true
	default:
		return 0, false
	}
}

// parseMWVFields implements the MWV -> wind parser.
func parseMWVFields(fields []string, senderID string) (Reading, bool) {
	if len(fields) < 5 {
		return Reading{}, false
	}
	direction, ok := parseFloat(fields[1])
	if !ok {
		return Reading{}, false
	}
	rawSpeed, ok := parseFloat(fields[3])
	if !ok {
		return Reading{}, false
	}
	speed, ok := windUnitToKnots(rawSpeed, fields[4])
	if !ok {
		return Reading{}, false
	}
	return Reading{Kind: KindWind, Wind: WindReading{Direction: direction, Speed: speed}}, true
}

// parseRSAFields implements the RSA -> rudder parser. A blank or
// non-numeric angle field causes the sentence to be skipped rather than
// published with a sentinel value (see DESIGN.md's Open Question
// decision).
func parseRSAFields(fields []string, senderID string) (Reading, bool) {
	if len(fields) < 2 {
		return Reading{}, false
	}
	angle, ok := parseFloat(fields[1])
	if !ok {
		return Reading{}, false
	}
	return Reading{Kind: KindRudder, Rudder: RudderReading{Angle: angle}}, true
}

const maxXTE = 0.15

// clampXTE restricts the magnitude of a cross-track error to maxXTE
// nautical miles while preserving sign.
func clampXTE(xte float64) float64 {
	if xte > maxXTE {
		return maxXTE
	}
	if xte < -maxXTE {
		return -maxXTE
	}
	return xte
}

// parseAPBFields implements the APB -> apb parser. fields includes the
// sentence-id at index 0 (as for RMC): XTE magnitude lives one past
// spec.md's "field 2" at index 3, the L/R sign one past "field 3" at index
// 4, and track at index 12. The mode letter ('M' for compass, anything
// else for GPS) is read from the last field rather than the fixed index
// spec.md names, because real APB sentences carry an optional trailing
// mode-indicator field the minimal layout doesn't, and anchoring to the
// end keeps both forms working (see DESIGN.md).
func parseAPBFields(fields []string, senderID string) (Reading, bool) {
	if len(fields) < 13 {
		return Reading{}, false
	}
	xteMag, ok := parseFloat(fields[3])
	if !ok {
		return Reading{}, false
	}
	xte := clampXTE(xteMag)
	switch fields[4] {
	case "L":
		xte = -xte
	case "R":
	default:
		return Reading{}, false
	}

	track, ok := parseFloat(fields[12])
	if !ok {
		return Reading{}, false
	}

	modeField := fields[len(fields)-1]
	mode := APBModeGPS
	if modeField == "M" {
		mode = APBModeCompass
	}

	return Reading{
		Kind: KindAPB,
		APB: APBReading{
			Mode:     mode,
			Track:    track,
			XTE:      xte,
			SenderID: senderID,
		},
	}, true
}
