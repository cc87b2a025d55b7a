package nmea

// Kind identifies the sensor channel a Reading belongs to.
type Kind int

const (
	KindGPS Kind = iota
	KindWind
	KindRudder
	KindAPB
	kindCount
)

// NumKinds is the number of distinct sensor kinds, for sizing per-kind
// tables (rate limiters, arbitration state) outside this package.
const NumKinds = int(kindCount)

// String renders the kind's external name, used in log lines and the
// status page.
func (k Kind) String() string {
	switch k {
	case KindGPS:
		return "gps"
	case KindWind:
		return "wind"
	case KindRudder:
		return "rudder"
	case KindAPB:
		return "apb"
	default:
		return "unknown"
	}
}

// GPSReading is the payload of a KindGPS Reading, derived from an RMC
// sentence.
type GPSReading struct {
	Timestamp float64 // seconds, HHMMSS.sss as a plain number per RMC field 1
	Lat       float64 // degrees, signed (N positive)
	Lon       float64 // degrees, signed (E positive)
	Speed     float64 // knots
	Track     float64 // degrees; only meaningful if HasTrack
	HasTrack  bool
}

// WindReading is the payload of a KindWind Reading, derived from an MWV
// sentence.
type WindReading struct {
	Direction float64 // degrees, [0,360)
	Speed     float64 // knots
}

// RudderReading is the payload of a KindRudder Reading, derived from an RSA
// sentence.
type RudderReading struct {
	Angle float64 // degrees
}

// APBMode distinguishes the two steering references an APB sentence can
// carry.
type APBMode int

const (
	APBModeGPS APBMode = iota
	APBModeCompass
)

func (m APBMode) String() string {
	if m == APBModeCompass {
		return "compass"
	}
	return "gps"
}

// APBReading is the payload of a KindAPB Reading, derived from an APB
// sentence.
type APBReading struct {
	Mode     APBMode
	Track    float64 // degrees
	XTE      float64 // nautical miles, signed, clamped to [-0.15, 0.15]
	SenderID string  // two-character talker ID
}

// Reading is a tagged value carrying exactly one of the four sensor
// payloads, plus the device string that produced it. Using a struct with
// one populated field per Kind (rather than a map[string]interface{})
// keeps the kind table in parse.go exhaustive and lets the compiler catch
// missing cases.
type Reading struct {
	Kind   Kind
	Device string

	GPS    GPSReading
	Wind   WindReading
	Rudder RudderReading
	APB    APBReading
}
