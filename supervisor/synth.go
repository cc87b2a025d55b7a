package supervisor

import (
	"fmt"

	"github.com/binnacle/nmeabridge/nmea"
)

// Synthesized sentence builders, grounded line-for-line on the original's
// send_nmea calls in nmea.py's poll() (spec.md §6's "Outbound synthesized
// sentences" list).

func synthPitch(pitch float64) string {
	return nmea.Encode(fmt.Sprintf("APXDR,A,%.3f,D,PTCH", pitch))
}

func synthRoll(roll float64) string {
	return nmea.Encode(fmt.Sprintf("APXDR,A,%.3f,D,ROLL", roll))
}

func synthHeading(heading float64) string {
	return nmea.Encode(fmt.Sprintf("APHDM,%.3f,M", heading))
}

func synthWind(direction, speed float64) string {
	return nmea.Encode(fmt.Sprintf("APMWV,%.3f,R,%.3f,N,A", direction, speed))
}

func synthRudder(angle float64) string {
	return nmea.Encode(fmt.Sprintf("APRSA,%.3f,A,,", angle))
}
