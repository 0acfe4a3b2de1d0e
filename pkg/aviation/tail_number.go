package aviation

import (
	"regexp"
	"strings"
)

// FAA registrations: N, a digit, then up to four more characters.
// The digit requirement keeps spoken words such as "NO" or "NICE" from matching.
var tailNumberPattern = regexp.MustCompile(`\bN[0-9][A-Z0-9]{0,4}\b`)

var aircraftTypes = map[string]string{
	"N123AJ": "Gulfstream G650",
	"N456BW": "Bombardier Global 7500",
	"N789CB": "Cessna Citation X",
	"N999WW": "Dassault Falcon 7X",
	"N321EW": "Embraer Phenom 300",
	"N555RH": "Pilatus PC-12",
	"N874I":  "Cessna Citation Latitude",
	"N12345": "Beechcraft King Air 350",
}

// ExtractTailNumber returns the first tail number spoken in text.
func ExtractTailNumber(text string) (string, bool) {
	m := tailNumberPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// AircraftType looks up the registered type for a tail number, or "" if unknown.
func AircraftType(tailNumber string) string {
	return aircraftTypes[strings.ToUpper(strings.TrimSpace(tailNumber))]
}
