package location

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoFix is returned for well-formed sentences that carry no valid position.
var ErrNoFix = errors.New("location: sentence has no fix")

// ParseSentence extracts a position from an RMC or GGA sentence from any
// talker (GP, GN, GL, ...). Other sentence types return an error.
func ParseSentence(line string) (lat, lon float64, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return 0, 0, fmt.Errorf("not an NMEA sentence: %q", line)
	}
	body := line[1:]
	if star := strings.LastIndexByte(body, '*'); star >= 0 {
		if err := verifyChecksum(body[:star], body[star+1:]); err != nil {
			return 0, 0, err
		}
		body = body[:star]
	}

	fields := strings.Split(body, ",")
	if len(fields[0]) != 5 {
		return 0, 0, fmt.Errorf("bad sentence id %q", fields[0])
	}

	switch fields[0][2:] {
	case "RMC":
		// id,time,status,lat,N/S,lon,E/W,...
		if len(fields) < 7 {
			return 0, 0, fmt.Errorf("short RMC sentence")
		}
		if fields[2] != "A" {
			return 0, 0, ErrNoFix
		}
		return parseLatLon(fields[3], fields[4], fields[5], fields[6])
	case "GGA":
		// id,time,lat,N/S,lon,E/W,quality,...
		if len(fields) < 7 {
			return 0, 0, fmt.Errorf("short GGA sentence")
		}
		if fields[6] == "" || fields[6] == "0" {
			return 0, 0, ErrNoFix
		}
		return parseLatLon(fields[2], fields[3], fields[4], fields[5])
	default:
		return 0, 0, fmt.Errorf("unsupported sentence %s", fields[0])
	}
}

func verifyChecksum(body, sum string) error {
	want, err := strconv.ParseUint(strings.TrimSpace(sum), 16, 8)
	if err != nil {
		return fmt.Errorf("bad checksum %q", sum)
	}
	var got byte
	for i := 0; i < len(body); i++ {
		got ^= body[i]
	}
	if got != byte(want) {
		return fmt.Errorf("checksum mismatch: got %02X want %02X", got, want)
	}
	return nil
}

func parseLatLon(lat, ns, lon, ew string) (float64, float64, error) {
	if lat == "" || lon == "" {
		return 0, 0, ErrNoFix
	}
	la, err := parseDegMin(lat, 2)
	if err != nil {
		return 0, 0, err
	}
	lo, err := parseDegMin(lon, 3)
	if err != nil {
		return 0, 0, err
	}
	if ns == "S" {
		la = -la
	}
	if ew == "W" {
		lo = -lo
	}
	return la, lo, nil
}

// parseDegMin converts NMEA ddmm.mmmm (or dddmm.mmmm) to decimal degrees.
func parseDegMin(s string, degDigits int) (float64, error) {
	if len(s) < degDigits+2 {
		return 0, fmt.Errorf("bad coordinate %q", s)
	}
	deg, err := strconv.Atoi(s[:degDigits])
	if err != nil {
		return 0, fmt.Errorf("bad coordinate %q: %w", s, err)
	}
	mins, err := strconv.ParseFloat(s[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("bad coordinate %q: %w", s, err)
	}
	return float64(deg) + mins/60, nil
}
