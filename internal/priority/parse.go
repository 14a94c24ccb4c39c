package priority

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/papapumpkin/pares/internal/table"
)

var rangePattern = regexp.MustCompile(`^\s*(-?\d+(?:[.,]\d+)?)\s*[-–—]\s*(-?\d+(?:[.,]\d+)?)\s*$`)

// ParseResponse reads a survey answer as a number. A range such as "40-60"
// yields its midpoint; anything else must parse as a plain number.
func ParseResponse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if m := rangePattern.FindStringSubmatch(s); m != nil {
		a, errA := parseNumber(m[1])
		b, errB := parseNumber(m[2])
		if errA == nil && errB == nil {
			return (a + b) / 2, true
		}
	}
	f, err := parseNumber(s)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

// responseUnit returns the answer on a 0-1 scale. response_numeric wins
// over response_raw; values outside [0,100] are rejected.
func responseUnit(r table.Row) (float64, bool) {
	v, ok := r.Float(ColResponseNumeric)
	if !ok {
		raw, present := r.Str(ColResponseRaw)
		if !present {
			return 0, false
		}
		v, ok = ParseResponse(raw)
	}
	if !ok || v < 0 || v > 100 {
		return 0, false
	}
	return v / 100, true
}
