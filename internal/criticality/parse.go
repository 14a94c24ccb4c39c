package criticality

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/papapumpkin/pares/internal/table"
)

var (
	numberPattern  = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
	monthSeparator = regexp.MustCompile(`[,;/\-\s]+`)
)

var monthNames = map[string]int{
	"ene": 1, "enero": 1, "jan": 1, "january": 1,
	"feb": 2, "febrero": 2, "february": 2,
	"mar": 3, "marzo": 3, "march": 3,
	"abr": 4, "abril": 4, "apr": 4, "april": 4,
	"may": 5, "mayo": 5,
	"jun": 6, "junio": 6, "june": 6,
	"jul": 7, "julio": 7, "july": 7,
	"ago": 8, "agosto": 8, "aug": 8, "august": 8,
	"sep": 9, "sept": 9, "septiembre": 9, "setiembre": 9, "september": 9,
	"oct": 10, "octubre": 10, "october": 10,
	"nov": 11, "noviembre": 11, "november": 11,
	"dic": 12, "diciembre": 12, "dec": 12, "december": 12,
}

// ParseMonths returns the distinct months (1-12) named in a free-text list
// such as "enero, feb; 3". Unknown tokens are ignored.
func ParseMonths(raw string) []int {
	var seen [13]bool
	for _, part := range monthSeparator.Split(table.Canonical(raw), -1) {
		part = strings.TrimRight(part, ".")
		if part == "" {
			continue
		}
		if f, err := strconv.ParseFloat(part, 64); err == nil {
			if m := int(f); m >= 1 && m <= 12 {
				seen[m] = true
			}
			continue
		}
		if m, ok := monthNames[part]; ok {
			seen[m] = true
		}
	}
	var out []int
	for m := 1; m <= 12; m++ {
		if seen[m] {
			out = append(out, m)
		}
	}
	return out
}

// Fragility is the share of the year covered by the months in raw.
func Fragility(raw string) float64 {
	return float64(len(ParseMonths(raw))) / 12
}

// LeadingNumber returns the first number written in raw, so "approx. 50
// families" and "50-100" both yield 50.
func LeadingNumber(raw string) (float64, bool) {
	m := numberPattern.FindString(raw)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// users reads the user count of a row: a numeric cell as is, text through
// LeadingNumber.
func users(r table.Row) (float64, bool) {
	if v, ok := r.Float(ColUsers); ok {
		return v, true
	}
	raw, ok := r.Str(ColUsers)
	if !ok {
		return 0, false
	}
	return LeadingNumber(raw)
}
