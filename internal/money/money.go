// Package money holds the single currency rule used wherever a price is shown:
// whole XOF amounts, digits grouped by three with a space, suffixed "FCFA".
package money

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const Suffix = "FCFA"

// FormatXOF renders 650000 as "650 000 FCFA".
func FormatXOF(amount int64) string {
	return humanize.FormatInteger("# ###.", int(amount)) + " " + Suffix
}

// ParseAmount accepts whole amounts typed by people: "650000", "650 000",
// "650 000 FCFA". Empty input is not an amount.
func ParseAmount(s string) (int64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), Suffix))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, false
		}
		n = int64(f)
	}
	return n, true
}
