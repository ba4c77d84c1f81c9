package identity

import (
	"regexp"
	"strings"
)

// transliteration values for VIN check digit math, per ISO 3779.
// I, O and Q are never valid VIN characters.
var vinValues = map[byte]int{
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
	'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
	'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4, '5': 5, '6': 6, '7': 7,
	'8': 8, '9': 9,
}

var vinWeights = [17]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

var vinShape = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// Normalize uppercases and strips whitespace from a raw VIN string.
func Normalize(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// WellFormed reports whether vin is 17 valid VIN characters.
func WellFormed(vin string) bool {
	return vinShape.MatchString(vin)
}

// ValidCheckDigit verifies position 9 of a North American VIN. Scraped
// text that passes the shape test but fails here usually means a typo
// on the dealer page, so callers should warn rather than reject.
func ValidCheckDigit(vin string) bool {
	if !WellFormed(vin) {
		return false
	}

	sum := 0
	for i := 0; i < 17; i++ {
		sum += vinValues[vin[i]] * vinWeights[i]
	}

	want := byte('0' + sum%11)
	if sum%11 == 10 {
		want = 'X'
	}
	return vin[8] == want
}
