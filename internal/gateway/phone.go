package gateway

import "strings"

// CountryPrefix is prepended to national numbers (area code + subscriber).
const CountryPrefix = "55"

// NormalizePhone converts a phone to the digit-only international form the provider
// expects: "+55 (11) 99999-9999" -> "5511999999999". Numbers with 12 or more digits
// already carry a country code; 10–11 digit numbers get CountryPrefix; anything
// shorter is returned as its digits.
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case len(digits) >= 12:
		return digits
	case len(digits) >= 10:
		return CountryPrefix + digits
	default:
		return digits
	}
}
