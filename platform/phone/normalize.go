// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "BR"

// Normalizer turns free-form phone input into the canonical lead key:
// country-code-prefixed digits only.
type Normalizer struct {
	callingCode string
}

// NewNormalizer builds a normalizer whose home calling code is derived from
// the given ISO region (e.g. "BR" gives 55). Unknown regions fall back to BR.
func NewNormalizer(region string) Normalizer {
	code := phonenumbers.GetCountryCodeForRegion(strings.ToUpper(strings.TrimSpace(region)))
	if code == 0 {
		code = phonenumbers.GetCountryCodeForRegion(defaultRegion)
	}
	return Normalizer{callingCode: strconv.Itoa(code)}
}

// CallingCode returns the home calling code prepended to national numbers.
func (n Normalizer) CallingCode() string {
	return n.callingCode
}

// Canonical strips every non-digit and prepends the home calling code when
// what remains is a 10 or 11 digit national number. Returns "" when no digits
// are present.
func (n Normalizer) Canonical(input string) string {
	digits := Digits(input)
	if digits == "" {
		return ""
	}
	if len(digits) == 10 || len(digits) == 11 {
		return n.callingCode + digits
	}
	return digits
}

// Plausible reports whether a canonical key parses as a possible number.
func (n Normalizer) Plausible(canonical string) bool {
	if canonical == "" {
		return false
	}
	number, err := phonenumbers.Parse("+"+canonical, defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsPossibleNumber(number)
}

// Digits removes every character that is not an ASCII digit.
func Digits(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
