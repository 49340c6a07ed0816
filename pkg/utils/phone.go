package utils

import (
	"regexp"
	"strings"
)

// DefaultCountryCode is prefixed to numbers entered without one.
const DefaultCountryCode = "+91"

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone strips separators, adds countryCode to a bare national number
// and reports whether the result is a valid E.164 number.
func NormalizePhone(raw, countryCode string) (string, bool) {
	phone := phoneSeparators.Replace(strings.TrimSpace(raw))
	if phone == "" {
		return "", false
	}
	if strings.HasPrefix(phone, "00") {
		phone = "+" + phone[2:]
	}
	if !strings.HasPrefix(phone, "+") {
		phone = countryCode + strings.TrimLeft(phone, "0")
	}
	if !e164Regex.MatchString(phone) {
		return "", false
	}
	return phone, true
}
