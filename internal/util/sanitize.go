package util

import (
	"regexp"
	"strings"
)

var (
	nonDigits   = regexp.MustCompile(`[^\d]`)
	otpCodeRe   = regexp.MustCompile(`^\d{6}$`)
	catalogIDRe = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
)

// NormalizeMSISDN converts a user-supplied Malaysian phone number into
// canonical international-digits form (60XXXXXXXXX). Accepts local
// (01x...), international (+601x...) and bare (601x...) input.
func NormalizeMSISDN(input string) string {
	digits := nonDigits.ReplaceAllString(input, "")
	switch {
	case strings.HasPrefix(digits, "0"):
		return "6" + digits
	case strings.HasPrefix(digits, "6"):
		return digits
	default:
		return "60" + digits
	}
}

// IsValidMSISDN reports whether msisdn is a plausible Malaysian mobile
// number: country code 60 followed by 9 or 10 digits.
func IsValidMSISDN(msisdn string) bool {
	if !strings.HasPrefix(msisdn, "60") {
		return false
	}
	rest := msisdn[2:]
	return len(rest) >= 9 && len(rest) <= 10
}

// ValidOTPCode reports whether code is exactly six ASCII digits. Codes that
// fail this check are rejected at the transport boundary and never reach
// the OTP manager.
func ValidOTPCode(code string) bool {
	return otpCodeRe.MatchString(code)
}

// MaskPhone hides the middle digits of a phone number for logs.
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return phone
	}
	return phone[:len(phone)-8] + "****" + phone[len(phone)-4:]
}

// SanitizeID strips anything that is not a catalog id character.
func SanitizeID(id string) string {
	return catalogIDRe.ReplaceAllString(id, "")
}
