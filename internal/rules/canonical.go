package rules

import (
	"regexp"
	"strings"
)

// CleanFunc turns a raw merchant string into a display-worthy vendor
// name. The heuristic is pluggable; CleanMerchantName is the default.
type CleanFunc func(raw string) string

var (
	// processor suffixes like "AMAZON.COM*AB12CD" or "PAYPAL *SPOTIFY"
	refSuffix = regexp.MustCompile(`[*#]\S*$`)
	// trailing reference/store numbers of three or more digits
	trailingDigits = regexp.MustCompile(`[\s\-]*[0-9#]{3,}$`)
	spaces         = regexp.MustCompile(`\s+`)
)

// CleanMerchantName strips transaction-processor noise from a raw
// merchant string: a "*REF" or "#REF" suffix, trailing reference
// numbers, and redundant whitespace. The result keeps the merchant's
// own casing apart from collapsing to title-free trimmed text.
//
//	CleanMerchantName("AMAZON.COM*AB12CD")  -> "AMAZON.COM"
//	CleanMerchantName("SHELL OIL 5744 ")    -> "SHELL OIL"
func CleanMerchantName(raw string) string {
	s := strings.TrimSpace(raw)
	s = refSuffix.ReplaceAllString(s, "")
	s = trailingDigits.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")
	s = strings.Trim(s, " -*#")
	if s == "" {
		// Nothing survived cleaning; fall back to the trimmed raw form
		// so a vendor can still be keyed by something.
		return strings.TrimSpace(raw)
	}
	return s
}
