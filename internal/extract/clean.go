package extract

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"
)

var (
	leadingGlyphs  = regexp.MustCompile(`^[^\p{L}\p{N}]+`)
	phoneGlyphs    = regexp.MustCompile(`^[^\p{L}\p{N}+(]+`)
	addressLabel   = regexp.MustCompile(`Address:\s*`)
	phoneLabel     = regexp.MustCompile(`Phone:\s*`)
	ratingPattern  = regexp.MustCompile(`(\d\.\d)`)
	bareRating     = regexp.MustCompile(`^\d\.\d$`)
	leadingDecimal = regexp.MustCompile(`^\d+(?:[.,]\d+)?`)
	digitRun       = regexp.MustCompile(`\d[\d,.]*`)
	emailChars     = regexp.MustCompile(`[^\w.@+\-]`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Private-use glyphs the map UI renders in front of address and phone text.
const (
	addressIcon = "\ue0c8"
	phoneIcon   = "\ue0b0"
)

// StripLeadingGlyphs removes icons and punctuation before the first letter or digit.
func StripLeadingGlyphs(s string) string {
	return strings.TrimSpace(leadingGlyphs.ReplaceAllString(s, ""))
}

// CleanAddress normalises the text of an address control.
func CleanAddress(raw string) string {
	text := addressLabel.ReplaceAllString(raw, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", ", ")
	text = strings.ReplaceAll(text, addressIcon, "")
	return StripLeadingGlyphs(text)
}

// CleanPhone normalises the text of a phone control.
func CleanPhone(raw string) string {
	text := phoneLabel.ReplaceAllString(raw, "")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\n", "")
	text = strings.ReplaceAll(text, phoneIcon, "")
	// A leading + carries the country code.
	return strings.TrimSpace(phoneGlyphs.ReplaceAllString(text, ""))
}

// ParseRatingLabel reads the leading decimal token of a label such as "4.5 stars".
func ParseRatingLabel(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	token := leadingDecimal.FindString(fields[0])
	return strings.ReplaceAll(token, ",", ".")
}

// MatchRating returns the first d.d pattern in text.
func MatchRating(text string) string {
	m := ratingPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// IsBareRating reports whether text is exactly a d.d value.
func IsBareRating(text string) bool {
	return bareRating.MatchString(strings.TrimSpace(text))
}

// CleanReviews strips surrounding parentheses and whitespace from a reviews label,
// e.g. "(12)" becomes "12". A trailing "reviews" word is dropped too.
func CleanReviews(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "(", "")
	text = strings.ReplaceAll(text, ")", "")
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, suffix := range []string{"reviews", "review"} {
		if strings.HasSuffix(lower, suffix) {
			text = strings.TrimSpace(text[:len(text)-len(suffix)])
			break
		}
	}
	return text
}

// FirstDigits returns the first run of digits (with separators) in text.
func FirstDigits(text string) string {
	return strings.TrimRight(digitRun.FindString(text), ",.")
}

// EmailFromMailto extracts the address from a mailto: href. It returns an
// empty string when the result fails the sanity check.
func EmailFromMailto(href string) string {
	email := strings.TrimSpace(href)
	if len(email) >= 7 && strings.EqualFold(email[:7], "mailto:") {
		email = email[7:]
	}
	if idx := strings.Index(email, "?"); idx >= 0 {
		email = email[:idx]
	}
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return ""
	}
	return email
}

// EmailFromText pulls an email out of control text by dropping characters
// that cannot be part of an address.
func EmailFromText(text string) string {
	if !strings.Contains(text, "@") {
		return ""
	}
	email := emailChars.ReplaceAllString(text, "")
	if !ValidEmail(email) {
		return ""
	}
	return email
}

// ValidEmail performs a light sanity check: one @, a dotted domain, and a
// domain that converts to ASCII.
func ValidEmail(email string) bool {
	if !emailPattern.MatchString(email) {
		return false
	}
	domain := email[strings.LastIndex(email, "@")+1:]
	ascii, err := idna.Lookup.ToASCII(domain)
	return err == nil && ascii != ""
}

// NormalizePhone formats a phone number as E.164 using region for local
// numbers. It returns an empty string when the number is not valid.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}
