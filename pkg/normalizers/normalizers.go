// Package normalizers provides the string normalization functions the
// feature builder and source adapters share.
package normalizers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value.
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("nname", NormalizeName)
	Register("nphone", NormalizePhone)
	Register("nwebsite", NormalizeWebsite)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
	Register("remove_whitespace", RemoveWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("strip_diacritics", StripDiacritics)
}

// Register adds a normalizer to the registry.
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Apply applies a named normalizer to a value.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence.
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase.
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

var diacriticsRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes combining marks: "Café" becomes "Cafe".
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticsRemover, s)
	if err != nil {
		return s
	}
	return out
}

// legalSuffixes are trailing corporate designators stripped from POI names
// so "Acme Coffee LLC" and "Acme Coffee" normalize identically.
var legalSuffixes = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "corp": true, "co": true,
	"pllc": true, "plc": true, "gmbh": true, "ag": true, "sa": true,
	"sarl": true, "bv": true, "oy": true, "ab": true, "nv": true,
	"spa": true, "sas": true, "kft": true, "sro": true, "as": true,
	"aps": true, "oyj": true, "pty": true, "pte": true,
}

// NormalizeName normalizes a POI name for matching: lowercase, strip
// diacritics and punctuation, collapse whitespace, drop a trailing legal
// suffix.
func NormalizeName(s string) string {
	s = strings.ToLower(StripDiacritics(s))

	// Punctuation and symbols are deleted outright, not replaced with a
	// space: "Joe's Pizza" must normalize to "joes pizza", never "joe s pizza".
	// Only whitespace separates tokens.
	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	tokens := strings.Fields(result.String())
	if len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// MinPhoneDigits is the minimum digit count for a phone number to be
// considered present.
const MinPhoneDigits = 7

// NormalizePhone strips all non-digit characters. Numbers with fewer than
// MinPhoneDigits digits are treated as absent and return "".
func NormalizePhone(s string) string {
	digits := DigitsOnly(s)
	if len(digits) < MinPhoneDigits {
		return ""
	}
	return digits
}

// NormalizeWebsite lowercases a URL and strips the scheme, a leading www.,
// and any trailing slash.
func NormalizeWebsite(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimRight(s, "/")
}

// DigitsOnly keeps only digit characters.
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only letters and digits.
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemoveWhitespace removes all whitespace characters.
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemovePunctuation removes all punctuation characters.
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
