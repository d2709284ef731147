package moderation

import (
	"regexp"
	"strings"
	"unicode"
)

// Compiled once and shared; regexp values are safe for concurrent use.
var (
	// urlPattern matches http/https URLs, www. URLs, and bare domains with a
	// path. The bare-domain form requires a "/" so "v2.0" or "3.14" pass.
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf)/\S*)`)

	// phonePattern matches formats such as +1-555-123-4567, (555) 123-4567
	// and 555.123.4567, bounded by whitespace so short numbers and dates
	// like 2026-12-24 pass.
	phonePattern = regexp.MustCompile(`(?:^|\s)(\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}(?:\s|$)`)
)

const (
	// Only letters count toward a character flood: "Feliz Navidad!!!!!" and
	// a budget of "100000" are ordinary.
	charFloodThreshold = 8
	// "ho ho ho ho" is a greeting, so word flooding starts at five.
	wordFloodThreshold = 5
)

type spamCheck struct {
	name    string
	reason  string
	match   func(string) bool
	details bool // also applies to Detail fields
}

// spamChecks are applied in order; the first match wins.
var spamChecks = []spamCheck{
	{name: "url", reason: "links are not allowed", details: true, match: func(text string) bool {
		return urlPattern.MatchString(text)
	}},
	{name: "phone", reason: "phone numbers are not allowed", match: func(text string) bool {
		return phonePattern.MatchString(text)
	}},
	{name: "char_flood", reason: "character flooding", match: hasCharFlood},
	{name: "word_flood", reason: "repeated word flooding", match: hasWordFlood},
}

// SpamReason returns the human readable reason of a spam check name, or ""
// for unknown names.
func SpamReason(name string) string {
	for _, sc := range spamChecks {
		if sc.name == name {
			return sc.reason
		}
	}
	return ""
}

// hasCharFlood reports runs of charFloodThreshold identical letters. RE2 has
// no backreferences, hence the scan.
func hasCharFlood(text string) bool {
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if !unicode.IsLetter(r) {
			prev = -1
			continue
		}
		r = unicode.ToLower(r)
		if r == prev {
			count++
			if count >= charFloodThreshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasWordFlood reports the same word repeated wordFloodThreshold times in a
// row, case-insensitively.
func hasWordFlood(text string) bool {
	words := strings.FieldsFunc(text, unicode.IsSpace)
	if len(words) < wordFloodThreshold {
		return false
	}

	count := 1
	prev := ""
	for _, w := range words {
		lower := strings.ToLower(w)
		if lower == prev {
			count++
			if count >= wordFloodThreshold {
				return true
			}
		} else {
			count = 1
			prev = lower
		}
	}
	return false
}

func (f *Filter) checkSpamPatterns(text string, kind Kind) FilterResult {
	for _, sc := range spamChecks {
		if kind == Detail && !sc.details {
			continue
		}
		if sc.match(text) {
			return FilterResult{
				Blocked: true,
				Reason:  "spam_pattern",
				Term:    sc.name,
			}
		}
	}
	return FilterResult{}
}
