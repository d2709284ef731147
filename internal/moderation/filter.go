// Package moderation screens caller-supplied text before it is emailed to
// participants. A draw request names arbitrary recipients and carries a free
// text message, so names and the message are checked against a keyword
// blocklist and common spam patterns.
package moderation

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FilterResult is the outcome of a check. The zero value means clean.
type FilterResult struct {
	Blocked bool
	Reason  string // "blocked_keyword" or "spam_pattern"
	Term    string // matched term or spam check name
	Field   string // set by CheckFields
}

// Filter checks text against a keyword blocklist and spam patterns. It is
// read-only after construction and safe for concurrent use.
type Filter struct {
	words   map[string]struct{} // single-word terms
	phrases []string            // multi-word terms, tokens joined by one space
}

// defaultTerms is the blocklist used by NewFilter: threats, sexual
// exploitation, scam lures and strong profanity.
var defaultTerms = []string{
	// threats and self-harm
	"kill yourself", "kys", "go die", "bomb threat", "i will kill you",
	// sexual exploitation
	"child porn", "cp links", "send nudes",
	// hate
	"heil hitler", "white power",
	// scams and phishing lures
	"free bitcoin", "crypto giveaway", "wire transfer",
	"verify your account", "bank details", "click here",
	// profanity
	"fuck", "shit", "cunt", "bitch", "whore",
}

// NewFilter creates a Filter with the default blocklist.
func NewFilter() *Filter {
	return NewFilterWithTerms(defaultTerms)
}

// NewFilterWithTerms creates a Filter blocking terms. Terms are matched as
// whole words or whole word sequences, case-insensitively. Blank terms are
// ignored.
func NewFilterWithTerms(terms []string) *Filter {
	f := &Filter{words: make(map[string]struct{})}
	for _, term := range terms {
		tokens := tokenizePlain(fold(term))
		switch len(tokens) {
		case 0:
			continue
		case 1:
			f.words[tokens[0]] = struct{}{}
		default:
			f.phrases = append(f.phrases, strings.Join(tokens, " "))
		}
	}
	return f
}

// Kind selects the checks a Field gets.
type Kind int

const (
	// Prose is free text: participant names and the event message.
	Prose Kind = iota
	// Detail is a short event detail such as a budget or an exchange date.
	// Amounts and dates are runs of digits and punctuation, so only the
	// blocklist and the link check apply.
	Detail
)

// Check screens a piece of prose. Keyword matches take priority over spam
// patterns.
func (f *Filter) Check(text string) FilterResult {
	return f.check(text, Prose)
}

func (f *Filter) check(text string, kind Kind) FilterResult {
	text = norm.NFKC.String(text)
	lower := cases.Fold().String(text)

	if term, ok := f.matchTokens(tokenizePlain(lower)); ok {
		return FilterResult{Blocked: true, Reason: "blocked_keyword", Term: term}
	}

	// Second pass with leetspeak folded back to letters ("b@dw0rd").
	var folded []string
	for _, tok := range tokenizeLeet(lower) {
		if !hasLetter(tok) {
			continue
		}
		folded = append(folded, tokenizePlain(normalizeLeet(tok))...)
	}
	if term, ok := f.matchTokens(folded); ok {
		return FilterResult{Blocked: true, Reason: "blocked_keyword", Term: term}
	}

	return f.checkSpamPatterns(text, kind)
}

// Field is one named piece of text in a request.
type Field struct {
	Name string
	Text string
	Kind Kind
}

// CheckFields screens fields in order and returns the first blocking result
// with its Field set.
func (f *Filter) CheckFields(fields []Field) FilterResult {
	for _, field := range fields {
		if field.Text == "" {
			continue
		}
		if res := f.check(field.Text, field.Kind); res.Blocked {
			res.Field = field.Name
			return res
		}
	}
	return FilterResult{}
}

func (f *Filter) matchTokens(tokens []string) (string, bool) {
	if len(tokens) == 0 {
		return "", false
	}
	for _, tok := range tokens {
		if _, ok := f.words[tok]; ok {
			return tok, true
		}
	}
	if len(f.phrases) == 0 {
		return "", false
	}
	joined := " " + strings.Join(tokens, " ") + " "
	for _, phrase := range f.phrases {
		if strings.Contains(joined, " "+phrase+" ") {
			return phrase, true
		}
	}
	return "", false
}

var leetMap = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'@': 'a',
	'$': 's',
	'!': 'i',
}

// fold maps compatibility forms such as fullwidth letters to their plain
// equivalents and folds case.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// normalizeLeet replaces common leetspeak substitutions with letters.
func normalizeLeet(s string) string {
	return strings.Map(func(r rune) rune {
		if l, ok := leetMap[r]; ok {
			return l
		}
		return r
	}, s)
}

// tokenizePlain splits text into runs of letters and digits.
func tokenizePlain(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenizeLeet is tokenizePlain that keeps leetspeak symbols inside tokens.
func tokenizeLeet(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		if _, ok := leetMap[r]; ok {
			return false
		}
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
